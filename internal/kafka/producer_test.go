package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeWriter реализует WriterInterface и просто запоминает, какие сообщения ему передали.
type fakeWriter struct {
	lastMessages []kafka.Message
	returnError  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.lastMessages = append(f.lastMessages, msgs...)
	return f.returnError
}

func (f *fakeWriter) Close() error {
	return nil
}

func TestProducer_NotifyIndexed_Success(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fw := &fakeWriter{}
	p := &Producer{
		Writer: fw,
		Logger: zaptest.NewLogger(t).Sugar(),
		now:    func() time.Time { return fixed },
	}

	err := p.NotifyIndexed(context.Background(), []string{"id-1", "id-2"})
	require.NoError(t, err)
	require.Len(t, fw.lastMessages, 1)

	var decoded Event
	require.NoError(t, json.Unmarshal(fw.lastMessages[0].Value, &decoded))
	assert.Equal(t, FilmWorksIndexed, decoded.Type)
	assert.Equal(t, []string{"id-1", "id-2"}, decoded.FilmWorkIDs)
	assert.True(t, fixed.Equal(decoded.Timestamp))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(fw.lastMessages[0].Value, &raw))
	assert.Equal(t, "film_works_indexed", raw["type"])
}

func TestProducer_NotifyIndexed_WriteError(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	writer := NewMockWriterInterface(ctrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker unavailable"))

	p := &Producer{
		Writer: writer,
		Logger: zaptest.NewLogger(t).Sugar(),
	}

	err := p.NotifyIndexed(context.Background(), []string{"id-1"})
	assert.EqualError(t, err, "broker unavailable")
}

func TestProducer_Close(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)
	writer := NewMockWriterInterface(ctrl)
	writer.EXPECT().Close().Return(nil)

	p := &Producer{Writer: writer, Logger: zaptest.NewLogger(t).Sugar()}
	assert.NoError(t, p.Close())
}

func TestNopProducer(t *testing.T) {
	t.Parallel()
	var p EventProducer = NopProducer{}

	assert.NoError(t, p.NotifyIndexed(context.Background(), []string{"id"}))
	assert.NoError(t, p.Close())
}
