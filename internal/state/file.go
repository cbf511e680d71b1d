package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStore - состояние в JSON-файле.
// Файл читается целиком при создании, каждая запись сохраняет всю карту.
type FileStore struct {
	Path   string
	Logger *zap.SugaredLogger

	mu     sync.Mutex
	states map[string]string
}

func NewFileStore(path string, logger *zap.SugaredLogger) (*FileStore, error) {
	s := &FileStore{
		Path:   path,
		Logger: logger,
	}

	states, err := s.readAll()
	if err != nil {
		return nil, err
	}
	s.states = states

	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.states[key]
	if !ok {
		return def, nil
	}

	return value, nil
}

func (s *FileStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.states)+1)
	for k, v := range s.states {
		next[k] = v
	}
	next[key] = value

	if err := s.writeAll(next); err != nil {
		s.Logger.Errorw("Failed to save state file", "path", s.Path, zap.Error(err))
		return err
	}
	s.states = next

	s.Logger.Infow("State updated", "key", key, "value", value)

	return nil
}

func (s *FileStore) readAll() (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		s.Logger.Warnw("State file not found, starting with empty state", "path", s.Path)
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	states := map[string]string{}
	if len(data) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(data, &states); err != nil {
		s.Logger.Warnw("State file is corrupted, starting with empty state", "path", s.Path, zap.Error(err))
		return map[string]string{}, nil
	}

	return states, nil
}

// writeAll - пишет во временный файл и переименовывает его поверх старого
func (s *FileStore) writeAll(states map[string]string) error {
	data, err := json.Marshal(states)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), s.Path)
}
