package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"movies-etl/internal/source"
	myErr "movies-etl/internal/types/errors"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// legacyTimestampLayouts - форматы старого хранилища, пробуются по порядку после ISO-8601.
// Дробная часть секунд в Go принимается при разборе, даже если ее нет в шаблоне.
var legacyTimestampLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var (
	errEmpty       = errors.New("empty value")
	errUnsupported = errors.New("unsupported value type")
	errOutOfRange  = errors.New("value out of range")
)

// ParseTimestamp - разбирает временную метку, результат всегда в UTC
func ParseTimestamp(v any) (time.Time, error) {
	switch value := v.(type) {
	case time.Time:
		return value.UTC(), nil
	case string:
		return parseTimestampString(value)
	case []byte:
		return parseTimestampString(string(value))
	default:
		return time.Time{}, errUnsupported
	}
}

func parseTimestampString(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, errEmpty
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range legacyTimestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

// ParseDate - разбирает дату YYYY-MM-DD
func ParseDate(v any) (time.Time, error) {
	switch value := v.(type) {
	case time.Time:
		y, m, d := value.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	case string:
		return time.Parse(dateLayout, strings.TrimSpace(value))
	case []byte:
		return time.Parse(dateLayout, strings.TrimSpace(string(value)))
	default:
		return time.Time{}, errUnsupported
	}
}

// ParseRating - приводит рейтинг к float64
func ParseRating(v any) (float64, error) {
	var f float64
	switch value := v.(type) {
	case float64:
		f = value
	case float32:
		f = float64(value)
	case int64:
		f = float64(value)
	case int:
		f = float64(value)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	case []byte:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(string(value)), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, errUnsupported
	}

	if f != f {
		return 0, errOutOfRange
	}

	return f, nil
}

// ParseUUID - разбирает текстовый идентификатор
func ParseUUID(v any) (uuid.UUID, error) {
	switch value := v.(type) {
	case uuid.UUID:
		return value, nil
	case string:
		return uuid.Parse(strings.TrimSpace(value))
	case []byte:
		return uuid.ParseBytes(value)
	case nil:
		return uuid.Nil, errEmpty
	default:
		return uuid.Nil, errUnsupported
	}
}

func asString(v any) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case []byte:
		return string(value), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(value), true
	}
}

// rowDecoder - приводит поля одной строки.
// Ошибка поля-идентификатора или обязательного поля делает строку невалидной,
// ошибки прочих полей обнуляют поле и попадают в warnings.
type rowDecoder struct {
	row      source.Row
	warnings []*myErr.FieldError
	err      error
}

func newRowDecoder(row source.Row) *rowDecoder {
	return &rowDecoder{row: row}
}

func (d *rowDecoder) fail(field string, value any, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %w", myErr.ErrInvalidRecord, &myErr.FieldError{Field: field, Value: value, Err: err})
	}
}

func (d *rowDecoder) warn(field string, value any, err error) {
	d.warnings = append(d.warnings, &myErr.FieldError{Field: field, Value: value, Err: err})
}

func (d *rowDecoder) uuid(field string) uuid.UUID {
	raw := d.row[field]
	id, err := ParseUUID(raw)
	if err != nil {
		d.fail(field, raw, err)
	}

	return id
}

func (d *rowDecoder) requiredText(field string) string {
	raw := d.row[field]
	s, ok := asString(raw)
	if !ok || strings.TrimSpace(s) == "" {
		d.fail(field, raw, errEmpty)
		return ""
	}

	return s
}

func (d *rowDecoder) text(field string) string {
	s, _ := asString(d.row[field])
	return s
}

func (d *rowDecoder) nullText(field string) sql.NullString {
	s, ok := asString(d.row[field])
	return sql.NullString{String: s, Valid: ok}
}

func (d *rowDecoder) timestamp(field string) sql.NullTime {
	raw := d.row[field]
	if raw == nil {
		return sql.NullTime{}
	}

	t, err := ParseTimestamp(raw)
	if err != nil {
		d.warn(field, raw, err)
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t, Valid: true}
}

func (d *rowDecoder) date(field string) sql.NullTime {
	raw := d.row[field]
	if raw == nil {
		return sql.NullTime{}
	}

	t, err := ParseDate(raw)
	if err != nil {
		d.warn(field, raw, err)
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t, Valid: true}
}

func (d *rowDecoder) rating(field string, minValue, maxValue float64) sql.NullFloat64 {
	raw := d.row[field]
	if raw == nil {
		return sql.NullFloat64{}
	}

	f, err := ParseRating(raw)
	if err != nil {
		d.warn(field, raw, err)
		return sql.NullFloat64{}
	}
	if f < minValue || f > maxValue {
		d.warn(field, raw, errOutOfRange)
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: f, Valid: true}
}
