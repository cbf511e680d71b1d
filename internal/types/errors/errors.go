package errors

import (
	"errors"
	"fmt"
)

var (
	ErrDBInternal = errors.New("database internal error")

	ErrMissingConfig = errors.New("missing required configuration")

	ErrUnknownTable    = errors.New("unknown table")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrCountMismatch   = errors.New("row count mismatch")
	ErrContentMismatch = errors.New("row content mismatch")
	ErrBootstrap       = errors.New("bootstrap migration failed")

	ErrIndexing    = errors.New("indexing error")
	ErrBulkPartial = errors.New("some documents were rejected by bulk request")
)

// FieldError - ошибка приведения одного поля строки
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q (value %v): %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// BulkFailure - документ, отклоненный bulk-запросом
type BulkFailure struct {
	DocumentID string
	Status     int
	Reason     string
}

// BulkError - частичный отказ bulk-запроса.
// Сравнивается через errors.Is с ErrBulkPartial.
type BulkError struct {
	Succeeded int
	Failed    int
	Failures  []BulkFailure
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("%s: %d succeeded, %d failed", ErrBulkPartial, e.Succeeded, e.Failed)
}

func (e *BulkError) Unwrap() error {
	return ErrBulkPartial
}
