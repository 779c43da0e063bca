package reality

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the dimensionality already established by the store.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector is returned when a zero-length vector is stored or queried.
	ErrEmptyVector = errors.New("empty vector")

	// ErrEmptyOwner is returned when a record has no owner ID.
	ErrEmptyOwner = errors.New("empty owner id")
)

// StorageError reports any failure of the Reality Store: backend
// unavailability, dimensionality mismatch or a malformed filter.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err for op. A nil err yields nil, and an error that
// already is a *StorageError is returned unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// DimensionError returns a StorageError wrapping ErrDimensionMismatch.
func DimensionError(op string, want, got int) error {
	return &StorageError{Op: op, Err: fmt.Errorf("%w: store has %d, got %d", ErrDimensionMismatch, want, got)}
}

// EmbeddingError reports a failure of the embedding provider.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsEmbeddingError reports whether err is or wraps an *EmbeddingError.
func IsEmbeddingError(err error) bool {
	var ee *EmbeddingError
	return errors.As(err, &ee)
}
