package models

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery marks a user error: an empty or otherwise unusable query.
// It surfaces as a 4xx at the transport layer, never as a system failure.
var ErrInvalidQuery = errors.New("invalid query")

// ErrDeadlineExceeded terminates generation when the overall deadline expires
// mid-retry; no further attempt is started once it has passed.
var ErrDeadlineExceeded = errors.New("generation deadline exceeded")

// DimensionMismatchError is a build-time fatal error: the process must not
// serve queries over an index whose vectors disagree on dimension.
type DimensionMismatchError struct {
	ChunkID int
	Want    int
	Got     int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("chunk %d: embedding dimension %d, index expects %d", e.ChunkID, e.Got, e.Want)
}

// EmbeddingError wraps an embedding-provider failure, including a provider
// returning a vector of the wrong dimension.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError is the terminal outcome of a failed generation, after the
// retry policy has run its course.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// retryableError marks a transient completion failure (timeout, rate limit,
// 5xx-class, transport error) that the generation client may retry.
type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Retryable wraps err so IsRetryable reports true for it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err was marked transient.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
