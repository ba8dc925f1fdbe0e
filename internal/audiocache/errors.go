package audiocache

import (
	"errors"
	"fmt"

	"github.com/satriahrh/voicetutor/domain/repositories"
)

var (
	// ErrEmptyText is returned when the text to synthesize is empty after trimming.
	ErrEmptyText = errors.New("audiocache: empty text")
	// ErrNotFound is returned by Store.Read when no artifact exists for the key.
	ErrNotFound = errors.New("audiocache: not found")

	errInvalidKey = errors.New("invalid key")
)

// StorageError reports an I/O failure of the artifact store. It is never used
// for a plain miss, which is ErrNotFound.
type StorageError struct {
	Op  string
	Key Key
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("audiocache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("audiocache: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SynthesisError reports a failure of the synthesis backend, including timeouts
// and backends that returned no audio.
type SynthesisError struct {
	Language string
	Rate     repositories.Rate
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("audiocache: synthesis failed (language=%s, rate=%s): %v", e.Language, e.Rate, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsSynthesisError reports whether err is or wraps a *SynthesisError.
func IsSynthesisError(err error) bool {
	var se *SynthesisError
	return errors.As(err, &se)
}
