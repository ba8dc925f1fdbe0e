package audiocache

import "context"

// Locator is an opaque reference to a stored artifact. For FileStore it is the
// artifact path; for BoltStore it is a "bolt://" URI.
type Locator string

// Entry describes one materialized artifact.
type Entry struct {
	Key       Key     `json:"key"`
	SizeBytes uint64  `json:"size_bytes"`
	Locator   Locator `json:"locator"`
}

// Store holds immutable audio artifacts keyed by Key.
//
// Write must be all-or-nothing: a concurrent Exists or Read never observes a
// partial artifact. Writing the same key twice is allowed and last writer wins.
// I/O failures are reported as *StorageError, never as ErrNotFound.
type Store interface {
	Exists(ctx context.Context, key Key) (bool, error)
	Read(ctx context.Context, key Key) ([]byte, error)
	Write(ctx context.Context, key Key, data []byte) (Locator, error)
	List(ctx context.Context) ([]Entry, error)
	TotalSize(ctx context.Context) (uint64, error)
	Count(ctx context.Context) (uint64, error)
	ClearAll(ctx context.Context) (uint64, error)
	ClearIfOver(ctx context.Context, maxCount uint64) (uint64, error)
	Locator(key Key) Locator
}

func checkKey(op string, key Key) error {
	if !key.Valid() {
		return &StorageError{Op: op, Key: key, Err: errInvalidKey}
	}
	return nil
}
