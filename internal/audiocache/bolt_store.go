package audiocache

import (
	"bytes"
	"context"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const defaultBoltBucket = "tts_audio"

// BoltStore keeps artifacts as values of a single bbolt bucket. Every
// mutation is one transaction, which gives all-or-nothing visibility.
type BoltStore struct {
	db     *bolt.DB
	path   string
	bucket []byte
	logger *zap.Logger
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database file at path.
func OpenBoltStore(path string, logger *zap.Logger) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, &StorageError{Op: "init", Err: err}
	}
	bucket := []byte(defaultBoltBucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, &StorageError{Op: "init", Err: err}
	}
	return &BoltStore{db: db, path: path, bucket: bucket, logger: logger}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Locator(key Key) Locator {
	return Locator("bolt://" + s.path + "#" + string(key))
}

func (s *BoltStore) Exists(ctx context.Context, key Key) (bool, error) {
	if err := checkKey("exists", key); err != nil {
		return false, err
	}
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(s.bucket).Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		return false, &StorageError{Op: "exists", Key: key, Err: err}
	}
	return ok, nil
}

func (s *BoltStore) Read(ctx context.Context, key Key) ([]byte, error) {
	if err := checkKey("read", key); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}
	return out, nil
}

func (s *BoltStore) Write(ctx context.Context, key Key, data []byte) (Locator, error) {
	if err := checkKey("write", key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", &StorageError{Op: "write", Key: key, Err: err}
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), data)
	})
	if err != nil {
		return "", &StorageError{Op: "write", Key: key, Err: err}
	}
	s.logger.Debug("Stored audio artifact",
		zap.String("cacheKey", key.String()),
		zap.Int("sizeBytes", len(data)))
	return s.Locator(key), nil
}

func (s *BoltStore) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			key := Key(k)
			if !key.Valid() {
				return nil
			}
			entries = append(entries, Entry{
				Key:       key,
				SizeBytes: uint64(len(v)),
				Locator:   s.Locator(key),
			})
			return nil
		})
	})
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return entries, nil
}

func (s *BoltStore) TotalSize(ctx context.Context) (uint64, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, e := range entries {
		total += e.SizeBytes
	}
	return total, nil
}

func (s *BoltStore) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		n = uint64(len(artifactKeys(tx.Bucket(s.bucket))))
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// artifactKeys returns copies of the bucket keys that are valid cache keys.
// Anything else in the bucket is not an artifact and is left alone.
func artifactKeys(b *bolt.Bucket) [][]byte {
	var keys [][]byte
	b.ForEach(func(k, _ []byte) error {
		if Key(k).Valid() {
			keys = append(keys, bytes.Clone(k))
		}
		return nil
	})
	return keys
}

func (s *BoltStore) ClearAll(ctx context.Context) (uint64, error) {
	return s.clear(0, false)
}

func (s *BoltStore) ClearIfOver(ctx context.Context, maxCount uint64) (uint64, error) {
	return s.clear(maxCount, true)
}

// clear deletes every artifact key. With conditional set, the count check
// runs in the same transaction as the delete.
func (s *BoltStore) clear(maxCount uint64, conditional bool) (uint64, error) {
	var removed uint64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		keys := artifactKeys(b)
		if conditional && uint64(len(keys)) <= maxCount {
			return nil
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = uint64(len(keys))
		return nil
	})
	if err != nil {
		return 0, &StorageError{Op: "clear", Err: err}
	}
	if removed > 0 {
		s.logger.Info("Cleared audio cache",
			zap.String("path", s.path),
			zap.Uint64("removed", removed))
	}
	return removed, nil
}
