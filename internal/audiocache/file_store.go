package audiocache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultExtension is the artifact extension for mp3 producing backends.
const DefaultExtension = ".mp3"

// FileStore keeps one file per artifact in a directory, named <key><ext>.
// Writes go to a hidden temp file in the same directory and are renamed into
// place, so only complete artifacts ever carry the final name.
type FileStore struct {
	dir    string
	ext    string
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed. ext defaults to DefaultExtension.
func NewFileStore(dir, ext string, logger *zap.Logger) (*FileStore, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Err: err}
	}
	return &FileStore{dir: dir, ext: ext, logger: logger}, nil
}

// Dir returns the cache directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key Key) string {
	return filepath.Join(s.dir, string(key)+s.ext)
}

func (s *FileStore) Locator(key Key) Locator {
	return Locator(s.path(key))
}

func (s *FileStore) Exists(ctx context.Context, key Key) (bool, error) {
	if err := checkKey("exists", key); err != nil {
		return false, err
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &StorageError{Op: "exists", Key: key, Err: err}
	}
	return info.Mode().IsRegular(), nil
}

func (s *FileStore) Read(ctx context.Context, key Key) ([]byte, error) {
	if err := checkKey("read", key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "read", Key: key, Err: err}
	}
	return data, nil
}

func (s *FileStore) Write(ctx context.Context, key Key, data []byte) (Locator, error) {
	if err := checkKey("write", key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", &StorageError{Op: "write", Key: key, Err: err}
	}

	// Temp names start with a dot and end in .tmp so List never counts them.
	tmp := filepath.Join(s.dir, "."+string(key)+"."+uuid.NewString()+".tmp")
	if err := writeFileSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return "", &StorageError{Op: "write", Key: key, Err: err}
	}

	final := s.path(key)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", &StorageError{Op: "write", Key: key, Err: err}
	}

	s.logger.Debug("Stored audio artifact",
		zap.String("cacheKey", key.String()),
		zap.Int("sizeBytes", len(data)))
	return Locator(final), nil
}

func writeFileSync(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *FileStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, &StorageError{Op: "list", Err: err}
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		key, ok := s.keyFromName(de.Name())
		if !ok || !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, &StorageError{Op: "list", Key: key, Err: err}
		}
		entries = append(entries, Entry{
			Key:       key,
			SizeBytes: uint64(info.Size()),
			Locator:   s.Locator(key),
		})
	}
	return entries, nil
}

func (s *FileStore) keyFromName(name string) (Key, bool) {
	if !strings.HasSuffix(name, s.ext) {
		return "", false
	}
	key := Key(strings.TrimSuffix(name, s.ext))
	return key, key.Valid()
}

func (s *FileStore) TotalSize(ctx context.Context) (uint64, error) {
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

func (s *FileStore) Count(ctx context.Context) (uint64, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return uint64(len(entries)), nil
}

func (s *FileStore) ClearAll(ctx context.Context) (uint64, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	var removed uint64
	for _, e := range entries {
		if err := os.Remove(s.path(e.Key)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, &StorageError{Op: "clear", Key: e.Key, Err: err}
		}
		removed++
	}

	s.logger.Info("Cleared audio cache",
		zap.String("dir", s.dir),
		zap.Uint64("removed", removed))
	return removed, nil
}

func (s *FileStore) ClearIfOver(ctx context.Context, maxCount uint64) (uint64, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count <= maxCount {
		return 0, nil
	}
	return s.ClearAll(ctx)
}
