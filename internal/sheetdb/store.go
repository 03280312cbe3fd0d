// Implements the file-backed store with an mtime-keyed single-slot cache.

package sheetdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrSourceUnavailable is returned when the backing file exists but cannot
	// be read or parsed.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrPersistence is returned when a write did not complete.
	ErrPersistence = errors.New("persistence failure")
)

// Info describes the backing file.
type Info struct {
	Exists  bool
	Size    int64
	ModTime time.Time
}

type entry struct {
	modTime time.Time
	size    int64
	table   *Table
}

// Store owns one workbook file and caches its last parsed content.
type Store struct {
	path  string
	codec Codec
	opts  Options

	mu    sync.Mutex
	cache atomic.Pointer[entry]
}

// NewStore creates a Store for path. The parent directory is created if
// needed; the file itself is not touched until the first Load or Save.
func NewStore(path string, codec Codec, opts Options) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return &Store{path: filepath.Clean(path), codec: codec, opts: opts}, nil
}

// Options returns the normalization options of the store.
func (s *Store) Options() Options {
	return s.opts
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns a copy of the table. A missing file yields an empty table.
func (s *Store) Load() (*Table, error) {
	if fi, err := os.Stat(s.path); err == nil {
		if e := s.cache.Load(); e != nil && e.matches(fi) {
			return e.table.Clone(), nil
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save normalizes t and atomically replaces the backing file with it. The
// cache is updated with the saved content on success.
func (s *Store) Save(t *Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(t)
}

// Modify loads the table, calls fn and saves the result while holding the
// store lock. Nothing is written if fn returns an error.
func (s *Store) Modify(fn func(t *Table) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.loadLocked()
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return s.saveLocked(t)
}

// Invalidate drops the cached table.
func (s *Store) Invalidate() {
	s.cache.Store(nil)
}

// Remove deletes the backing file, if present, and drops the cache.
func (s *Store) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Store(nil)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove %s: %w", ErrPersistence, s.path, err)
	}
	return nil
}

// Stat describes the backing file.
func (s *Store) Stat() (Info, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Info{}, nil
		}
		return Info{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return Info{Exists: true, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Watch invalidates the cache whenever the backing file changes on disk,
// until ctx is canceled.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	name := filepath.Base(s.path)
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != name || event.Op == fsnotify.Chmod {
					continue
				}
				slog.DebugContext(ctx, "Table file changed", "path", s.path, "op", event.Op.String())
				s.Invalidate()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching table file", "path", s.path, "err", err)
			}
		}
	}()
	return nil
}

func (s *Store) loadLocked() (*Table, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.cache.Store(nil)
			t := NewTable()
			Normalize(t, s.opts)
			return t, nil
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.path, err)
	}
	if e := s.cache.Load(); e != nil && e.matches(fi) {
		return e.table.Clone(), nil
	}

	data, err := os.ReadFile(s.path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.path, err)
	}
	t, err := s.codec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.path, err)
	}
	Normalize(t, s.opts)
	s.cache.Store(&entry{modTime: fi.ModTime(), size: fi.Size(), table: t})
	slog.Debug("Loaded table", "path", s.path, "rows", t.Len(), "columns", len(t.Columns))
	return t.Clone(), nil
}

func (s *Store) saveLocked(t *Table) error {
	n := t.Clone()
	Normalize(n, s.opts)

	var buf bytes.Buffer
	if err := s.codec.Encode(&buf, n); err != nil {
		return fmt.Errorf("%w: failed to encode %s: %w", ErrPersistence, s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: failed to write %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: failed to close %s: %w", ErrPersistence, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // G302: data files are world readable
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: failed to replace %s: %w", ErrPersistence, s.path, err)
	}

	fi, err := os.Stat(s.path)
	if err != nil {
		s.cache.Store(nil)
		return nil
	}
	s.cache.Store(&entry{modTime: fi.ModTime(), size: fi.Size(), table: n})
	return nil
}

func (e *entry) matches(fi fs.FileInfo) bool {
	return e.modTime.Equal(fi.ModTime()) && e.size == fi.Size()
}
