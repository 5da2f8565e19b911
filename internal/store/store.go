// Package store provides the key-scoped persistence port for the
// listening engine: a small string KV used for the session snapshot, the
// voice assignment cache and the voice-cycle flag. Corrupt or missing
// values fail open to defaults, never error out playback.
package store

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
)

// KV is a key-scoped string store. Implementations must tolerate missing
// keys and unreadable values by reporting absence, not failure.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemKV is an in-memory KV used in tests and as the fail-open fallback
// when no data directory is available.
type MemKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemKV creates an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{values: make(map[string]string)}
}

// Get returns the value for key.
func (m *MemKV) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key.
func (m *MemKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete removes key.
func (m *MemKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FileKV persists each key as a gzip-compressed file in a directory.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFileKV creates a file-backed KV rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".gz")
}

// Get returns the value for key. Unreadable or corrupt files report
// absence; persistence degrades, playback does not.
func (f *FileKV) Get(key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path(key))
	if err != nil {
		return "", false
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		log.Debug("discarding corrupt store entry", "key", key, "error", err)
		return "", false
	}
	defer zr.Close() //nolint:errcheck
	value, err := io.ReadAll(zr)
	if err != nil {
		log.Debug("discarding corrupt store entry", "key", key, "error", err)
		return "", false
	}
	return string(value), true
}

// Set stores value under key, replacing any previous value atomically.
func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(value)); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(key))
}

// Delete removes key. Deleting a missing key is not an error.
func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
