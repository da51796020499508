package kv

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const fileSuffix = ".json"

var (
	errKeyEmpty   = errors.New("key cannot be empty")
	errKeyInvalid = errors.New("key contains a path separator")
)

// Observer is notified after a key is written or removed.
type Observer interface {
	// OnSet is called after key has been persisted or deleted.
	OnSet(key string)
}

// Store persists values under fixed keys in a directory.
type Store struct {
	fs  afero.Fs
	dir string

	mu        sync.Mutex
	observers []Observer
}

// New returns a Store rooted at dir on fsys, creating dir if needed.
func New(fsys afero.Fs, dir string) (*Store, error) {
	if err := fsys.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &Store{fs: fsys, dir: dir}, nil
}

// NewOS returns a Store on the host file system.
func NewOS(dir string) (*Store, error) {
	return New(afero.NewOsFs(), dir)
}

// Dir returns the directory holding the key files.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the file name, relative to Dir, that holds key.
func FileName(key string) string {
	return key + fileSuffix
}

// AddObserver registers o to be notified of writes.
func (s *Store) AddObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Get returns the value stored under key.
//
// A key that was never written returns ok=false and no error.
func (s *Store) Get(key string) (data []byte, ok bool, err error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err = afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Set replaces the value stored under key.
func (s *Store) Set(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	f, err := afero.TempFile(s.fs, s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", key, err), f.Close(), s.fs.Remove(tmp))
	}
	if err := f.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close %s: %w", key, err), s.fs.Remove(tmp))
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		return errors.Join(fmt.Errorf("failed to rename %s: %w", key, err), s.fs.Remove(tmp))
	}
	s.notify(key)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	s.notify(key)
	return nil
}

// Keys returns the sorted list of keys currently stored.
func (s *Store) Keys() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileSuffix))
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" {
		return "", errKeyEmpty
	}
	if strings.ContainsAny(key, `/\`) {
		return "", errKeyInvalid
	}
	return filepath.Join(s.dir, FileName(key)), nil
}

func (s *Store) notify(key string) {
	s.mu.Lock()
	obs := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, o := range obs {
		o.OnSet(key)
	}
}
