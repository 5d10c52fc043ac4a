package kv

import (
	stderrors "errors"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
)

const (
	fsDir     = "kv"
	tmpSuffix = ".tmp"
)

// FSStore stores one file per key under <root>/kv. Writes go to a temp
// file first and are renamed into place, so a crash never leaves a torn value.
type FSStore struct {
	mu     sync.Mutex
	fs     billy.Filesystem
	closed bool
}

// OpenDir opens (creating if needed) a filesystem store rooted at dir.
func OpenDir(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, errors.CodeInternal, "create data dir %s", dir)
	}
	return NewFS(osfs.New(dir))
}

// NewFS creates a store on an arbitrary billy filesystem (memfs in tests).
func NewFS(fs billy.Filesystem) (*FSStore, error) {
	if err := fs.MkdirAll(fsDir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create kv dir")
	}
	return &FSStore{fs: fs}, nil
}

func (s *FSStore) filename(key string) string {
	return s.fs.Join(fsDir, url.PathEscape(key))
}

func (s *FSStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	data, err := util.ReadFile(s.fs, s.filename(key))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, errors.CodeInternal, "read %s", key)
	}
	return data, nil
}

func (s *FSStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	name := s.filename(key)
	tmp := name + tmpSuffix
	if err := util.WriteFile(s.fs, tmp, value, 0644); err != nil {
		s.fs.Remove(tmp)
		return errors.Wrapf(err, errors.CodeInternal, "write %s", key)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		s.fs.Remove(tmp)
		return errors.Wrapf(err, errors.CodeInternal, "commit %s", key)
	}
	return nil
}

func (s *FSStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.fs.Remove(s.filename(key)); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, errors.CodeInternal, "delete %s", key)
	}
	return nil
}

func (s *FSStore) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	entries, err := s.fs.ReadDir(fsDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list kv dir")
	}

	var keys []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		key, err := url.PathUnescape(e.Name())
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
