package kv

import (
	stderrors "errors"
	"path/filepath"
	"sync"

	"github.com/jmgilman/go/errors"
)

// QuotaStore limits the total size (keys plus values) held by the wrapped
// store, the way a browser origin quota does.
type QuotaStore struct {
	mu    sync.Mutex
	inner Store
	limit int64
	used  int64
}

// WithQuota wraps inner with a byte limit. A limit <= 0 returns inner as is.
func WithQuota(inner Store, limit int64) (Store, error) {
	if limit <= 0 {
		return inner, nil
	}
	q := &QuotaStore{inner: inner, limit: limit}
	keys, err := inner.Keys("")
	if err != nil {
		return nil, err
	}
	for _, k := range keys {
		v, err := inner.Get(k)
		if err != nil {
			continue
		}
		q.used += int64(len(k) + len(v))
	}
	return q, nil
}

// Used returns the bytes currently accounted for.
func (q *QuotaStore) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

func (q *QuotaStore) Get(key string) ([]byte, error) {
	return q.inner.Get(key)
}

func (q *QuotaStore) Set(key string, value []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	old := q.sizeOf(key)
	next := q.used - old + int64(len(key)+len(value))
	if next > q.limit {
		return errors.WithContextMap(
			errors.Newf(CodeQuotaExceeded, "quota exceeded writing %s", key),
			map[string]interface{}{"limit": q.limit, "used": q.used, "requested": len(key) + len(value)},
		)
	}
	if err := q.inner.Set(key, value); err != nil {
		return err
	}
	q.used = next
	return nil
}

func (q *QuotaStore) Delete(key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	old := q.sizeOf(key)
	if err := q.inner.Delete(key); err != nil {
		return err
	}
	q.used -= old
	return nil
}

func (q *QuotaStore) Keys(prefix string) ([]string, error) {
	return q.inner.Keys(prefix)
}

func (q *QuotaStore) Close() error {
	return q.inner.Close()
}

func (q *QuotaStore) sizeOf(key string) int64 {
	v, err := q.inner.Get(key)
	if err != nil {
		return 0
	}
	return int64(len(key) + len(v))
}

// Open builds a store by kind ("memory", "fs" or "sqlite") rooted at dir and
// applies the quota.
func Open(kind, dir string, quota int64) (Store, error) {
	var (
		s   Store
		err error
	)
	switch kind {
	case "memory":
		s = NewMemory()
	case "fs":
		s, err = OpenDir(dir)
	case "sqlite":
		s, err = OpenSQLite(filepath.Join(dir, "projectfs.db"))
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown store kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return WithQuota(s, quota)
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
