package locks

import (
	"context"
	"sync"

	"github.com/eswasthya/portal/backend/internal/domain/providers"
	apperrors "github.com/eswasthya/portal/backend/pkg/errors"
)

// LocalRecordLocker is an in-process keyed mutex used when Redis is unavailable
type LocalRecordLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

var _ providers.RecordLocker = (*LocalRecordLocker)(nil)

// NewLocalRecordLocker creates an empty locker
func NewLocalRecordLocker() *LocalRecordLocker {
	return &LocalRecordLocker{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done
func (l *LocalRecordLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, apperrors.FromUpstream("timed out waiting for record lock", ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *LocalRecordLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
