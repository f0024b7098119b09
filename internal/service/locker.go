package service

import (
	"context"
	"sync"
	"time"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// LocalLocker is an in-process Locker for single-instance deployments and
// tests. Entries expire after their TTL so a crashed holder cannot wedge a
// match forever.
type LocalLocker struct {
	mu    sync.Mutex
	seq   uint64
	held  map[string]localLease
	clock func() time.Time
}

type localLease struct {
	token   uint64
	expires time.Time
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localLease), clock: time.Now}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	now := l.clock()

	l.mu.Lock()
	if lease, ok := l.held[key]; ok && now.Before(lease.expires) {
		l.mu.Unlock()
		return nil, domain.ErrConflict
	}
	l.seq++
	token := l.seq
	l.held[key] = localLease{token: token, expires: now.Add(ttl)}
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if lease, ok := l.held[key]; ok && lease.token == token {
				delete(l.held, key)
			}
		})
	}, nil
}
