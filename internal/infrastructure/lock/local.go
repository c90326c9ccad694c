// Package lock grants per-source poll exclusivity.
package lock

import (
	"context"
	"sync"
	"time"

	"CTIScraper/internal/ports"
)

// Local guards keys within one process. Held keys expire after their ttl.
type Local struct {
	mu    sync.Mutex
	now   func() time.Time
	held  map[string]localEntry
	token uint64
}

type localEntry struct {
	token   uint64
	expires time.Time
}

var _ ports.SourceLocker = (*Local)(nil)

// NewLocal builds an empty in-process locker.
func NewLocal() *Local {
	return &Local{now: time.Now, held: map[string]localEntry{}}
}

// TryLock takes key unless a live holder exists.
func (l *Local) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if entry, ok := l.held[key]; ok && (entry.expires.IsZero() || now.Before(entry.expires)) {
		return nil, false, nil
	}

	l.token++
	entry := localEntry{token: l.token}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	l.held[key] = entry

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.held[key]; ok && current.token == entry.token {
			delete(l.held, key)
		}
	}
	return release, true, nil
}
