// Package lock provides keyed try-locks for cycle generation and scheduled jobs.
package lock

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process lock table. Entries expire after their ttl so a
// holder that never unlocks cannot block the key forever.
type Memory struct {
	mu    sync.Mutex
	held  map[string]entry
	now   func() time.Time
	token uint64
}

type entry struct {
	token   uint64
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]entry), now: time.Now}
}

func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && (e.expires.IsZero() || now.Before(e.expires)) {
		return nil, false, nil
	}

	m.token++
	mine := entry{token: m.token}
	if ttl > 0 {
		mine.expires = now.Add(ttl)
	}
	m.held[key] = mine

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if e, ok := m.held[key]; ok && e.token == mine.token {
			delete(m.held, key)
		}
	}, true, nil
}
