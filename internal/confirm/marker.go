package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Marker is the cross-process record that a confirmation for a dedup key has
// started. TrySet has set-if-absent semantics and returns an owner token;
// Clear removes the marker only when the token still matches.
type Marker interface {
	TrySet(ctx context.Context, key string) (token string, ok bool, err error)
	Clear(ctx context.Context, key, token string) error
}

type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryMarker keeps markers in process memory. Only suitable for a single
// instance or for tests.
type MemoryMarker struct {
	ttl      time.Duration
	now      func() time.Time
	newToken func() string

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryMarker(ttl time.Duration) *MemoryMarker {
	return &MemoryMarker{
		ttl:      ttl,
		now:      time.Now,
		newToken: uuid.NewString,
		entries:  make(map[string]memoryEntry),
	}
}

func (m *MemoryMarker) TrySet(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.cleanupExpiredLocked(now)

	if _, exists := m.entries[key]; exists {
		return "", false, nil
	}

	token := m.newToken()
	m.entries[key] = memoryEntry{token: token, expiresAt: now.Add(m.ttl)}
	return token, true, nil
}

func (m *MemoryMarker) Clear(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && e.token == token {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryMarker) cleanupExpiredLocked(now time.Time) {
	for key, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, key)
		}
	}
}
