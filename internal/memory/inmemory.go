package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process history store for local/dev use.
type InMemoryStore struct {
	mu             sync.RWMutex
	turns          map[string][]Turn
	retentionLimit int
}

func NewInMemoryStore(retentionLimit int) *InMemoryStore {
	if retentionLimit <= 0 {
		retentionLimit = 20
	}
	return &InMemoryStore{
		turns:          make(map[string][]Turn),
		retentionLimit: retentionLimit,
	}
}

func (s *InMemoryStore) Append(_ context.Context, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	arr := append(s.turns[turn.SessionID], turn)
	if over := len(arr) - s.retentionLimit; over > 0 {
		arr = arr[over:]
	}
	s.turns[turn.SessionID] = arr
	return nil
}

func (s *InMemoryStore) History(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.turns[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	out := make([]Turn, len(arr))
	copy(out, arr)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
