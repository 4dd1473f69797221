package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a simple in-process store for local/dev use and tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[string][]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]Record)}
}

func (s *InMemoryStore) Append(_ context.Context, id Identity, userText, assistantText string) error {
	if id.UserID == "" {
		return fmt.Errorf("append: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	pair := []Record{
		{UserID: id.UserID, GroupID: id.GroupID, Content: userText, Role: RoleUser, Timestamp: now},
		{UserID: id.UserID, GroupID: id.GroupID, Content: assistantText, Role: RoleAssistant, Timestamp: now},
	}
	// Both halves are staged before anything is appended so a failure leaves
	// no partial exchange visible, matching the transactional store.
	for i := range pair {
		s.nextID++
		pair[i].ID = s.nextID
	}
	s.records[id.Key()] = append(s.records[id.Key()], pair...)
	return nil
}

func (s *InMemoryStore) Recent(_ context.Context, id Identity, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 6
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.records[id.Key()]
	if len(all) == 0 {
		return nil, nil
	}

	users := lastN(all, RoleUser, limit)
	assistants := lastN(all, RoleAssistant, limit)

	merged := make([]Record, 0, len(users)+len(assistants))
	merged = append(merged, users...)
	merged = append(merged, assistants...)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp.Equal(merged[j].Timestamp) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

func (s *InMemoryStore) Close() error { return nil }

func lastN(records []Record, role Role, n int) []Record {
	out := make([]Record, 0, n)
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		if records[i].Role == role {
			out = append(out, records[i])
		}
	}
	return out
}
