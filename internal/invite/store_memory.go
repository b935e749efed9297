package invite

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zavodil/near-social-auth/pkg/platform/sentinel"
)

// MemoryStore is the in-memory invite ledger used by unit tests and local
// runs. Semantics mirror PostgresStore, including the conditional decrement.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	invites map[int64]*Invite
}

// NewMemory constructs an empty in-memory invite store.
func NewMemory() *MemoryStore {
	return &MemoryStore{nextID: 1, invites: make(map[int64]*Invite)}
}

// Add seeds an invite and returns its assigned id.
func (s *MemoryStore) Add(inv Invite) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv.ID = s.nextID
	s.nextID++
	s.invites[inv.ID] = &inv
	return inv.ID
}

// Get returns a copy of the invite, for test assertions.
func (s *MemoryStore) Get(id int64) (Invite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return Invite{}, false
	}
	return *inv, true
}

func (s *MemoryStore) CheckInvite(_ context.Context, code, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.invites))
	for id := range s.invites {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		inv := s.invites[id]
		if inv.Code == code && inv.Binding.Matches(accountID) && inv.Attempts > 0 {
			return id, nil
		}
	}
	return 0, nil
}

func (s *MemoryStore) Spend(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invites[id]
	if !ok || inv.Attempts <= 0 {
		return fmt.Errorf("spend invite %d: %w", id, sentinel.ErrExhausted)
	}
	inv.Attempts--
	return nil
}
