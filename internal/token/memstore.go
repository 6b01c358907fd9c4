package token

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemStore keeps tokens in memory, for dev and tests. A single mutex guards
// the map; Claim's check-and-flip runs entirely under it, which satisfies
// the per-token atomicity contract.
type MemStore struct {
	mu     sync.Mutex
	byCode map[string]*Token
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{byCode: make(map[string]*Token)}
}

// Insert adds a token, rejecting duplicate codes.
func (m *MemStore) Insert(ctx context.Context, t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byCode[t.Code]; exists {
		return fmt.Errorf("token code %q already exists", t.Code)
	}
	cp := t
	m.byCode[t.Code] = &cp
	return nil
}

// GetByCode returns a snapshot of the token. The snapshot is not
// linearizable with a concurrent Claim and must not be used to make a
// second commit decision.
func (m *MemStore) GetByCode(ctx context.Context, code string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byCode[code]
	if !ok {
		return Token{}, ErrNotFound
	}
	return *t, nil
}

// Claim flips Active to false if the token is still active and unexpired.
func (m *MemStore) Claim(ctx context.Context, code string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byCode[code]
	if !ok {
		return false, ErrNotFound
	}
	if !t.Active || t.Expired(now) {
		return false, nil
	}
	t.Active = false
	return true, nil
}
