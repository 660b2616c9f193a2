package memory

import (
	"context"
	"sync"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/storage"
)

// WalletStateStore is an in-memory implementation of storage.WalletStateStore.
type WalletStateStore struct {
	mu     sync.RWMutex
	states map[stateKey]*domain.WalletTokenState
}

type stateKey struct {
	mint   string
	wallet string
}

// NewWalletStateStore creates a new in-memory wallet state store.
func NewWalletStateStore() *WalletStateStore {
	return &WalletStateStore{
		states: make(map[stateKey]*domain.WalletTokenState),
	}
}

var _ storage.WalletStateStore = (*WalletStateStore)(nil)

// Insert adds a new state record. Returns ErrDuplicateKey if (mint, wallet) exists.
func (s *WalletStateStore) Insert(_ context.Context, st *domain.WalletTokenState) error {
	if st == nil || st.Mint == "" || st.Wallet == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := stateKey{st.Mint, st.Wallet}
	if _, exists := s.states[k]; exists {
		return storage.ErrDuplicateKey
	}

	stateCopy := *st
	s.states[k] = &stateCopy
	return nil
}

// Get retrieves the state for (mint, wallet). Returns ErrNotFound if not exists.
func (s *WalletStateStore) Get(_ context.Context, mint, wallet string) (*domain.WalletTokenState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.states[stateKey{mint, wallet}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	stateCopy := *st
	return &stateCopy, nil
}

// Exists reports whether a state record for (mint, wallet) exists.
func (s *WalletStateStore) Exists(_ context.Context, mint, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.states[stateKey{mint, wallet}]
	return exists, nil
}

// UpdateStatus sets the holding status and its update timestamp.
func (s *WalletStateStore) UpdateStatus(_ context.Context, mint, wallet string, status domain.HoldingStatus, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.states[stateKey{mint, wallet}]
	if !exists {
		return storage.ErrNotFound
	}

	st.Status = status
	st.LastStatusUpdate = updatedAt
	return nil
}

// ListByMint retrieves all state records for a mint.
func (s *WalletStateStore) ListByMint(_ context.Context, mint string) ([]*domain.WalletTokenState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.WalletTokenState
	for k, st := range s.states {
		if k.mint != mint {
			continue
		}
		stateCopy := *st
		out = append(out, &stateCopy)
	}
	return out, nil
}

// ListByMintAndRole retrieves all state records for a mint with the given role.
func (s *WalletStateStore) ListByMintAndRole(_ context.Context, mint string, role domain.Role) ([]*domain.WalletTokenState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.WalletTokenState
	for k, st := range s.states {
		if k.mint != mint || st.Role != role {
			continue
		}
		stateCopy := *st
		out = append(out, &stateCopy)
	}
	return out, nil
}
