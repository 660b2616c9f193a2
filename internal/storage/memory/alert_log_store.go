package memory

import (
	"context"
	"sort"
	"sync"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/storage"
)

// AlertLogStore is an in-memory implementation of storage.AlertLogStore.
type AlertLogStore struct {
	mu      sync.RWMutex
	records []*domain.AlertDeliveryRecord
}

// NewAlertLogStore creates a new in-memory alert log store.
func NewAlertLogStore() *AlertLogStore {
	return &AlertLogStore{}
}

var _ storage.AlertLogStore = (*AlertLogStore)(nil)

// Insert appends one delivery attempt record.
func (s *AlertLogStore) Insert(_ context.Context, r *domain.AlertDeliveryRecord) error {
	if r == nil || r.Signature == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	recordCopy := *r
	s.records = append(s.records, &recordCopy)
	return nil
}

// GetByMint retrieves all delivery records for a mint, ordered by delivered_at ASC.
func (s *AlertLogStore) GetByMint(_ context.Context, mint string) ([]*domain.AlertDeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.AlertDeliveryRecord
	for _, r := range s.records {
		if r.Mint != mint {
			continue
		}
		recordCopy := *r
		out = append(out, &recordCopy)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DeliveredAt < out[j].DeliveredAt
	})
	return out, nil
}
