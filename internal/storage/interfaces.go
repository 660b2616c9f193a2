package storage

import (
	"context"

	"token-sentinel/internal/domain"
)

// WalletStateStore provides access to wallet_token_states storage.
type WalletStateStore interface {
	// Insert adds a new state record. Returns ErrDuplicateKey if (mint, wallet) exists.
	Insert(ctx context.Context, s *domain.WalletTokenState) error

	// Get retrieves the state for (mint, wallet). Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint, wallet string) (*domain.WalletTokenState, error)

	// Exists reports whether a state record for (mint, wallet) exists.
	Exists(ctx context.Context, mint, wallet string) (bool, error)

	// UpdateStatus sets the holding status and its update timestamp.
	// Returns ErrNotFound if the record does not exist.
	UpdateStatus(ctx context.Context, mint, wallet string, status domain.HoldingStatus, updatedAt int64) error

	// ListByMint retrieves all state records for a mint.
	ListByMint(ctx context.Context, mint string) ([]*domain.WalletTokenState, error)

	// ListByMintAndRole retrieves all state records for a mint with the given role.
	ListByMintAndRole(ctx context.Context, mint string, role domain.Role) ([]*domain.WalletTokenState, error)
}

// AlertLogStore provides access to the append-only alert delivery log.
type AlertLogStore interface {
	// Insert appends one delivery attempt record.
	Insert(ctx context.Context, r *domain.AlertDeliveryRecord) error

	// GetByMint retrieves all delivery records for a mint, ordered by
	// delivered_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.AlertDeliveryRecord, error)
}
