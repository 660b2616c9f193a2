package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/storage"
)

// WalletStateStore implements storage.WalletStateStore using PostgreSQL.
type WalletStateStore struct {
	pool *Pool
}

// NewWalletStateStore creates a new WalletStateStore.
func NewWalletStateStore(pool *Pool) *WalletStateStore {
	return &WalletStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStateStore = (*WalletStateStore)(nil)

// Insert adds a new state record. Returns ErrDuplicateKey if (mint, wallet) exists.
func (s *WalletStateStore) Insert(ctx context.Context, st *domain.WalletTokenState) error {
	if st == nil || st.Mint == "" || st.Wallet == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_token_states (
			mint, wallet, role, initial_raw_balance, status, last_status_update, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	// Raw balances are full-range uint64, stored as NUMERIC(20,0).
	_, err := s.pool.Exec(ctx, query,
		st.Mint,
		st.Wallet,
		string(st.Role),
		strconv.FormatUint(st.InitialRawBalance, 10),
		string(st.Status),
		st.LastStatusUpdate,
		st.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert wallet state: %w", err)
	}
	return nil
}

// Get retrieves the state for (mint, wallet). Returns ErrNotFound if not exists.
func (s *WalletStateStore) Get(ctx context.Context, mint, wallet string) (*domain.WalletTokenState, error) {
	query := `
		SELECT mint, wallet, role, initial_raw_balance::text, status, last_status_update, created_at
		FROM wallet_token_states
		WHERE mint = $1 AND wallet = $2
	`

	row := s.pool.QueryRow(ctx, query, mint, wallet)
	st, err := scanWalletState(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet state: %w", err)
	}
	return st, nil
}

// Exists reports whether a state record for (mint, wallet) exists.
func (s *WalletStateStore) Exists(ctx context.Context, mint, wallet string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM wallet_token_states WHERE mint = $1 AND wallet = $2
		)
	`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, mint, wallet).Scan(&exists); err != nil {
		return false, fmt.Errorf("check wallet state exists: %w", err)
	}
	return exists, nil
}

// UpdateStatus sets the holding status and its update timestamp.
func (s *WalletStateStore) UpdateStatus(ctx context.Context, mint, wallet string, status domain.HoldingStatus, updatedAt int64) error {
	query := `
		UPDATE wallet_token_states
		SET status = $3, last_status_update = $4
		WHERE mint = $1 AND wallet = $2
	`

	tag, err := s.pool.Exec(ctx, query, mint, wallet, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("update wallet state status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListByMint retrieves all state records for a mint.
func (s *WalletStateStore) ListByMint(ctx context.Context, mint string) ([]*domain.WalletTokenState, error) {
	query := `
		SELECT mint, wallet, role, initial_raw_balance::text, status, last_status_update, created_at
		FROM wallet_token_states
		WHERE mint = $1
		ORDER BY created_at ASC, wallet ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("list wallet states by mint: %w", err)
	}
	defer rows.Close()

	return scanWalletStates(rows)
}

// ListByMintAndRole retrieves all state records for a mint with the given role.
func (s *WalletStateStore) ListByMintAndRole(ctx context.Context, mint string, role domain.Role) ([]*domain.WalletTokenState, error) {
	query := `
		SELECT mint, wallet, role, initial_raw_balance::text, status, last_status_update, created_at
		FROM wallet_token_states
		WHERE mint = $1 AND role = $2
		ORDER BY created_at ASC, wallet ASC
	`

	rows, err := s.pool.Query(ctx, query, mint, string(role))
	if err != nil {
		return nil, fmt.Errorf("list wallet states by mint and role: %w", err)
	}
	defer rows.Close()

	return scanWalletStates(rows)
}

// scanWalletState scans a single row into WalletTokenState.
func scanWalletState(row pgx.Row) (*domain.WalletTokenState, error) {
	var st domain.WalletTokenState
	var role, status, rawBalance string

	err := row.Scan(
		&st.Mint,
		&st.Wallet,
		&role,
		&rawBalance,
		&status,
		&st.LastStatusUpdate,
		&st.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	balance, err := strconv.ParseUint(rawBalance, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse initial_raw_balance %q: %w", rawBalance, err)
	}

	st.Role = domain.Role(role)
	st.InitialRawBalance = balance
	st.Status = domain.HoldingStatus(status)
	return &st, nil
}

// scanWalletStates scans multiple rows.
func scanWalletStates(rows pgx.Rows) ([]*domain.WalletTokenState, error) {
	var states []*domain.WalletTokenState

	for rows.Next() {
		st, err := scanWalletState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet state row: %w", err)
		}
		states = append(states, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet state rows: %w", err)
	}

	return states, nil
}
