package clickhouse

import (
	"context"
	"fmt"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/storage"
)

// AlertLogStore implements storage.AlertLogStore using ClickHouse. The
// delivery log is append-only; MergeTree never rejects duplicates, which is
// acceptable for an audit trail.
type AlertLogStore struct {
	conn *Conn
}

// NewAlertLogStore creates a new AlertLogStore.
func NewAlertLogStore(conn *Conn) *AlertLogStore {
	return &AlertLogStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AlertLogStore = (*AlertLogStore)(nil)

// Insert appends one delivery attempt record.
func (s *AlertLogStore) Insert(ctx context.Context, r *domain.AlertDeliveryRecord) error {
	if r == nil || r.Signature == "" || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alert_deliveries (
			signature, mint, wallet, role, action, recipient, outcome, delivered_at
		)
	`

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		r.Signature, r.Mint, r.Wallet, string(r.Role),
		r.Action, r.Recipient, r.Outcome, uint64(r.DeliveredAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByMint retrieves all delivery records for a mint, ordered by delivered_at ASC.
func (s *AlertLogStore) GetByMint(ctx context.Context, mint string) ([]*domain.AlertDeliveryRecord, error) {
	query := `
		SELECT signature, mint, wallet, role, action, recipient, outcome, delivered_at
		FROM alert_deliveries
		WHERE mint = ?
		ORDER BY delivered_at ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query alert deliveries: %w", err)
	}
	defer rows.Close()

	var records []*domain.AlertDeliveryRecord
	for rows.Next() {
		var r domain.AlertDeliveryRecord
		var role string
		var deliveredAt uint64

		err := rows.Scan(
			&r.Signature, &r.Mint, &r.Wallet, &role,
			&r.Action, &r.Recipient, &r.Outcome, &deliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert delivery row: %w", err)
		}

		r.Role = domain.Role(role)
		r.DeliveredAt = int64(deliveredAt)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert delivery rows: %w", err)
	}

	return records, nil
}
