package memory

import (
	"context"
	"errors"
	"testing"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/storage"
)

func TestAlertLogStore_InsertAndGetByMint(t *testing.T) {
	store := NewAlertLogStore()
	ctx := context.Background()

	records := []*domain.AlertDeliveryRecord{
		{Signature: "sig2", Mint: "mint1", Wallet: "w1", Role: domain.RoleSniper, Action: "sell", Recipient: 42, Outcome: domain.DeliveryOutcomeSent, DeliveredAt: 2000},
		{Signature: "sig1", Mint: "mint1", Wallet: "w1", Role: domain.RoleSniper, Action: "buy", Recipient: 42, Outcome: domain.DeliveryOutcomeSent, DeliveredAt: 1000},
		{Signature: "sig3", Mint: "mint2", Wallet: "w2", Role: domain.RoleTeam, Action: "sell", Recipient: 7, Outcome: domain.DeliveryOutcomeBlocked, DeliveredAt: 1500},
	}
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %s failed: %v", r.Signature, err)
		}
	}

	result, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result))
	}

	// Ordered by delivered_at ASC
	if result[0].Signature != "sig1" || result[1].Signature != "sig2" {
		t.Errorf("Wrong order: got %s, %s", result[0].Signature, result[1].Signature)
	}
}

func TestAlertLogStore_InvalidInput(t *testing.T) {
	store := NewAlertLogStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.AlertDeliveryRecord{Mint: "mint1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty signature, got %v", err)
	}
}

func TestAlertLogStore_EmptyMint(t *testing.T) {
	store := NewAlertLogStore()
	ctx := context.Background()

	result, err := store.GetByMint(ctx, "unknown")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected no records, got %d", len(result))
	}
}
