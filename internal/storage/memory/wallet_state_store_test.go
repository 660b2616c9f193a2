package memory

import (
	"context"
	"errors"
	"testing"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/storage"
)

func TestWalletStateStore_InsertAndGet(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	state := &domain.WalletTokenState{
		Mint:              "mint1",
		Wallet:            "wallet1",
		Role:              domain.RoleCreator,
		InitialRawBalance: 500_000_000,
		Status:            domain.StatusGreen,
		LastStatusUpdate:  1704067200000,
		CreatedAt:         1704067200000,
	}

	if err := store.Insert(ctx, state); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.Get(ctx, "mint1", "wallet1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if result.Role != domain.RoleCreator {
		t.Errorf("Role mismatch: got %s, want %s", result.Role, domain.RoleCreator)
	}
	if result.InitialRawBalance != 500_000_000 {
		t.Errorf("InitialRawBalance mismatch: got %d", result.InitialRawBalance)
	}
	if result.Status != domain.StatusGreen {
		t.Errorf("Status mismatch: got %s", result.Status)
	}
}

func TestWalletStateStore_Duplicate(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	state := &domain.WalletTokenState{
		Mint:   "mint1",
		Wallet: "wallet1",
		Role:   domain.RoleSniper,
		Status: domain.StatusGreen,
	}

	if err := store.Insert(ctx, state); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Same (mint, wallet), different role - should fail
	dup := &domain.WalletTokenState{
		Mint:   "mint1",
		Wallet: "wallet1",
		Role:   domain.RoleTeam,
		Status: domain.StatusGreen,
	}

	err := store.Insert(ctx, dup)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Original role should survive
	result, err := store.Get(ctx, "mint1", "wallet1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if result.Role != domain.RoleSniper {
		t.Errorf("Expected sniper, got %s", result.Role)
	}
}

func TestWalletStateStore_UpdateStatus(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	state := &domain.WalletTokenState{
		Mint:             "mint1",
		Wallet:           "wallet1",
		Role:             domain.RoleTeam,
		Status:           domain.StatusGreen,
		LastStatusUpdate: 1000,
	}

	if err := store.Insert(ctx, state); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateStatus(ctx, "mint1", "wallet1", domain.StatusYellow, 2000); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	result, _ := store.Get(ctx, "mint1", "wallet1")
	if result.Status != domain.StatusYellow {
		t.Errorf("Status mismatch: got %s, want YELLOW", result.Status)
	}
	if result.LastStatusUpdate != 2000 {
		t.Errorf("LastStatusUpdate mismatch: got %d, want 2000", result.LastStatusUpdate)
	}
}

func TestWalletStateStore_UpdateStatusNotFound(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	err := store.UpdateStatus(ctx, "mint1", "absent", domain.StatusRed, 1000)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestWalletStateStore_Exists(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	exists, err := store.Exists(ctx, "mint1", "wallet1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Expected not exists before insert")
	}

	state := &domain.WalletTokenState{Mint: "mint1", Wallet: "wallet1", Role: domain.RoleInsider, Status: domain.StatusGreen}
	if err := store.Insert(ctx, state); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	exists, err = store.Exists(ctx, "mint1", "wallet1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Expected exists after insert")
	}
}

func TestWalletStateStore_ListByMintAndRole(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	states := []*domain.WalletTokenState{
		{Mint: "mint1", Wallet: "w1", Role: domain.RoleSniper, Status: domain.StatusGreen},
		{Mint: "mint1", Wallet: "w2", Role: domain.RoleSniper, Status: domain.StatusRed},
		{Mint: "mint1", Wallet: "w3", Role: domain.RoleTeam, Status: domain.StatusGreen},
		{Mint: "mint2", Wallet: "w4", Role: domain.RoleSniper, Status: domain.StatusGreen},
	}
	for _, st := range states {
		if err := store.Insert(ctx, st); err != nil {
			t.Fatalf("Insert %s failed: %v", st.Wallet, err)
		}
	}

	all, err := store.ListByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("ListByMint failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 states for mint1, got %d", len(all))
	}

	snipers, err := store.ListByMintAndRole(ctx, "mint1", domain.RoleSniper)
	if err != nil {
		t.Fatalf("ListByMintAndRole failed: %v", err)
	}
	if len(snipers) != 2 {
		t.Errorf("Expected 2 snipers for mint1, got %d", len(snipers))
	}
}

func TestWalletStateStore_InvalidInput(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.WalletTokenState{Mint: "", Wallet: "w"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty mint, got %v", err)
	}
}

func TestWalletStateStore_ReturnsCopy(t *testing.T) {
	store := NewWalletStateStore()
	ctx := context.Background()

	state := &domain.WalletTokenState{Mint: "mint1", Wallet: "wallet1", Role: domain.RoleCreator, Status: domain.StatusGreen}
	if err := store.Insert(ctx, state); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	state.Status = domain.StatusRed

	result, _ := store.Get(ctx, "mint1", "wallet1")
	if result.Status != domain.StatusGreen {
		t.Error("Store should return copy, not reference")
	}
}
