// Package tracker maintains the durable holding state of classified wallets:
// how much of the initially observed balance each wallet still holds.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/observability"
	"token-sentinel/internal/provider"
	"token-sentinel/internal/storage"
)

// Options configures a Tracker. Zero values fall back to defaults.
type Options struct {
	YellowThreshold float64 // retained fraction at or below which status is YELLOW
	RedThreshold    float64 // retained fraction at or below which status is RED
	Logger          *log.Logger
}

// Tracker creates and advances wallet holding states. Statuses only move to
// higher severity; a wallet that re-buys never reverts.
type Tracker struct {
	store    storage.WalletStateStore
	balances provider.BalanceProvider

	yellowThreshold float64
	redThreshold    float64
	logger          *log.Logger
	now             func() time.Time
}

// New creates a Tracker.
func New(store storage.WalletStateStore, balances provider.BalanceProvider, opts Options) *Tracker {
	if opts.YellowThreshold == 0 {
		opts.YellowThreshold = 0.5
	}
	if opts.RedThreshold == 0 {
		opts.RedThreshold = 0.1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Tracker{
		store:           store,
		balances:        balances,
		yellowThreshold: opts.YellowThreshold,
		redThreshold:    opts.RedThreshold,
		logger:          opts.Logger,
		now:             time.Now,
	}
}

// EnsureInitialState records the first observed balance for a newly
// classified wallet with status GREEN. Existing records are never touched, so
// the first assigned role and baseline are permanent. Wallets with no
// positive balance get no record. Balance-fetch failures are logged no-ops.
func (t *Tracker) EnsureInitialState(ctx context.Context, mint, wallet string, role domain.Role) error {
	exists, err := t.store.Exists(ctx, mint, wallet)
	if err != nil {
		return fmt.Errorf("check state exists %s/%s: %w", mint, wallet, err)
	}
	if exists {
		return nil
	}

	balance, err := t.balances.GetWalletRawBalance(ctx, wallet, mint)
	if err != nil {
		t.logger.Printf("[tracker] initial balance fetch %s/%s: %v", mint, wallet, err)
		return nil
	}
	if balance == 0 {
		return nil
	}

	now := t.now().UnixMilli()
	state := &domain.WalletTokenState{
		Mint:              mint,
		Wallet:            wallet,
		Role:              role,
		InitialRawBalance: balance,
		Status:            domain.StatusGreen,
		LastStatusUpdate:  now,
		CreatedAt:         now,
	}

	if err := t.store.Insert(ctx, state); err != nil {
		// A concurrent classify run may have inserted first; the earlier
		// record wins.
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return fmt.Errorf("insert initial state %s/%s: %w", mint, wallet, err)
	}

	observability.DefaultMetrics.StatesInitialized.Inc()
	t.logger.Printf("[tracker] stored initial GREEN state [%s] for %s/%s balance=%d", role, mint, wallet, balance)
	return nil
}

// ApplyBalanceChange re-evaluates the holding status of a tracked wallet
// against its current on-chain balance. Returns the resulting status and
// whether a transition happened. Untracked wallets and balance-fetch
// failures are no-ops.
func (t *Tracker) ApplyBalanceChange(ctx context.Context, mint, wallet string) (domain.HoldingStatus, bool, error) {
	state, err := t.store.Get(ctx, mint, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get state %s/%s: %w", mint, wallet, err)
	}

	current, err := t.balances.GetWalletRawBalance(ctx, wallet, mint)
	if err != nil {
		t.logger.Printf("[tracker] balance fetch %s/%s: %v", mint, wallet, err)
		return state.Status, false, nil
	}

	if state.InitialRawBalance == 0 {
		return state.Status, false, nil
	}

	target := t.statusFor(current, state.InitialRawBalance)

	// Severity only increases.
	if target.Severity() <= state.Status.Severity() {
		return state.Status, false, nil
	}

	if err := t.store.UpdateStatus(ctx, mint, wallet, target, t.now().UnixMilli()); err != nil {
		return state.Status, false, fmt.Errorf("update status %s/%s: %w", mint, wallet, err)
	}

	observability.RecordStatusTransition(string(target))
	t.logger.Printf("[tracker] %s/%s status %s -> %s (retained %d of %d)",
		mint, wallet, state.Status, target, current, state.InitialRawBalance)
	return target, true, nil
}

func (t *Tracker) statusFor(current, initial uint64) domain.HoldingStatus {
	if current == 0 {
		return domain.StatusRed
	}
	retained := float64(current) / float64(initial)
	switch {
	case retained <= t.redThreshold:
		return domain.StatusRed
	case retained <= t.yellowThreshold:
		return domain.StatusYellow
	default:
		return domain.StatusGreen
	}
}
