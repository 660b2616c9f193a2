// Package engine joins the stream, classifier, tracker, and dispatcher into
// the transaction-processing pipeline: every notification is matched against
// classified wallets of tracked mints and turned into alerts.
package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"token-sentinel/internal/cache"
	"token-sentinel/internal/domain"
	"token-sentinel/internal/extractor"
	"token-sentinel/internal/observability"
	"token-sentinel/internal/provider"
	"token-sentinel/internal/storage"
)

const processedTxPrefix = "processed_tx:"

// Classifier resolves role sets for mints.
type Classifier interface {
	Classify(ctx context.Context, mint string, force bool) (*domain.ClassificationSet, error)
}

// StateTracker advances wallet holding states on balance changes.
type StateTracker interface {
	ApplyBalanceChange(ctx context.Context, mint, wallet string) (domain.HoldingStatus, bool, error)
}

// AlertQueue accepts alerts for delivery.
type AlertQueue interface {
	Enqueue(ctx context.Context, rec *domain.AlertRecord) error
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	ProcessedTxTTL time.Duration // processed-signature marker lifetime
	SweepInterval  time.Duration // periodic reclassification cadence
	WorkerLimit    int           // concurrent notification handlers
	Logger         *log.Logger
}

// Engine is the classification-match pipeline.
type Engine struct {
	classifier Classifier
	tracker    StateTracker
	alerts     AlertQueue
	registry   provider.SubscriptionRegistry
	states     storage.WalletStateStore
	cache      cache.Cache

	processedTTL  time.Duration
	sweepInterval time.Duration
	logger        *log.Logger
	now           func() time.Time

	mu      sync.RWMutex
	tracked map[string]struct{}

	sem chan struct{}
	wg  sync.WaitGroup
}

// New creates an Engine.
func New(
	classifier Classifier,
	tracker StateTracker,
	alerts AlertQueue,
	registry provider.SubscriptionRegistry,
	states storage.WalletStateStore,
	c cache.Cache,
	opts Options,
) *Engine {
	if opts.ProcessedTxTTL == 0 {
		opts.ProcessedTxTTL = 24 * time.Hour
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = 5 * time.Minute
	}
	if opts.WorkerLimit == 0 {
		opts.WorkerLimit = 32
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Engine{
		classifier:    classifier,
		tracker:       tracker,
		alerts:        alerts,
		registry:      registry,
		states:        states,
		cache:         c,
		processedTTL:  opts.ProcessedTxTTL,
		sweepInterval: opts.SweepInterval,
		logger:        opts.Logger,
		now:           time.Now,
		tracked:       make(map[string]struct{}),
		sem:           make(chan struct{}, opts.WorkerLimit),
	}
}

// LoadTracked seeds the tracked mint set from the subscription registry.
func (e *Engine) LoadTracked(ctx context.Context) error {
	mints, err := e.registry.GetTrackedMints(ctx)
	if err != nil {
		return fmt.Errorf("load tracked mints: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, m := range mints {
		e.tracked[m] = struct{}{}
	}
	return nil
}

// Track adds a mint to the tracked set. Returns true if it was new.
func (e *Engine) Track(mint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tracked[mint]; ok {
		return false
	}
	e.tracked[mint] = struct{}{}
	return true
}

// Untrack removes a mint from the tracked set. Returns true if it was present.
func (e *Engine) Untrack(mint string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tracked[mint]; !ok {
		return false
	}
	delete(e.tracked, mint)
	return true
}

// TrackedMints returns the tracked set, sorted.
func (e *Engine) TrackedMints() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.tracked))
	for m := range e.tracked {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) isTracked(mint string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tracked[mint]
	return ok
}

// HandleStreamPayload is the stream notification entry point. Work fans out
// to a bounded worker pool so slow storage never stalls the reader for long.
func (e *Engine) HandleStreamPayload(payload []byte) {
	observability.RecordNotification(float64(e.now().Unix()))
	e.sem <- struct{}{}
	e.wg.Add(1)
	go func() {
		defer func() {
			<-e.sem
			e.wg.Done()
		}()
		e.ProcessTransaction(context.Background(), payload)
	}()
}

// Wait blocks until all in-flight notification handlers finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// ProcessTransaction runs one raw transaction payload through the pipeline.
func (e *Engine) ProcessTransaction(ctx context.Context, payload []byte) {
	ex, err := extractor.Extract(payload)
	if err != nil {
		observability.RecordPayloadDropped("malformed")
		e.logger.Printf("[engine] dropping payload: %v", err)
		return
	}

	// At-most-once per signature across restarts within the marker TTL.
	key := processedTxPrefix + ex.Signature
	seen, err := e.cache.Exists(ctx, key)
	if err != nil {
		e.logger.Printf("[engine] processed check %s: %v", ex.Signature, err)
	} else if seen {
		observability.RecordDuplicateSkipped()
		return
	}
	observability.RecordTransactionProcessed()
	if err := e.cache.SetEx(ctx, key, "processed", e.processedTTL); err != nil {
		e.logger.Printf("[engine] processed marker %s: %v", ex.Signature, err)
	}

	for _, event := range ex.Events {
		if !e.isTracked(event.Mint) {
			continue
		}
		e.handleEvent(ctx, event)
	}
}

// handleEvent matches one balance-change event against the mint's
// classification set and emits an alert when a classified wallet acted.
func (e *Engine) handleEvent(ctx context.Context, event domain.StreamEvent) {
	set, err := e.classifier.Classify(ctx, event.Mint, false)
	if err != nil {
		e.logger.Printf("[engine] classify %s: %v", event.Mint, err)
		return
	}

	role, ok := set.RoleOf(event.Wallet)
	if !ok {
		return
	}

	action := "sell"
	if event.IsBuy() {
		action = "buy"
	}
	observability.RecordEventMatched(string(role), action)

	if action == "sell" {
		// A decrease may push the wallet's holding status downward.
		if _, _, err := e.tracker.ApplyBalanceChange(ctx, event.Mint, event.Wallet); err != nil {
			e.logger.Printf("[engine] apply balance change %s/%s: %v", event.Mint, event.Wallet, err)
		}
	}

	recipients, err := e.registry.GetSubscribersForMint(ctx, event.Mint)
	if err != nil {
		e.logger.Printf("[engine] subscribers for %s: %v", event.Mint, err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	rec := &domain.AlertRecord{
		Signature:  event.Signature,
		Mint:       event.Mint,
		Wallet:     event.Wallet,
		Role:       role,
		Action:     action,
		Recipients: recipients,
		Content:    fmt.Sprintf("%s wallet %s %s on %s (tx %s)", role, event.Wallet, action, event.Mint, event.Signature),
		EnqueuedAt: e.now().UnixMilli(),
	}

	if err := e.alerts.Enqueue(ctx, rec); err != nil {
		e.logger.Printf("[engine] enqueue alert %s: %v", event.Signature, err)
	}
}

// RunSweeper refreshes classifications for all tracked mints on a fixed
// cadence, seeding initial states for newly classified wallets.
func (e *Engine) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one reclassification pass over the tracked set.
func (e *Engine) Sweep(ctx context.Context) {
	for _, mint := range e.TrackedMints() {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.classifier.Classify(ctx, mint, true); err != nil {
			e.logger.Printf("[engine] sweep classify %s: %v", mint, err)
		}
	}
}

// RoleSummary is the per-role slice of a category summary.
type RoleSummary struct {
	Total    int                          `json:"total"`
	ByStatus map[domain.HoldingStatus]int `json:"by_status"`
}

// CategorySummary aggregates wallet states for one mint.
type CategorySummary struct {
	Mint  string                      `json:"mint"`
	Roles map[domain.Role]RoleSummary `json:"roles"`
}

// GetCategorySummary returns per-role counts and status breakdowns for a mint.
func (e *Engine) GetCategorySummary(ctx context.Context, mint string) (*CategorySummary, error) {
	states, err := e.states.ListByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("list states for %s: %w", mint, err)
	}

	summary := &CategorySummary{
		Mint:  mint,
		Roles: make(map[domain.Role]RoleSummary),
	}
	for _, st := range states {
		rs, ok := summary.Roles[st.Role]
		if !ok {
			rs = RoleSummary{ByStatus: make(map[domain.HoldingStatus]int)}
		}
		rs.Total++
		rs.ByStatus[st.Status]++
		summary.Roles[st.Role] = rs
	}
	return summary, nil
}

// GetWalletsInCategory returns the tracked wallet states for one role of a mint.
func (e *Engine) GetWalletsInCategory(ctx context.Context, mint string, role domain.Role) ([]*domain.WalletTokenState, error) {
	states, err := e.states.ListByMintAndRole(ctx, mint, role)
	if err != nil {
		return nil, fmt.Errorf("list %s states for %s: %w", role, mint, err)
	}
	return states, nil
}
