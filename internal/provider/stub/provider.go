// Package stub provides in-memory provider implementations for tests and
// development runs.
package stub

import (
	"context"
	"sync"

	"token-sentinel/internal/domain"
	"token-sentinel/internal/provider"
)

// DataProvider is a configurable in-memory implementation of every read-side
// provider interface. Zero value is usable; all fields are guarded by one
// mutex so tests can mutate them while the pipeline runs.
type DataProvider struct {
	mu sync.Mutex

	Metadata    map[string]*domain.TokenMetadata  // by mint
	Holders     map[string][]domain.HolderBalance // by mint
	ListingTime map[string]int64                  // by mint, ms
	EarlyTrades map[string][]domain.EarlyTrade    // by mint
	Balances    map[string]uint64                 // by wallet + "/" + mint

	// Err, when set, is returned by every call.
	Err error

	BalanceCalls int
}

var (
	_ provider.MetadataProvider    = (*DataProvider)(nil)
	_ provider.HolderProvider      = (*DataProvider)(nil)
	_ provider.ListingProvider     = (*DataProvider)(nil)
	_ provider.EarlyTradesProvider = (*DataProvider)(nil)
	_ provider.BalanceProvider     = (*DataProvider)(nil)
)

// NewDataProvider returns an empty provider.
func NewDataProvider() *DataProvider {
	return &DataProvider{
		Metadata:    make(map[string]*domain.TokenMetadata),
		Holders:     make(map[string][]domain.HolderBalance),
		ListingTime: make(map[string]int64),
		EarlyTrades: make(map[string][]domain.EarlyTrade),
		Balances:    make(map[string]uint64),
	}
}

// SetBalance sets the raw balance returned for (wallet, mint).
func (p *DataProvider) SetBalance(wallet, mint string, raw uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Balances[wallet+"/"+mint] = raw
}

func (p *DataProvider) GetTokenMetadata(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	m, ok := p.Metadata[mint]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (p *DataProvider) GetHolderSnapshot(_ context.Context, mint string, limit int) ([]domain.HolderBalance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	holders := p.Holders[mint]
	if limit > 0 && len(holders) > limit {
		holders = holders[:limit]
	}
	out := make([]domain.HolderBalance, len(holders))
	copy(out, holders)
	return out, nil
}

func (p *DataProvider) GetListingTimestamp(_ context.Context, mint string) (*int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	ts, ok := p.ListingTime[mint]
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

func (p *DataProvider) GetEarlyTransactions(_ context.Context, mint string, _ int64) ([]domain.EarlyTrade, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	trades := p.EarlyTrades[mint]
	out := make([]domain.EarlyTrade, len(trades))
	copy(out, trades)
	return out, nil
}

func (p *DataProvider) GetWalletRawBalance(_ context.Context, wallet, mint string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BalanceCalls++
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Balances[wallet+"/"+mint], nil
}

// Registry is an in-memory provider.SubscriptionRegistry.
type Registry struct {
	mu          sync.Mutex
	Tracked     []string
	Subscribers map[string][]int64 // by mint
	Err         error
}

var _ provider.SubscriptionRegistry = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{Subscribers: make(map[string][]int64)}
}

// Track adds a mint with the given subscribers.
func (r *Registry) Track(mint string, subscribers ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tracked = append(r.Tracked, mint)
	r.Subscribers[mint] = append(r.Subscribers[mint], subscribers...)
}

func (r *Registry) GetTrackedMints(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]string, len(r.Tracked))
	copy(out, r.Tracked)
	return out, nil
}

func (r *Registry) GetSubscribersForMint(_ context.Context, mint string) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	subs := r.Subscribers[mint]
	out := make([]int64, len(subs))
	copy(out, subs)
	return out, nil
}

// Notifier records delivered notifications and can fail on demand.
type Notifier struct {
	mu        sync.Mutex
	Delivered []DeliveredNote
	Err       error
}

// DeliveredNote is one recorded delivery.
type DeliveredNote struct {
	Recipient int64
	Content   string
}

var _ provider.Notifier = (*Notifier)(nil)

func (n *Notifier) DeliverNotification(_ context.Context, recipient int64, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Delivered = append(n.Delivered, DeliveredNote{Recipient: recipient, Content: content})
	return nil
}

// DeliveredCount returns the number of successful deliveries so far.
func (n *Notifier) DeliveredCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Delivered)
}
