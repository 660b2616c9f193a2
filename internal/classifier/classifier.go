// Package classifier computes the behavioral role sets (creator, team,
// sniper, insider) for a mint from metadata, holder snapshots, and early
// trading history.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"token-sentinel/internal/cache"
	"token-sentinel/internal/domain"
	"token-sentinel/internal/observability"
	"token-sentinel/internal/provider"
)

// ErrMetadataIncomplete is returned when token decimals or supply cannot be
// determined. Classification cannot proceed without them.
var ErrMetadataIncomplete = errors.New("token metadata incomplete")

const classifiedCachePrefix = "classified_wallets:"

// StateSeeder creates initial tracking state for newly classified wallets.
type StateSeeder interface {
	EnsureInitialState(ctx context.Context, mint, wallet string, role domain.Role) error
}

// Options configures a Classifier. Zero values fall back to defaults.
type Options struct {
	TeamThresholdPercent float64       // inclusive holder percentage for team role
	SniperWindow         time.Duration // buys in (T0, T0+window] are snipers
	InsiderWindow        time.Duration // buys in (sniper end, T0+window] are insiders
	MaxHolders           int           // holder snapshot processing cap
	CacheTTL             time.Duration // classification result TTL
	Logger               *log.Logger
}

// Classifier computes and caches role sets for mints.
type Classifier struct {
	metadata provider.MetadataProvider
	holders  provider.HolderProvider
	listings provider.ListingProvider
	trades   provider.EarlyTradesProvider
	cache    cache.Cache
	seeder   StateSeeder

	teamThreshold float64
	sniperWindow  time.Duration
	insiderWindow time.Duration
	maxHolders    int
	cacheTTL      time.Duration
	logger        *log.Logger
	now           func() time.Time
}

// New creates a Classifier. The seeder may be nil, in which case initial
// states are not created.
func New(
	metadata provider.MetadataProvider,
	holders provider.HolderProvider,
	listings provider.ListingProvider,
	trades provider.EarlyTradesProvider,
	c cache.Cache,
	seeder StateSeeder,
	opts Options,
) *Classifier {
	if opts.TeamThresholdPercent == 0 {
		opts.TeamThresholdPercent = 5.0
	}
	if opts.SniperWindow == 0 {
		opts.SniperWindow = 15 * time.Second
	}
	if opts.InsiderWindow == 0 {
		opts.InsiderWindow = 10 * time.Minute
	}
	if opts.MaxHolders == 0 {
		opts.MaxHolders = 5000
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 6 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Classifier{
		metadata:      metadata,
		holders:       holders,
		listings:      listings,
		trades:        trades,
		cache:         c,
		seeder:        seeder,
		teamThreshold: opts.TeamThresholdPercent,
		sniperWindow:  opts.SniperWindow,
		insiderWindow: opts.InsiderWindow,
		maxHolders:    opts.MaxHolders,
		cacheTTL:      opts.CacheTTL,
		logger:        opts.Logger,
		now:           time.Now,
	}
}

// Classify returns the role sets for mint. Results are cached; force bypasses
// the cache read but still refreshes the cached value. A metadata failure
// aborts with ErrMetadataIncomplete and an empty set; all other sub-heuristic
// failures are recorded in the set's Partial list.
func (c *Classifier) Classify(ctx context.Context, mint string, force bool) (*domain.ClassificationSet, error) {
	key := classifiedCachePrefix + mint

	if !force {
		if set, ok := c.readCached(ctx, key); ok {
			return set, nil
		}
	}

	started := c.now()
	set, err := c.compute(ctx, mint)
	if err != nil {
		observability.RecordClassificationRun("error", time.Since(started).Seconds())
		return set, err
	}
	outcome := "ok"
	if len(set.Partial) > 0 {
		outcome = "partial"
		observability.DefaultMetrics.ClassificationPartials.Add(float64(len(set.Partial)))
	}
	observability.RecordClassificationRun(outcome, time.Since(started).Seconds())
	for _, role := range domain.RolesByPriority {
		observability.DefaultMetrics.ClassifiedWallets.WithLabelValues(string(role)).Set(float64(len(set.Wallets(role))))
	}

	if data, merr := json.Marshal(set); merr != nil {
		c.logger.Printf("[classifier] marshal classification for cache %s: %v", mint, merr)
	} else if cerr := c.cache.SetEx(ctx, key, string(data), c.cacheTTL); cerr != nil {
		c.logger.Printf("[classifier] cache write %s: %v", mint, cerr)
	}

	c.seedInitialStates(ctx, set)

	return set, nil
}

func (c *Classifier) readCached(ctx context.Context, key string) (*domain.ClassificationSet, bool) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Printf("[classifier] cache read %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var set domain.ClassificationSet
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		c.logger.Printf("[classifier] stale cache entry %s: %v", key, err)
		return nil, false
	}
	return &set, true
}

func (c *Classifier) compute(ctx context.Context, mint string) (*domain.ClassificationSet, error) {
	set := domain.NewClassificationSet(mint)

	meta, err := c.metadata.GetTokenMetadata(ctx, mint)
	if err != nil {
		return set, fmt.Errorf("%w: %v", ErrMetadataIncomplete, err)
	}
	if meta == nil || !meta.HasCoreFields() {
		return set, fmt.Errorf("%w: decimals or supply missing for %s", ErrMetadataIncomplete, mint)
	}
	if *meta.Decimals < 0 {
		return set, fmt.Errorf("%w: negative decimals for %s", ErrMetadataIncomplete, mint)
	}
	supply := *meta.RawSupply

	// Creator: mint and freeze authorities that look like user wallets.
	c.classifyCreators(set, meta)

	// Team: large holders by share of supply.
	c.classifyTeam(ctx, set, mint, supply)

	// Sniper and insider: buyers inside the early timing windows.
	c.classifyEarlyBuyers(ctx, set, mint)

	set.ComputedAt = c.now().UnixMilli()
	c.logger.Printf("[classifier] %s: %d creator, %d team, %d sniper, %d insider, %d partial",
		mint, len(set.Creator), len(set.Team), len(set.Sniper), len(set.Insider), len(set.Partial))
	return set, nil
}

func (c *Classifier) classifyCreators(set *domain.ClassificationSet, meta *domain.TokenMetadata) {
	seen := make(map[string]struct{})
	for _, auth := range []*string{meta.MintAuthority, meta.FreezeAuthority} {
		if auth == nil || !isWalletAddress(*auth) {
			continue
		}
		if _, dup := seen[*auth]; dup {
			continue
		}
		seen[*auth] = struct{}{}
		set.Add(domain.RoleCreator, *auth)
	}
}

func (c *Classifier) classifyTeam(ctx context.Context, set *domain.ClassificationSet, mint string, supply uint64) {
	if supply == 0 {
		c.logger.Printf("[classifier] team check skipped for %s: zero supply", mint)
		set.Partial = append(set.Partial, "team: zero total supply")
		return
	}

	holders, err := c.holders.GetHolderSnapshot(ctx, mint, c.maxHolders)
	if err != nil {
		c.logger.Printf("[classifier] team check skipped for %s: holder fetch: %v", mint, err)
		set.Partial = append(set.Partial, "team: holder snapshot unavailable")
		return
	}
	if len(holders) > c.maxHolders {
		holders = holders[:c.maxHolders]
	}

	// Aggregate raw balances per owner; percentages on raw amounts are
	// invariant to the token's decimals.
	ownerRaw := make(map[string]uint64)
	for _, h := range holders {
		if h.Owner == "" || h.RawBalance == 0 {
			continue
		}
		ownerRaw[h.Owner] += h.RawBalance
	}

	for owner, raw := range ownerRaw {
		percentage := float64(raw) / float64(supply) * 100
		if percentage < c.teamThreshold {
			continue
		}
		if set.Classified(owner) || isKnownProgram(owner) {
			continue
		}
		set.Add(domain.RoleTeam, owner)
	}
}

func (c *Classifier) classifyEarlyBuyers(ctx context.Context, set *domain.ClassificationSet, mint string) {
	listing, err := c.listings.GetListingTimestamp(ctx, mint)
	if err != nil {
		c.logger.Printf("[classifier] early-buyer check skipped for %s: listing lookup: %v", mint, err)
		set.Partial = append(set.Partial, "early: listing time unavailable")
		return
	}
	if listing == nil {
		c.logger.Printf("[classifier] early-buyer check skipped for %s: listing time unknown", mint)
		set.Partial = append(set.Partial, "early: listing time unknown")
		return
	}

	trades, err := c.trades.GetEarlyTransactions(ctx, mint, *listing)
	if err != nil {
		c.logger.Printf("[classifier] early-buyer check skipped for %s: trade fetch: %v", mint, err)
		set.Partial = append(set.Partial, "early: transaction history unavailable")
		return
	}

	sniperEnd := *listing + c.sniperWindow.Milliseconds()
	insiderEnd := *listing + c.insiderWindow.Milliseconds()

	for _, tr := range trades {
		if !tr.IsBuy || tr.Wallet == "" {
			continue
		}
		if tr.Timestamp <= *listing || tr.Timestamp > insiderEnd {
			continue
		}
		if set.Classified(tr.Wallet) || isKnownProgram(tr.Wallet) {
			continue
		}
		if tr.Timestamp <= sniperEnd {
			set.Add(domain.RoleSniper, tr.Wallet)
		} else {
			set.Add(domain.RoleInsider, tr.Wallet)
		}
	}
}

// seedInitialStates asks the tracker to create state records for every
// classified wallet. Failures are logged and never affect the returned set.
func (c *Classifier) seedInitialStates(ctx context.Context, set *domain.ClassificationSet) {
	if c.seeder == nil {
		return
	}
	for _, role := range domain.RolesByPriority {
		for _, wallet := range set.Wallets(role) {
			if err := c.seeder.EnsureInitialState(ctx, set.Mint, wallet, role); err != nil {
				c.logger.Printf("[classifier] seed initial state %s/%s: %v", set.Mint, wallet, err)
			}
		}
	}
}
