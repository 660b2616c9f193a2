// Package provider defines the contracts of external collaborators the core
// consumes. Implementations (HTTP clients for data providers, the bot
// transport, the subscription registry) live outside this module; stubs for
// tests and development live in provider/stub.
package provider

import (
	"context"
	"errors"
	"fmt"

	"token-sentinel/internal/domain"
)

// MetadataProvider fetches token metadata for a classification run.
type MetadataProvider interface {
	// GetTokenMetadata returns metadata for the mint. Nullable upstream
	// fields stay nil; the caller decides whether the result is usable.
	GetTokenMetadata(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// HolderProvider fetches the current holder snapshot for a mint.
type HolderProvider interface {
	// GetHolderSnapshot returns per-token-account balances, possibly several
	// entries per owner. limit caps the number of entries returned.
	GetHolderSnapshot(ctx context.Context, mint string, limit int) ([]domain.HolderBalance, error)
}

// ListingProvider resolves the first-listing timestamp of a token.
type ListingProvider interface {
	// GetListingTimestamp returns the listing time in ms, or nil if it
	// cannot be determined.
	GetListingTimestamp(ctx context.Context, mint string) (*int64, error)
}

// EarlyTradesProvider fetches trades around a token's listing time.
type EarlyTradesProvider interface {
	// GetEarlyTransactions returns trades from listingTime (ms) up to at
	// least the insider window end.
	GetEarlyTransactions(ctx context.Context, mint string, listingTime int64) ([]domain.EarlyTrade, error)
}

// BalanceProvider fetches a wallet's current raw balance for a mint.
type BalanceProvider interface {
	GetWalletRawBalance(ctx context.Context, wallet, mint string) (uint64, error)
}

// SubscriptionRegistry answers who tracks what. Subscription management
// itself is outside the core.
type SubscriptionRegistry interface {
	// GetTrackedMints returns every mint tracked by at least one subscriber.
	GetTrackedMints(ctx context.Context) ([]string, error)

	// GetSubscribersForMint returns recipient ids subscribed to the mint.
	GetSubscribersForMint(ctx context.Context, mint string) ([]int64, error)
}

// DeliveryErrorKind classifies notification delivery failures.
type DeliveryErrorKind string

const (
	// DeliveryBlocked means the recipient rejected the sender; permanent.
	DeliveryBlocked DeliveryErrorKind = "blocked"
	// DeliveryInvalid means the request was malformed or the recipient does
	// not exist; permanent.
	DeliveryInvalid DeliveryErrorKind = "invalid"
	// DeliveryNetwork means a transient transport failure.
	DeliveryNetwork DeliveryErrorKind = "network"
	// DeliveryUnknown covers everything else.
	DeliveryUnknown DeliveryErrorKind = "unknown"
)

// DeliveryError is a classified notification delivery failure.
type DeliveryError struct {
	Kind DeliveryErrorKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// KindOf extracts the delivery failure kind from an error chain.
func KindOf(err error) DeliveryErrorKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return DeliveryUnknown
}

// Notifier delivers alert content to one recipient.
type Notifier interface {
	// DeliverNotification sends content to the recipient. Failures are
	// *DeliveryError values when the transport can classify them.
	DeliverNotification(ctx context.Context, recipient int64, content string) error
}
