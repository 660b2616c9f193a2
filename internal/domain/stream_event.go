package domain

// StreamEvent is one normalized balance change observed on the transaction
// stream. Ephemeral: consumed by the classification-match step, never stored.
type StreamEvent struct {
	Signature  string // transaction signature (unique id)
	Wallet     string // owning wallet whose balance changed
	Mint       string // token mint address
	RawDelta   int64  // signed raw balance change
	ObservedAt int64  // block time (ms)
}

// IsBuy reports whether the wallet's balance increased.
func (e StreamEvent) IsBuy() bool {
	return e.RawDelta > 0
}
