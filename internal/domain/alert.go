package domain

// AlertRecord is one queued alert about a classified wallet acting on a
// monitored token. Lifetime is bounded by the delivery queue; only the dedup
// marker outlives dispatch.
type AlertRecord struct {
	Signature  string
	Mint       string
	Wallet     string
	Role       Role
	Action     string // "buy" or "sell"
	Recipients []int64
	Content    string
	EnqueuedAt int64 // ms
}

// Delivery outcomes recorded in the alert log.
const (
	DeliveryOutcomeSent    = "sent"
	DeliveryOutcomeBlocked = "blocked"
	DeliveryOutcomeInvalid = "invalid"
	DeliveryOutcomeNetwork = "network_error"
	DeliveryOutcomeUnknown = "error"
)

// AlertDeliveryRecord is one append-only log row written after a delivery
// attempt.
type AlertDeliveryRecord struct {
	Signature   string
	Mint        string
	Wallet      string
	Role        Role
	Action      string
	Recipient   int64
	Outcome     string
	DeliveredAt int64 // ms
}
