package domain

// EarlyTrade is one trade observed around a token's first listing, used for
// sniper/insider window checks.
type EarlyTrade struct {
	Wallet    string
	Timestamp int64 // ms
	IsBuy     bool
}
