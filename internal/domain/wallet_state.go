package domain

// HoldingStatus is the severity level of a classified wallet having reduced
// its original holdings.
type HoldingStatus string

const (
	StatusGreen  HoldingStatus = "GREEN"
	StatusYellow HoldingStatus = "YELLOW"
	StatusRed    HoldingStatus = "RED"
)

// Severity orders statuses for monotonicity checks. Transitions only move to
// strictly higher severity.
func (s HoldingStatus) Severity() int {
	switch s {
	case StatusGreen:
		return 0
	case StatusYellow:
		return 1
	case StatusRed:
		return 2
	}
	return -1
}

// WalletTokenState is the durable record for one classified (mint, wallet)
// pair. Created exactly once, the first time the wallet is classified with a
// positive balance; only the status fields mutate afterward.
type WalletTokenState struct {
	Mint              string
	Wallet            string
	Role              Role
	InitialRawBalance uint64
	Status            HoldingStatus
	LastStatusUpdate  int64 // ms
	CreatedAt         int64 // ms
}
