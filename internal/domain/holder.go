package domain

// HolderBalance is one token-account balance attributed to its owning wallet.
// Snapshots may contain multiple entries per owner; callers aggregate by
// owner before threshold checks.
type HolderBalance struct {
	Owner      string // owning wallet address
	RawBalance uint64 // balance in raw base units
}
