package domain

// TokenMetadata represents on-chain token metadata for one classification run.
// Decimals and RawSupply are required for classification; nullable upstream
// fields are pointers.
type TokenMetadata struct {
	Mint            string  // token mint address
	Decimals        *int    // token decimals (nullable upstream)
	RawSupply       *uint64 // total supply in raw base units (nullable upstream)
	MintAuthority   *string // mint authority address (nullable)
	FreezeAuthority *string // freeze authority address (nullable)
	FetchedAt       int64   // when metadata was fetched (ms)
}

// HasCoreFields reports whether decimals and supply are both present.
func (m *TokenMetadata) HasCoreFields() bool {
	return m != nil && m.Decimals != nil && m.RawSupply != nil
}
