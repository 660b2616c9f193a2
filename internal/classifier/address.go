package classifier

import (
	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// knownProgramIDs are system and program addresses that can appear as mint or
// freeze authorities or as large holders but are never human wallets.
var knownProgramIDs = map[string]struct{}{
	"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA":  {},
	"TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb":  {},
	"11111111111111111111111111111111":             {},
	"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL": {},
	"metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s":  {},
	"BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY": {},
	"SMPLecH534NA9acpos4G6x7uf3LWbCAwZQE9e8ZekMu":  {},
	"Safe11111111111111111111111111111111111111":   {},
}

// isKnownProgram reports whether addr is in the known program id set.
func isKnownProgram(addr string) bool {
	_, ok := knownProgramIDs[addr]
	return ok
}

// isWalletAddress reports whether addr looks like a user-controlled wallet:
// base58-decodes to 32 bytes, lies on the ed25519 curve (PDAs are off-curve),
// and is not a known program id.
func isWalletAddress(addr string) bool {
	if addr == "" || isKnownProgram(addr) {
		return false
	}
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != 32 {
		return false
	}
	return isOnCurve(raw)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
