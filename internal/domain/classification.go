package domain

// Role is a behavioral wallet role for a given mint.
type Role string

const (
	RoleCreator Role = "creator"
	RoleTeam    Role = "team"
	RoleInsider Role = "insider"
	RoleSniper  Role = "sniper"
)

// RolesByPriority lists roles in assignment priority order. A wallet already
// in a higher-priority role is never added to a lower one.
var RolesByPriority = []Role{RoleCreator, RoleTeam, RoleSniper, RoleInsider}

// ClassificationSet holds the disjoint role sets computed for one mint.
// Partial records sub-heuristic failures that did not abort the run.
type ClassificationSet struct {
	Mint       string   `json:"mint"`
	Creator    []string `json:"creator"`
	Team       []string `json:"team"`
	Insider    []string `json:"insider"`
	Sniper     []string `json:"sniper"`
	Partial    []string `json:"partial,omitempty"`
	ComputedAt int64    `json:"computed_at"` // ms
}

// NewClassificationSet returns an empty set for the given mint.
func NewClassificationSet(mint string) *ClassificationSet {
	return &ClassificationSet{Mint: mint}
}

// Wallets returns the wallet list for one role.
func (c *ClassificationSet) Wallets(role Role) []string {
	switch role {
	case RoleCreator:
		return c.Creator
	case RoleTeam:
		return c.Team
	case RoleInsider:
		return c.Insider
	case RoleSniper:
		return c.Sniper
	}
	return nil
}

// Add appends a wallet to the given role set without priority checks.
// Use Classified first to preserve the disjointness invariant.
func (c *ClassificationSet) Add(role Role, wallet string) {
	switch role {
	case RoleCreator:
		c.Creator = append(c.Creator, wallet)
	case RoleTeam:
		c.Team = append(c.Team, wallet)
	case RoleInsider:
		c.Insider = append(c.Insider, wallet)
	case RoleSniper:
		c.Sniper = append(c.Sniper, wallet)
	}
}

// RoleOf returns the role assigned to wallet, if any. Sets are disjoint so
// the first match in priority order is the only match.
func (c *ClassificationSet) RoleOf(wallet string) (Role, bool) {
	for _, role := range RolesByPriority {
		for _, w := range c.Wallets(role) {
			if w == wallet {
				return role, true
			}
		}
	}
	return "", false
}

// Classified reports whether wallet is already in any role set.
func (c *ClassificationSet) Classified(wallet string) bool {
	_, ok := c.RoleOf(wallet)
	return ok
}

// Size returns the total number of classified wallets.
func (c *ClassificationSet) Size() int {
	return len(c.Creator) + len(c.Team) + len(c.Insider) + len(c.Sniper)
}
