// Package users maintains per-wallet rollup records, incrementally updated as
// activity is observed
package users

import "time"

// User is the rollup record for one wallet address. The wallet address is
// the sole lookup key; counters only ever increase and gas is accumulated
// exactly as a decimal string.
type User struct {
	ID                string                 `json:"id" db:"id"`
	WalletAddress     string                 `json:"walletAddress" db:"wallet_address"`
	FirstSeen         time.Time              `json:"firstSeen" db:"first_seen"`
	LastSeen          time.Time              `json:"lastSeen" db:"last_seen"`
	TotalSessions     int64                  `json:"totalSessions" db:"total_sessions"`
	TotalInteractions int64                  `json:"totalInteractions" db:"total_interactions"`
	TotalTransactions int64                  `json:"totalTransactions" db:"total_transactions"`
	TotalGasSpent     string                 `json:"totalGasSpent" db:"total_gas_spent"`
	AssetsLinked      int                    `json:"assetsLinked" db:"assets_linked"`
	TokensHeld        []string               `json:"tokensHeld,omitempty" db:"tokens_held"`
	Tags              []string               `json:"tags,omitempty" db:"tags"`
	Metadata          map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// StatsUpdate describes one increment applied to a user's rollup. Each flag
// adds at most 1 to its counter; GasSpent is added exactly.
type StatsUpdate struct {
	NewSession     bool
	NewInteraction bool
	NewTransaction bool
	GasSpent       string
	Metadata       map[string]interface{}
}

// Clone returns a copy of the user so stored records are never aliased.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.TokensHeld != nil {
		c.TokensHeld = append([]string(nil), u.TokensHeld...)
	}
	if u.Tags != nil {
		c.Tags = append([]string(nil), u.Tags...)
	}
	if u.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(u.Metadata))
		for k, v := range u.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
