// Package contracts maintains per-contract rollup records: cumulative
// interaction and unique-user counts, per-event-name tallies and exact gas
// accumulation.
package contracts

import "time"

// Contract is the rollup record for one contract address. The address is the
// sole lookup key. GasUsed is an exact decimal string; Events maps event name
// to occurrence count.
type Contract struct {
	Address           string                 `json:"address" db:"address"`
	Name              *string                `json:"name,omitempty" db:"name"`
	Type              *string                `json:"type,omitempty" db:"type"`
	DeployedAt        *time.Time             `json:"deployedAt,omitempty" db:"deployed_at"`
	DeployerAddress   *string                `json:"deployerAddress,omitempty" db:"deployer_address"`
	TotalInteractions int64                  `json:"totalInteractions" db:"total_interactions"`
	UniqueUsers       int64                  `json:"uniqueUsers" db:"unique_users"`
	LastInteraction   *time.Time             `json:"lastInteraction,omitempty" db:"last_interaction"`
	GasUsed           string                 `json:"gasUsed" db:"gas_used"`
	Events            map[string]int64       `json:"events" db:"events"`
	Metadata          map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
}

// CreateParams carries the optional descriptive fields accepted on first
// observation of a contract.
type CreateParams struct {
	Name            *string
	Type            *string
	DeployedAt      *time.Time
	DeployerAddress *string
	Metadata        map[string]interface{}
}

// Clone returns a copy of the contract so stored records are never aliased.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Events != nil {
		cp.Events = make(map[string]int64, len(c.Events))
		for k, v := range c.Events {
			cp.Events[k] = v
		}
	}
	if c.Metadata != nil {
		cp.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
