// Package events provides append-only ingestion and filtered retrieval of
// behavioral analytics events
package events

import (
	"time"
)

// Event types
const (
	TypeContractInteraction = "contract_interaction"
	TypeUIInteraction       = "ui_interaction"
)

// Event is a single recorded analytics event. The two shapes (contract
// interaction, UI interaction) share one record; variant-specific fields are
// optional and stay nil for the other shape. Events are immutable once
// stored, except for explicit deletion.
type Event struct {
	ID            string                 `json:"id" db:"id"`
	EventType     string                 `json:"eventType" db:"event_type"`
	Timestamp     time.Time              `json:"timestamp" db:"timestamp"`
	WalletAddress *string                `json:"walletAddress,omitempty" db:"wallet_address"`
	ChainID       *int64                 `json:"chainId,omitempty" db:"chain_id"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"metadata"`

	// Contract interaction fields
	ContractAddress *string                `json:"contractAddress,omitempty" db:"contract_address"`
	EventName       *string                `json:"eventName,omitempty" db:"event_name"`
	TransactionHash *string                `json:"transactionHash,omitempty" db:"transaction_hash"`
	BlockNumber     *int64                 `json:"blockNumber,omitempty" db:"block_number"`
	LogIndex        *int                   `json:"logIndex,omitempty" db:"log_index"`
	ReturnValues    map[string]interface{} `json:"returnValues,omitempty" db:"return_values"`
	GasUsed         *string                `json:"gasUsed,omitempty" db:"gas_used"`
	GasPrice        *string                `json:"gasPrice,omitempty" db:"gas_price"`

	// UI interaction fields
	SessionID *string `json:"sessionId,omitempty" db:"session_id"`
	URL       *string `json:"url,omitempty" db:"url"`
	Referrer  *string `json:"referrer,omitempty" db:"referrer"`
	UserAgent *string `json:"userAgent,omitempty" db:"user_agent"`
	IPAddress *string `json:"ipAddress,omitempty" db:"ip_address"`
	Element   *string `json:"element,omitempty" db:"element"`
	Action    *string `json:"action,omitempty" db:"action"`
	Value     *string `json:"value,omitempty" db:"value"`
}

// Filter contains conjunctive filter options for event queries. Nil fields
// are not applied; time bounds are inclusive.
type Filter struct {
	StartTime       *time.Time
	EndTime         *time.Time
	WalletAddress   *string
	ContractAddress *string
	EventType       *string
	ChainID         *int64

	SortBy  string // only "timestamp" is supported; default "timestamp"
	SortDir string // "asc" or "desc"; default "desc"
	Limit   int
	Offset  int
}

// Page is one page of query results.
type Page struct {
	Data    []*Event `json:"data"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	HasMore bool     `json:"hasMore"`
}

// ContractCount is a contract interaction tally used in ranked rollups.
type ContractCount struct {
	Address string `json:"address"`
	Count   int64  `json:"count"`
}

// EventNameCount is a per-event-name tally used in ranked rollups.
type EventNameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Clone returns a deep copy of the event so callers can never alias stored
// records.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Metadata = cloneMap(e.Metadata)
	c.ReturnValues = cloneMap(e.ReturnValues)
	return &c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
