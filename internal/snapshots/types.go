// Package snapshots computes day-bounded analytics rollups and the real-time
// dashboard view by composing the event, session, user and contract services.
package snapshots

import (
	"time"

	"getchainpulse.com/chainpulse/internal/events"
	"getchainpulse.com/chainpulse/internal/sessions"
)

// DailySnapshot is the persisted rollup for one calendar date. Recomputing a
// date overwrites the prior values; snapshots are never additive.
type DailySnapshot struct {
	Date                   time.Time               `json:"date" db:"date"`
	NewUsers               int64                   `json:"newUsers" db:"new_users"`
	ActiveUsers            int64                   `json:"activeUsers" db:"active_users"`
	TotalSessions          int64                   `json:"totalSessions" db:"total_sessions"`
	AverageSessionDuration float64                 `json:"averageSessionDuration" db:"average_session_duration"`
	TotalTransactions      int64                   `json:"totalTransactions" db:"total_transactions"`
	TotalGasUsed           string                  `json:"totalGasUsed" db:"total_gas_used"`
	TopContracts           []events.ContractCount  `json:"topContracts" db:"top_contracts"`
	TopEvents              []events.EventNameCount `json:"topEvents" db:"top_events"`
	Metadata               map[string]interface{}  `json:"metadata,omitempty" db:"metadata"`
}

// RealTimeAnalytics is the live dashboard view, composed on demand.
type RealTimeAnalytics struct {
	Timestamp              time.Time            `json:"timestamp"`
	ActiveUsers            int64                `json:"activeUsers"`
	ActiveSessions         int64                `json:"activeSessions"`
	TransactionsInLastHour int64                `json:"transactionsInLastHour"`
	EventsInLastHour       int64                `json:"eventsInLastHour"`
	TopCurrentPages        []sessions.PageCount `json:"topCurrentPages"`
	RecentEvents           []*events.Event      `json:"recentEvents"`
	// Degraded reports that the primary store has been bypassed at least
	// once since startup, so fallback-served numbers may be incomplete.
	Degraded bool `json:"degraded"`
}

// Clone returns a copy of the snapshot so stored records are never aliased.
func (s *DailySnapshot) Clone() *DailySnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.TopContracts != nil {
		c.TopContracts = append([]events.ContractCount(nil), s.TopContracts...)
	}
	if s.TopEvents != nil {
		c.TopEvents = append([]events.EventNameCount(nil), s.TopEvents...)
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
