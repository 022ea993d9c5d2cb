// Package sessions tracks visit-session lifecycles: creation, periodic stat
// updates and termination with duration computation
package sessions

import "time"

// Session is a single visit session. A session is mutable while active; once
// ended it is frozen and further update or end calls are no-ops that return
// the frozen record.
type Session struct {
	ID            string     `json:"id" db:"id"`
	UserID        *string    `json:"userId,omitempty" db:"user_id"`
	WalletAddress *string    `json:"walletAddress,omitempty" db:"wallet_address"`
	StartTime     time.Time  `json:"startTime" db:"start_time"`
	EndTime       *time.Time `json:"endTime,omitempty" db:"end_time"`
	Duration      *int64     `json:"duration,omitempty" db:"duration"` // milliseconds
	IsActive      bool       `json:"isActive" db:"is_active"`
	UserAgent     *string    `json:"userAgent,omitempty" db:"user_agent"`
	IPAddress     *string    `json:"ipAddress,omitempty" db:"ip_address"`
	Referrer      *string    `json:"referrer,omitempty" db:"referrer"`
	EntryPage     *string    `json:"entryPage,omitempty" db:"entry_page"`
	ExitPage      *string    `json:"exitPage,omitempty" db:"exit_page"`
	PageViews     int        `json:"pageViews" db:"page_views"`
	Interactions  int        `json:"interactions" db:"interactions"`
	ChainID       *int64     `json:"chainId,omitempty" db:"chain_id"`
}

// CreateParams holds the optional attributes captured at session start.
type CreateParams struct {
	WalletAddress *string
	UserAgent     *string
	IPAddress     *string
	Referrer      *string
	EntryPage     *string
	ChainID       *int64
}

// PageCount is an exit-page tally for the real-time dashboard.
type PageCount struct {
	Page  string `json:"page"`
	Count int64  `json:"count"`
}

// Clone returns a copy of the session so stored records are never aliased.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
