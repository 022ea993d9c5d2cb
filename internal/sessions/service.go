package sessions

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/pkg/ethaddr"
)

// Service provides session lifecycle management behind the storage gateway.
type Service struct {
	gw       *storage.Gateway
	primary  Repository
	fallback Repository
	log      zerolog.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewService creates a new session service
func NewService(gw *storage.Gateway, primary, fallback Repository, log zerolog.Logger) *Service {
	return &Service{
		gw:       gw,
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "sessions").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession opens a new active session. Page views start at 1 (the
// entry page itself), interactions at 0.
func (s *Service) CreateSession(ctx context.Context, p CreateParams) (*Session, error) {
	sess := &Session{
		ID:            uuid.NewString(),
		WalletAddress: ethaddr.NormalizePtr(p.WalletAddress),
		StartTime:     s.now(),
		IsActive:      true,
		UserAgent:     p.UserAgent,
		IPAddress:     p.IPAddress,
		Referrer:      p.Referrer,
		EntryPage:     p.EntryPage,
		PageViews:     1,
		Interactions:  0,
		ChainID:       p.ChainID,
	}

	return storage.Execute(ctx, s.gw, "sessions.create",
		func(ctx context.Context) (*Session, error) { return sess.Clone(), s.primary.Insert(ctx, sess) },
		func(ctx context.Context) (*Session, error) { return sess.Clone(), s.fallback.Insert(ctx, sess) },
	)
}

// UpdateSessionStats conditionally increments the page-view and interaction
// counters and records the current page as the exit page. Ended sessions are
// frozen: the stored record is returned unchanged. Returns nil for an unknown
// session id.
func (s *Service) UpdateSessionStats(ctx context.Context, id string, pageView, interaction bool, currentPage *string) (*Session, error) {
	pageViews := 0
	if pageView {
		pageViews = 1
	}
	interactions := 0
	if interaction {
		interactions = 1
	}

	updated, err := storage.Execute(ctx, s.gw, "sessions.updateStats",
		func(ctx context.Context) (*Session, error) {
			return s.primary.AddStats(ctx, id, pageViews, interactions, currentPage)
		},
		func(ctx context.Context) (*Session, error) {
			return s.fallback.AddStats(ctx, id, pageViews, interactions, currentPage)
		},
	)
	if err != nil {
		return nil, err
	}
	if updated != nil {
		return updated, nil
	}
	// Missing or frozen; return whatever is stored.
	return s.GetSession(ctx, id)
}

// EndSession terminates an active session, computing its duration. Ending an
// already-ended session is a no-op returning the frozen record. Returns nil
// for an unknown session id.
func (s *Service) EndSession(ctx context.Context, id string, exitPage *string) (*Session, error) {
	endTime := s.now()

	ended, err := storage.Execute(ctx, s.gw, "sessions.end",
		func(ctx context.Context) (*Session, error) { return s.primary.End(ctx, id, endTime, exitPage) },
		func(ctx context.Context) (*Session, error) { return s.fallback.End(ctx, id, endTime, exitPage) },
	)
	if err != nil {
		return nil, err
	}
	if ended != nil {
		return ended, nil
	}
	return s.GetSession(ctx, id)
}

// GetSession returns the session, or nil when no such session exists.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	return storage.Execute(ctx, s.gw, "sessions.get",
		func(ctx context.Context) (*Session, error) { return s.primary.GetByID(ctx, id) },
		func(ctx context.Context) (*Session, error) { return s.fallback.GetByID(ctx, id) },
	)
}

// GetActiveSessions lists currently open sessions, newest start first.
func (s *Service) GetActiveSessions(ctx context.Context) ([]*Session, error) {
	return storage.Execute(ctx, s.gw, "sessions.listActive",
		func(ctx context.Context) ([]*Session, error) { return s.primary.ListActive(ctx) },
		func(ctx context.Context) ([]*Session, error) { return s.fallback.ListActive(ctx) },
	)
}

// GetSessionsByWalletAddress lists a wallet's sessions, newest start first.
func (s *Service) GetSessionsByWalletAddress(ctx context.Context, wallet string) ([]*Session, error) {
	wallet = ethaddr.Normalize(wallet)
	return storage.Execute(ctx, s.gw, "sessions.listByWallet",
		func(ctx context.Context) ([]*Session, error) { return s.primary.ListByWallet(ctx, wallet) },
		func(ctx context.Context) ([]*Session, error) { return s.fallback.ListByWallet(ctx, wallet) },
	)
}

// CountActiveSessions counts currently open sessions.
func (s *Service) CountActiveSessions(ctx context.Context) (int64, error) {
	return storage.Execute(ctx, s.gw, "sessions.countActive",
		func(ctx context.Context) (int64, error) { return s.primary.CountActive(ctx) },
		func(ctx context.Context) (int64, error) { return s.fallback.CountActive(ctx) },
	)
}

// CountStartedBetween counts sessions started in the inclusive range.
func (s *Service) CountStartedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	return storage.Execute(ctx, s.gw, "sessions.countStarted",
		func(ctx context.Context) (int64, error) { return s.primary.CountStartedBetween(ctx, start, end) },
		func(ctx context.Context) (int64, error) { return s.fallback.CountStartedBetween(ctx, start, end) },
	)
}

// DurationTotals returns the count and exact millisecond sum of recorded
// durations for sessions started in the inclusive range.
func (s *Service) DurationTotals(ctx context.Context, start, end time.Time) (int64, int64, error) {
	type totals struct {
		count int64
		sum   int64
	}
	res, err := storage.Execute(ctx, s.gw, "sessions.durationTotals",
		func(ctx context.Context) (totals, error) {
			count, sum, err := s.primary.DurationTotals(ctx, start, end)
			return totals{count, sum}, err
		},
		func(ctx context.Context) (totals, error) {
			count, sum, err := s.fallback.DurationTotals(ctx, start, end)
			return totals{count, sum}, err
		},
	)
	if err != nil {
		return 0, 0, err
	}
	return res.count, res.sum, nil
}

// TopExitPages tallies the exit pages of currently open sessions, most
// common first, bounded by limit.
func (s *Service) TopExitPages(ctx context.Context, limit int) ([]PageCount, error) {
	active, err := s.GetActiveSessions(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, sess := range active {
		if sess.ExitPage != nil && *sess.ExitPage != "" {
			counts[*sess.ExitPage]++
		}
	}

	pages := make([]PageCount, 0, len(counts))
	for page, count := range counts {
		pages = append(pages, PageCount{Page: page, Count: count})
	}
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Count != pages[j].Count {
			return pages[i].Count > pages[j].Count
		}
		return pages[i].Page < pages[j].Page
	})
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	return pages, nil
}
