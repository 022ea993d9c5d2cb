package snapshots

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"getchainpulse.com/chainpulse/internal/cache"
	"getchainpulse.com/chainpulse/internal/events"
	"getchainpulse.com/chainpulse/internal/sessions"
	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/internal/users"
)

const (
	// DefaultTopN bounds the ranked contract/event lists in a snapshot.
	DefaultTopN = 10

	realTimeWindow = time.Hour
	topPagesLimit  = 10
)

// Service computes daily rollups and the real-time dashboard view. It is the
// only component that reads across the other four.
type Service struct {
	gw       *storage.Gateway
	primary  Repository
	fallback Repository
	events   *events.Service
	sessions *sessions.Service
	users    *users.Service
	cache    *cache.Cache
	log      zerolog.Logger

	topN         int
	snapshotHour int

	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates a new snapshot aggregator service
func NewService(gw *storage.Gateway, primary, fallback Repository,
	ev *events.Service, sess *sessions.Service, usr *users.Service,
	c *cache.Cache, topN, snapshotHour int, log zerolog.Logger) *Service {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Service{
		gw:           gw,
		primary:      primary,
		fallback:     fallback,
		events:       ev,
		sessions:     sess,
		users:        usr,
		cache:        c,
		log:          log.With().Str("component", "snapshots").Logger(),
		topN:         topN,
		snapshotHour: snapshotHour,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// dayWindow returns the inclusive local-day bounds for the date's calendar
// day: [00:00:00.000, 23:59:59.999].
func dayWindow(date time.Time) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.Add(24*time.Hour - time.Millisecond)
	return start, end
}

// CreateDailySnapshot derives the rollup for the date's calendar day from the
// event, session and user services and upserts it keyed by date. Recomputing
// a date overwrites the prior snapshot.
func (s *Service) CreateDailySnapshot(ctx context.Context, date time.Time) (*DailySnapshot, error) {
	start, end := dayWindow(date)

	newUsers, err := s.users.CountNewBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	activeUsers, err := s.events.DistinctWallets(ctx, start, end)
	if err != nil {
		return nil, err
	}
	totalSessions, err := s.sessions.CountStartedBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	durCount, durTotalMs, err := s.sessions.DurationTotals(ctx, start, end)
	if err != nil {
		return nil, err
	}
	totalTransactions, err := s.events.CountTypeInRange(ctx, events.TypeContractInteraction, start, end)
	if err != nil {
		return nil, err
	}
	totalGas, err := s.events.SumGasUsed(ctx, start, end)
	if err != nil {
		return nil, err
	}
	topContracts, err := s.events.TopContracts(ctx, start, end, s.topN)
	if err != nil {
		return nil, err
	}
	topEvents, err := s.events.TopEventNames(ctx, start, end, s.topN)
	if err != nil {
		return nil, err
	}

	avgDuration := float64(0)
	if durCount > 0 {
		avgDuration = decimal.NewFromInt(durTotalMs).
			Div(decimal.NewFromInt(durCount)).
			InexactFloat64()
	}

	snap := &DailySnapshot{
		Date:                   start,
		NewUsers:               newUsers,
		ActiveUsers:            activeUsers,
		TotalSessions:          totalSessions,
		AverageSessionDuration: avgDuration,
		TotalTransactions:      totalTransactions,
		TotalGasUsed:           totalGas,
		TopContracts:           topContracts,
		TopEvents:              topEvents,
	}

	_, err = storage.Execute(ctx, s.gw, "snapshots.upsert",
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.primary.Upsert(ctx, snap) },
		func(ctx context.Context) (struct{}, error) { return struct{}{}, s.fallback.Upsert(ctx, snap) },
	)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, snapshotCacheKey(start)); err != nil {
		s.log.Debug().Err(err).Msg("snapshot cache invalidation failed")
	}
	return snap, nil
}

func snapshotCacheKey(date time.Time) string {
	return "snapshot:" + date.Format("2006-01-02")
}

// GetDailySnapshot returns the stored rollup for the date's calendar day, or
// nil when none was computed.
func (s *Service) GetDailySnapshot(ctx context.Context, date time.Time) (*DailySnapshot, error) {
	start, _ := dayWindow(date)
	key := snapshotCacheKey(start)

	var cached DailySnapshot
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !cache.IsMiss(err) {
		s.log.Debug().Err(err).Msg("snapshot cache read failed")
	}

	snap, err := storage.Execute(ctx, s.gw, "snapshots.get",
		func(ctx context.Context) (*DailySnapshot, error) { return s.primary.GetByDate(ctx, start) },
		func(ctx context.Context) (*DailySnapshot, error) { return s.fallback.GetByDate(ctx, start) },
	)
	if err != nil || snap == nil {
		return snap, err
	}
	if err := s.cache.Set(ctx, key, snap, cache.TTLSnapshot); err != nil {
		s.log.Debug().Err(err).Msg("snapshot cache write failed")
	}
	return snap, nil
}

// GetDailySnapshots returns stored rollups with dates in the inclusive range,
// ascending by date.
func (s *Service) GetDailySnapshots(ctx context.Context, startDate, endDate time.Time) ([]*DailySnapshot, error) {
	from, _ := dayWindow(startDate)
	to, _ := dayWindow(endDate)
	return storage.Execute(ctx, s.gw, "snapshots.list",
		func(ctx context.Context) ([]*DailySnapshot, error) { return s.primary.ListRange(ctx, from, to) },
		func(ctx context.Context) ([]*DailySnapshot, error) { return s.fallback.ListRange(ctx, from, to) },
	)
}

// GetRealTimeAnalytics composes the live dashboard view: 24h active users,
// currently open sessions, counts over the trailing hour, top current pages
// and the 20 most recent events.
func (s *Service) GetRealTimeAnalytics(ctx context.Context) (*RealTimeAnalytics, error) {
	const key = "realtime"

	var cached RealTimeAnalytics
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !cache.IsMiss(err) {
		s.log.Debug().Err(err).Msg("realtime cache read failed")
	}

	now := s.now()
	hourAgo := now.Add(-realTimeWindow)

	activeUsers, err := s.users.CountActiveUsers(ctx)
	if err != nil {
		return nil, err
	}
	activeSessions, err := s.sessions.CountActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	transactions, err := s.events.CountTypeInRange(ctx, events.TypeContractInteraction, hourAgo, now)
	if err != nil {
		return nil, err
	}
	eventCount, err := s.events.CountInRange(ctx, hourAgo, now)
	if err != nil {
		return nil, err
	}
	topPages, err := s.sessions.TopExitPages(ctx, topPagesLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.events.RecentEvents(ctx, hourAgo, 20)
	if err != nil {
		return nil, err
	}

	rt := &RealTimeAnalytics{
		Timestamp:              now,
		ActiveUsers:            activeUsers,
		ActiveSessions:         activeSessions,
		TransactionsInLastHour: transactions,
		EventsInLastHour:       eventCount,
		TopCurrentPages:        topPages,
		RecentEvents:           recent,
		Degraded:               s.gw.Degraded(),
	}
	if err := s.cache.Set(ctx, key, rt, cache.TTLRealTime); err != nil {
		s.log.Debug().Err(err).Msg("realtime cache write failed")
	}
	return rt, nil
}

// Start launches the daily snapshot scheduler. It ticks hourly and computes
// the previous day's snapshot when the configured UTC hour comes around.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop halts the scheduler and waits for an in-flight computation to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			now := s.now()
			if now.UTC().Hour() != s.snapshotHour {
				continue
			}
			yesterday := now.AddDate(0, 0, -1)
			if _, err := s.CreateDailySnapshot(ctx, yesterday); err != nil {
				s.log.Error().Err(err).Time("date", yesterday).Msg("daily snapshot failed")
				continue
			}
			s.log.Info().Str("date", yesterday.Format("2006-01-02")).Msg("daily snapshot computed")
		}
	}
}
