package snapshots

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/cache"
	"getchainpulse.com/chainpulse/internal/events"
	"getchainpulse.com/chainpulse/internal/sessions"
	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/internal/users"
)

type testStack struct {
	svc      *Service
	gw       *storage.Gateway
	events   *events.MemoryRepository
	sessions *sessions.MemoryRepository
	users    *users.MemoryRepository
	eventSvc *events.Service
	sessSvc  *sessions.Service
	userSvc  *users.Service
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	gw := storage.NewGateway(zerolog.Nop(), true)
	evRepo := events.NewMemoryRepository()
	sessRepo := sessions.NewMemoryRepository()
	userRepo := users.NewMemoryRepository()

	evSvc := events.NewService(gw, evRepo, events.NewMemoryRepository(), zerolog.Nop())
	sessSvc := sessions.NewService(gw, sessRepo, sessions.NewMemoryRepository(), zerolog.Nop())
	userSvc := users.NewService(gw, userRepo, users.NewMemoryRepository(), zerolog.Nop())

	c, err := cache.New(&cache.Config{Enabled: false})
	if err != nil {
		t.Fatalf("cache.New() error: %v", err)
	}

	svc := NewService(gw, NewMemoryRepository(), NewMemoryRepository(),
		evSvc, sessSvc, userSvc, c, 10, 0, zerolog.Nop())
	return &testStack{
		svc:      svc,
		gw:       gw,
		events:   evRepo,
		sessions: sessRepo,
		users:    userRepo,
		eventSvc: evSvc,
		sessSvc:  sessSvc,
		userSvc:  userSvc,
	}
}

var errDown = errors.New("primary store down")

// failingUserRepository simulates an unreachable relational store.
type failingUserRepository struct{}

var _ users.Repository = (*failingUserRepository)(nil)

func (failingUserRepository) GetByWallet(ctx context.Context, wallet string) (*users.User, error) {
	return nil, errDown
}
func (failingUserRepository) Insert(ctx context.Context, u *users.User) error { return errDown }
func (failingUserRepository) ApplyStats(ctx context.Context, wallet string, sessions, interactions, transactions int, gasSpent string, lastSeen time.Time, metadata map[string]interface{}) (*users.User, error) {
	return nil, errDown
}
func (failingUserRepository) ListAll(ctx context.Context) ([]*users.User, error) {
	return nil, errDown
}
func (failingUserRepository) ListActiveSince(ctx context.Context, t time.Time) ([]*users.User, error) {
	return nil, errDown
}
func (failingUserRepository) ListNewSince(ctx context.Context, t time.Time) ([]*users.User, error) {
	return nil, errDown
}
func (failingUserRepository) CountActiveSince(ctx context.Context, t time.Time) (int64, error) {
	return 0, errDown
}
func (failingUserRepository) CountNewBetween(ctx context.Context, start, end time.Time) (int64, error) {
	return 0, errDown
}

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func seedEvent(t *testing.T, repo *events.MemoryRepository, e *events.Event) {
	t.Helper()
	if err := repo.Insert(context.Background(), e); err != nil {
		t.Fatalf("seed event %s: %v", e.ID, err)
	}
}

func seedSession(t *testing.T, repo *sessions.MemoryRepository, s *sessions.Session) {
	t.Helper()
	if err := repo.Insert(context.Background(), s); err != nil {
		t.Fatalf("seed session %s: %v", s.ID, err)
	}
}

func seedUser(t *testing.T, repo *users.MemoryRepository, u *users.User) {
	t.Helper()
	if err := repo.Insert(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", u.WalletAddress, err)
	}
}

func TestCreateDailySnapshot(t *testing.T) {
	st := newTestStack(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	noon := day.Add(12 * time.Hour)

	// Three contract interactions and one UI event inside the day, one
	// event the day after.
	seedEvent(t, st.events, &events.Event{
		ID: "ev-1", EventType: events.TypeContractInteraction, Timestamp: noon,
		WalletAddress: strPtr("0xW1"), ContractAddress: strPtr("0xC1"),
		EventName: strPtr("Transfer"), GasUsed: strPtr("100"),
	})
	seedEvent(t, st.events, &events.Event{
		ID: "ev-2", EventType: events.TypeContractInteraction, Timestamp: noon.Add(time.Minute),
		WalletAddress: strPtr("0xW1"), ContractAddress: strPtr("0xC1"),
		EventName: strPtr("Transfer"), GasUsed: strPtr("50"),
	})
	seedEvent(t, st.events, &events.Event{
		ID: "ev-3", EventType: events.TypeContractInteraction, Timestamp: noon.Add(2 * time.Minute),
		WalletAddress: strPtr("0xW2"), ContractAddress: strPtr("0xC2"),
		EventName: strPtr("Approval"), GasUsed: strPtr("25"),
	})
	seedEvent(t, st.events, &events.Event{
		ID: "ev-4", EventType: events.TypeUIInteraction, Timestamp: noon.Add(3 * time.Minute),
		WalletAddress: strPtr("0xW1"), URL: strPtr("/dashboard"),
	})
	seedEvent(t, st.events, &events.Event{
		ID: "ev-5", EventType: events.TypeContractInteraction, Timestamp: day.Add(36 * time.Hour),
		WalletAddress: strPtr("0xW3"), ContractAddress: strPtr("0xC1"),
		EventName: strPtr("Transfer"), GasUsed: strPtr("999"),
	})

	// Two finished sessions inside the day, one outside.
	end1 := noon.Add(time.Minute)
	end2 := noon.Add(2 * time.Minute)
	seedSession(t, st.sessions, &sessions.Session{
		ID: "s-1", StartTime: noon, EndTime: &end1, Duration: int64Ptr(60000), PageViews: 1,
	})
	seedSession(t, st.sessions, &sessions.Session{
		ID: "s-2", StartTime: noon, EndTime: &end2, Duration: int64Ptr(120000), PageViews: 1,
	})
	seedSession(t, st.sessions, &sessions.Session{
		ID: "s-3", StartTime: day.Add(30 * time.Hour), IsActive: true, PageViews: 1,
	})

	// One user first seen inside the day, one long before.
	seedUser(t, st.users, &users.User{
		ID: "u-1", WalletAddress: "0xW1", FirstSeen: noon, LastSeen: noon, TotalGasSpent: "0",
	})
	seedUser(t, st.users, &users.User{
		ID: "u-2", WalletAddress: "0xW2",
		FirstSeen: day.AddDate(0, 0, -10), LastSeen: noon, TotalGasSpent: "0",
	})

	snap, err := st.svc.CreateDailySnapshot(ctx, noon)
	if err != nil {
		t.Fatalf("CreateDailySnapshot() error: %v", err)
	}

	if !snap.Date.Equal(day) {
		t.Errorf("Date = %v, expected %v", snap.Date, day)
	}
	if snap.NewUsers != 1 {
		t.Errorf("NewUsers = %d, expected 1", snap.NewUsers)
	}
	if snap.ActiveUsers != 2 {
		t.Errorf("ActiveUsers = %d, expected 2 distinct wallets", snap.ActiveUsers)
	}
	if snap.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, expected 2", snap.TotalSessions)
	}
	if snap.AverageSessionDuration != 90000 {
		t.Errorf("AverageSessionDuration = %v, expected 90000", snap.AverageSessionDuration)
	}
	if snap.TotalTransactions != 3 {
		t.Errorf("TotalTransactions = %d, expected 3", snap.TotalTransactions)
	}
	if snap.TotalGasUsed != "175" {
		t.Errorf("TotalGasUsed = %q, expected 175", snap.TotalGasUsed)
	}
	if len(snap.TopContracts) != 2 || snap.TopContracts[0].Address != "0xC1" {
		t.Errorf("TopContracts = %+v, expected 0xC1 first", snap.TopContracts)
	}
	if len(snap.TopEvents) != 2 || snap.TopEvents[0].Name != "Transfer" {
		t.Errorf("TopEvents = %+v, expected Transfer first", snap.TopEvents)
	}
}

func TestCreateDailySnapshotOverwrites(t *testing.T) {
	st := newTestStack(t)
	ctx := context.Background()

	day := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	noon := day.Add(12 * time.Hour)

	seedEvent(t, st.events, &events.Event{
		ID: "ev-1", EventType: events.TypeContractInteraction, Timestamp: noon,
		WalletAddress: strPtr("0xW1"), ContractAddress: strPtr("0xC1"),
		EventName: strPtr("Transfer"), GasUsed: strPtr("10"),
	})

	first, err := st.svc.CreateDailySnapshot(ctx, noon)
	if err != nil {
		t.Fatalf("CreateDailySnapshot() error: %v", err)
	}
	if first.TotalTransactions != 1 {
		t.Fatalf("TotalTransactions = %d, expected 1", first.TotalTransactions)
	}

	seedEvent(t, st.events, &events.Event{
		ID: "ev-2", EventType: events.TypeContractInteraction, Timestamp: noon.Add(time.Hour),
		WalletAddress: strPtr("0xW2"), ContractAddress: strPtr("0xC1"),
		EventName: strPtr("Transfer"), GasUsed: strPtr("5"),
	})

	if _, err := st.svc.CreateDailySnapshot(ctx, noon); err != nil {
		t.Fatalf("second CreateDailySnapshot() error: %v", err)
	}

	stored, err := st.svc.GetDailySnapshot(ctx, noon)
	if err != nil {
		t.Fatalf("GetDailySnapshot() error: %v", err)
	}
	if stored.TotalTransactions != 2 {
		t.Errorf("TotalTransactions = %d after recompute, expected 2 (overwrite, not accumulate)", stored.TotalTransactions)
	}
	if stored.TotalGasUsed != "15" {
		t.Errorf("TotalGasUsed = %q after recompute, expected 15", stored.TotalGasUsed)
	}
}

func TestGetDailySnapshotUnknownDate(t *testing.T) {
	st := newTestStack(t)

	snap, err := st.svc.GetDailySnapshot(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetDailySnapshot() error: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil for a date with no snapshot, got %+v", snap)
	}
}

func TestGetDailySnapshotsRangeInclusiveAscending(t *testing.T) {
	st := newTestStack(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for d := 0; d < 4; d++ {
		if _, err := st.svc.CreateDailySnapshot(ctx, base.AddDate(0, 0, d)); err != nil {
			t.Fatalf("CreateDailySnapshot(+%dd) error: %v", d, err)
		}
	}

	list, err := st.svc.GetDailySnapshots(ctx, base, base.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("GetDailySnapshots() error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("GetDailySnapshots() returned %d snapshots, expected 3 (inclusive bounds)", len(list))
	}
	for i := 1; i < len(list); i++ {
		if !list[i-1].Date.Before(list[i].Date) {
			t.Errorf("snapshots out of order: %v before %v", list[i-1].Date, list[i].Date)
		}
	}
}

func TestGetRealTimeAnalytics(t *testing.T) {
	st := newTestStack(t)
	ctx := context.Background()

	if _, err := st.userSvc.GetOrCreateUser(ctx, "0xW1", nil); err != nil {
		t.Fatalf("GetOrCreateUser() error: %v", err)
	}

	sess, err := st.sessSvc.CreateSession(ctx, sessions.CreateParams{EntryPage: strPtr("/home")})
	if err != nil {
		t.Fatalf("CreateSession() error: %v", err)
	}
	if _, err := st.sessSvc.UpdateSessionStats(ctx, sess.ID, true, false, strPtr("/markets")); err != nil {
		t.Fatalf("UpdateSessionStats() error: %v", err)
	}

	if _, err := st.eventSvc.StoreContractEvent(ctx, &events.Event{
		WalletAddress: strPtr("0xW1"), ContractAddress: strPtr("0xC1"), EventName: strPtr("Transfer"),
	}); err != nil {
		t.Fatalf("StoreContractEvent() error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.eventSvc.StoreUIEvent(ctx, &events.Event{
			SessionID: strPtr(sess.ID), URL: strPtr("/markets"),
		}); err != nil {
			t.Fatalf("StoreUIEvent() error: %v", err)
		}
	}

	rt, err := st.svc.GetRealTimeAnalytics(ctx)
	if err != nil {
		t.Fatalf("GetRealTimeAnalytics() error: %v", err)
	}
	if rt.ActiveUsers != 1 {
		t.Errorf("ActiveUsers = %d, expected 1", rt.ActiveUsers)
	}
	if rt.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, expected 1", rt.ActiveSessions)
	}
	if rt.TransactionsInLastHour != 1 {
		t.Errorf("TransactionsInLastHour = %d, expected 1", rt.TransactionsInLastHour)
	}
	if rt.EventsInLastHour != 3 {
		t.Errorf("EventsInLastHour = %d, expected 3", rt.EventsInLastHour)
	}
	if len(rt.TopCurrentPages) != 1 || rt.TopCurrentPages[0].Page != "/markets" {
		t.Errorf("TopCurrentPages = %+v, expected /markets", rt.TopCurrentPages)
	}
	if len(rt.RecentEvents) != 3 {
		t.Errorf("RecentEvents has %d events, expected 3", len(rt.RecentEvents))
	}
	if rt.Degraded {
		t.Error("Degraded = true on a healthy stack")
	}
}

func TestRealTimeAnalyticsReportsDegraded(t *testing.T) {
	st := newTestStack(t)
	ctx := context.Background()

	// Swap in a users service whose primary store is down; the gateway
	// serves the fallback and flips into degraded mode.
	st.svc.users = users.NewService(st.gw, failingUserRepository{}, users.NewMemoryRepository(), zerolog.Nop())

	rt, err := st.svc.GetRealTimeAnalytics(ctx)
	if err != nil {
		t.Fatalf("GetRealTimeAnalytics() error: %v", err)
	}
	if !rt.Degraded {
		t.Error("Degraded = false after a fallback was served")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	st := newTestStack(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st.svc.Start(ctx)
	st.svc.Start(ctx) // second call is a no-op
	st.svc.Stop()
	st.svc.Stop() // stopping twice must not panic
}
