package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/storage"
)

var errDown = errors.New("primary store down")

// failingRepository simulates an unreachable relational store.
type failingRepository struct{}

var _ Repository = (*failingRepository)(nil)

func (failingRepository) Insert(ctx context.Context, e *Event) error { return errDown }
func (failingRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	return nil, errDown
}
func (failingRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	return false, errDown
}
func (failingRepository) Query(ctx context.Context, f Filter) ([]*Event, int64, error) {
	return nil, 0, errDown
}
func (failingRepository) CountsByType(ctx context.Context, start, end *time.Time) (map[string]int64, error) {
	return nil, errDown
}
func (failingRepository) DistinctWallets(ctx context.Context, start, end time.Time) (int64, error) {
	return 0, errDown
}
func (failingRepository) CountTypeInRange(ctx context.Context, eventType string, start, end time.Time) (int64, error) {
	return 0, errDown
}
func (failingRepository) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	return 0, errDown
}
func (failingRepository) SumGasUsed(ctx context.Context, start, end time.Time) (string, error) {
	return "", errDown
}
func (failingRepository) TopContracts(ctx context.Context, start, end time.Time, limit int) ([]ContractCount, error) {
	return nil, errDown
}
func (failingRepository) TopEventNames(ctx context.Context, start, end time.Time, limit int) ([]EventNameCount, error) {
	return nil, errDown
}
func (failingRepository) Recent(ctx context.Context, since time.Time, limit int) ([]*Event, error) {
	return nil, errDown
}

func newTestService() *Service {
	gw := storage.NewGateway(zerolog.Nop(), true)
	return NewService(gw, NewMemoryRepository(), NewMemoryRepository(), zerolog.Nop())
}

func newDegradedService() *Service {
	gw := storage.NewGateway(zerolog.Nop(), true)
	return NewService(gw, failingRepository{}, NewMemoryRepository(), zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestStoreContractEventAssignsID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	id, err := svc.StoreContractEvent(ctx, &Event{
		WalletAddress:   strPtr("0xW1"),
		ContractAddress: strPtr("0xC1"),
		EventName:       strPtr("Transfer"),
	})
	if err != nil {
		t.Fatalf("StoreContractEvent() error: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	stored, err := svc.GetEventByID(ctx, id)
	if err != nil {
		t.Fatalf("GetEventByID() error: %v", err)
	}
	if stored == nil {
		t.Fatal("stored event not found")
	}
	if stored.EventType != TypeContractInteraction {
		t.Errorf("EventType = %q, expected %q", stored.EventType, TypeContractInteraction)
	}
	if stored.Timestamp.IsZero() {
		t.Error("expected a timestamp to be assigned")
	}
}

func TestStoreUIEventKeepsProvidedID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	id, err := svc.StoreUIEvent(ctx, &Event{
		ID:        "evt-1",
		SessionID: strPtr("sess-1"),
		URL:       strPtr("/dashboard"),
	})
	if err != nil {
		t.Fatalf("StoreUIEvent() error: %v", err)
	}
	if id != "evt-1" {
		t.Errorf("id = %q, expected evt-1", id)
	}
}

func TestStoreEventNullsMalformedGas(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	id, err := svc.StoreContractEvent(ctx, &Event{
		GasUsed:  strPtr("not-a-number"),
		GasPrice: strPtr("1000000000"),
	})
	if err != nil {
		t.Fatalf("StoreContractEvent() error: %v", err)
	}

	stored, _ := svc.GetEventByID(ctx, id)
	if stored.GasUsed != nil {
		t.Errorf("malformed gasUsed should be stored as null, got %q", *stored.GasUsed)
	}
	if stored.GasPrice == nil || *stored.GasPrice != "1000000000" {
		t.Error("well-formed gasPrice should be preserved")
	}
}

func TestQueryEventsFilterConjunction(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	fixtures := []struct {
		event    *Event
		contract bool
	}{
		{&Event{ID: "both", WalletAddress: strPtr("0xW"), Timestamp: now}, true},
		{&Event{ID: "wallet-only", WalletAddress: strPtr("0xW"), Timestamp: now}, false},
		{&Event{ID: "type-only", WalletAddress: strPtr("0xOTHER"), Timestamp: now}, true},
		{&Event{ID: "neither", WalletAddress: strPtr("0xOTHER"), Timestamp: now}, false},
	}
	for _, f := range fixtures {
		var err error
		if f.contract {
			_, err = svc.StoreContractEvent(ctx, f.event)
		} else {
			_, err = svc.StoreUIEvent(ctx, f.event)
		}
		if err != nil {
			t.Fatalf("store fixture %s: %v", f.event.ID, err)
		}
	}

	eventType := TypeContractInteraction
	page, err := svc.QueryEvents(ctx, Filter{
		WalletAddress: strPtr("0xW"),
		EventType:     &eventType,
	})
	if err != nil {
		t.Fatalf("QueryEvents() error: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("Total = %d, expected 1", page.Total)
	}
	if page.Data[0].ID != "both" {
		t.Errorf("matched event = %q, expected %q", page.Data[0].ID, "both")
	}
}

func TestQueryEventsPagination(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := svc.StoreUIEvent(ctx, &Event{Timestamp: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("store fixture: %v", err)
		}
	}

	page, err := svc.QueryEvents(ctx, Filter{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("QueryEvents() error: %v", err)
	}
	if len(page.Data) != 2 || page.Total != 5 {
		t.Fatalf("page 1: got %d of %d, expected 2 of 5", len(page.Data), page.Total)
	}
	if !page.HasMore {
		t.Error("page 1 should have more")
	}
	if page.Page != 1 {
		t.Errorf("Page = %d, expected 1", page.Page)
	}

	last, err := svc.QueryEvents(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("QueryEvents() error: %v", err)
	}
	if len(last.Data) != 1 || last.HasMore {
		t.Errorf("last page: got %d events, hasMore=%v; expected 1, false", len(last.Data), last.HasMore)
	}
}

func TestQueryEventsDeterministicTieBreak(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"b", "a", "c"} {
		if _, err := svc.StoreUIEvent(ctx, &Event{ID: id, Timestamp: ts}); err != nil {
			t.Fatalf("store fixture: %v", err)
		}
	}

	page, err := svc.QueryEvents(ctx, Filter{})
	if err != nil {
		t.Fatalf("QueryEvents() error: %v", err)
	}
	got := []string{page.Data[0].ID, page.Data[1].ID, page.Data[2].ID}
	expected := []string{"c", "b", "a"} // descending by id on equal timestamps
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("order = %v, expected %v", got, expected)
		}
	}
}

func TestDeleteEventByID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	id, _ := svc.StoreUIEvent(ctx, &Event{})

	removed, err := svc.DeleteEventByID(ctx, id)
	if err != nil {
		t.Fatalf("DeleteEventByID() error: %v", err)
	}
	if !removed {
		t.Error("expected removal of an existing event")
	}

	removed, err = svc.DeleteEventByID(ctx, id)
	if err != nil {
		t.Fatalf("DeleteEventByID() error: %v", err)
	}
	if removed {
		t.Error("second delete should report false")
	}

	if e, _ := svc.GetEventByID(ctx, id); e != nil {
		t.Error("deleted event should be gone")
	}
}

func TestGetEventCountsByType(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	svc.StoreContractEvent(ctx, &Event{Timestamp: now})
	svc.StoreContractEvent(ctx, &Event{Timestamp: now})
	svc.StoreUIEvent(ctx, &Event{Timestamp: now})
	svc.StoreUIEvent(ctx, &Event{Timestamp: now.Add(-48 * time.Hour)})

	counts, err := svc.GetEventCountsByType(ctx, nil, nil)
	if err != nil {
		t.Fatalf("GetEventCountsByType() error: %v", err)
	}
	if counts[TypeContractInteraction] != 2 || counts[TypeUIInteraction] != 2 {
		t.Errorf("unbounded counts = %v", counts)
	}

	start := now.Add(-time.Hour)
	counts, err = svc.GetEventCountsByType(ctx, &start, nil)
	if err != nil {
		t.Fatalf("GetEventCountsByType() error: %v", err)
	}
	if counts[TypeUIInteraction] != 1 {
		t.Errorf("bounded UI count = %d, expected 1", counts[TypeUIInteraction])
	}
}

func TestFallbackTransparency(t *testing.T) {
	svc := newDegradedService()
	ctx := context.Background()
	now := time.Now().UTC()

	id, err := svc.StoreContractEvent(ctx, &Event{
		WalletAddress: strPtr("0xW1"),
		GasUsed:       strPtr("500"),
		Timestamp:     now,
	})
	if err != nil {
		t.Fatalf("store with failing primary must not error: %v", err)
	}

	stored, err := svc.GetEventByID(ctx, id)
	if err != nil || stored == nil {
		t.Fatalf("get with failing primary: event=%v err=%v", stored, err)
	}

	page, err := svc.QueryEvents(ctx, Filter{WalletAddress: strPtr("0xW1")})
	if err != nil {
		t.Fatalf("query with failing primary must not error: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Total = %d, expected 1", page.Total)
	}

	sum, err := svc.SumGasUsed(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil || sum != "500" {
		t.Errorf("SumGasUsed = %q, %v; expected 500, nil", sum, err)
	}

	if _, err := svc.DeleteEventByID(ctx, id); err != nil {
		t.Errorf("delete with failing primary must not error: %v", err)
	}
}

func TestRecentEventsBounded(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 30; i++ {
		svc.StoreUIEvent(ctx, &Event{Timestamp: now.Add(-time.Duration(i) * time.Minute)})
	}

	recent, err := svc.RecentEvents(ctx, now.Add(-time.Hour), 20)
	if err != nil {
		t.Fatalf("RecentEvents() error: %v", err)
	}
	if len(recent) != 20 {
		t.Fatalf("len(recent) = %d, expected 20", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].Timestamp.After(recent[i-1].Timestamp) {
			t.Fatal("recent events must be ordered newest first")
		}
	}
}

func TestTopContractsAndEventNames(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	now := time.Now().UTC()

	fixtures := []struct {
		contract string
		name     string
		n        int
	}{
		{"0xC1", "Transfer", 3},
		{"0xC2", "Approval", 2},
		{"0xC3", "Transfer", 1},
	}
	for _, f := range fixtures {
		for i := 0; i < f.n; i++ {
			svc.StoreContractEvent(ctx, &Event{
				ContractAddress: strPtr(f.contract),
				EventName:       strPtr(f.name),
				Timestamp:       now,
			})
		}
	}

	start, end := now.Add(-time.Hour), now.Add(time.Hour)

	top, err := svc.TopContracts(ctx, start, end, 2)
	if err != nil {
		t.Fatalf("TopContracts() error: %v", err)
	}
	if len(top) != 2 || top[0].Address != "0xC1" || top[0].Count != 3 || top[1].Address != "0xC2" {
		t.Errorf("TopContracts = %+v", top)
	}

	names, err := svc.TopEventNames(ctx, start, end, 10)
	if err != nil {
		t.Fatalf("TopEventNames() error: %v", err)
	}
	if len(names) != 2 || names[0].Name != "Transfer" || names[0].Count != 4 {
		t.Errorf("TopEventNames = %+v", names)
	}
}
