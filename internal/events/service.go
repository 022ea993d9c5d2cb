package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"getchainpulse.com/chainpulse/internal/storage"
	"getchainpulse.com/chainpulse/pkg/bignum"
	"getchainpulse.com/chainpulse/pkg/ethaddr"
)

// Default and maximum page sizes for event queries.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Service provides event ingestion and retrieval. Every operation runs
// through the storage gateway, so a failing relational store degrades to the
// in-memory fallback without surfacing errors to the caller.
type Service struct {
	gw       *storage.Gateway
	primary  Repository
	fallback Repository
	log      zerolog.Logger
}

// NewService creates a new event service
func NewService(gw *storage.Gateway, primary, fallback Repository, log zerolog.Logger) *Service {
	return &Service{
		gw:       gw,
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "events").Logger(),
	}
}

// prepare assigns an id and timestamp when missing, normalizes addresses and
// nulls out malformed numeric fields.
func (s *Service) prepare(e *Event, eventType string) {
	e.EventType = eventType
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	e.WalletAddress = ethaddr.NormalizePtr(e.WalletAddress)
	e.ContractAddress = ethaddr.NormalizePtr(e.ContractAddress)
	if e.GasUsed != nil && !bignum.IsValid(*e.GasUsed) {
		e.GasUsed = nil
	}
	if e.GasPrice != nil && !bignum.IsValid(*e.GasPrice) {
		e.GasPrice = nil
	}
}

func (s *Service) store(ctx context.Context, e *Event) (string, error) {
	return storage.Execute(ctx, s.gw, "events.store",
		func(ctx context.Context) (string, error) { return e.ID, s.primary.Insert(ctx, e) },
		func(ctx context.Context) (string, error) { return e.ID, s.fallback.Insert(ctx, e) },
	)
}

// StoreContractEvent persists a contract-interaction event, assigning an id
// when absent, and returns the id.
func (s *Service) StoreContractEvent(ctx context.Context, e *Event) (string, error) {
	s.prepare(e, TypeContractInteraction)
	return s.store(ctx, e)
}

// StoreUIEvent persists a UI-interaction event, assigning an id when absent,
// and returns the id.
func (s *Service) StoreUIEvent(ctx context.Context, e *Event) (string, error) {
	s.prepare(e, TypeUIInteraction)
	return s.store(ctx, e)
}

// QueryEvents returns a page of events matching all provided filters.
func (s *Service) QueryEvents(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.SortDir != "asc" {
		f.SortDir = "desc"
	}
	f.SortBy = "timestamp"
	f.WalletAddress = ethaddr.NormalizePtr(f.WalletAddress)
	f.ContractAddress = ethaddr.NormalizePtr(f.ContractAddress)

	type result struct {
		data  []*Event
		total int64
	}
	res, err := storage.Execute(ctx, s.gw, "events.query",
		func(ctx context.Context) (result, error) {
			data, total, err := s.primary.Query(ctx, f)
			return result{data, total}, err
		},
		func(ctx context.Context) (result, error) {
			data, total, err := s.fallback.Query(ctx, f)
			return result{data, total}, err
		},
	)
	if err != nil {
		return nil, err
	}

	if res.data == nil {
		res.data = []*Event{}
	}
	return &Page{
		Data:    res.data,
		Total:   res.total,
		Page:    f.Offset/f.Limit + 1,
		Limit:   f.Limit,
		HasMore: int64(f.Offset+len(res.data)) < res.total,
	}, nil
}

// GetEventByID returns the event, or nil when no such event exists.
func (s *Service) GetEventByID(ctx context.Context, id string) (*Event, error) {
	return storage.Execute(ctx, s.gw, "events.get",
		func(ctx context.Context) (*Event, error) { return s.primary.GetByID(ctx, id) },
		func(ctx context.Context) (*Event, error) { return s.fallback.GetByID(ctx, id) },
	)
}

// DeleteEventByID removes the event, reporting whether a record was removed.
func (s *Service) DeleteEventByID(ctx context.Context, id string) (bool, error) {
	return storage.Execute(ctx, s.gw, "events.delete",
		func(ctx context.Context) (bool, error) { return s.primary.DeleteByID(ctx, id) },
		func(ctx context.Context) (bool, error) { return s.fallback.DeleteByID(ctx, id) },
	)
}

// GetEventCountsByType returns event counts grouped by type, optionally
// bounded by an inclusive time range.
func (s *Service) GetEventCountsByType(ctx context.Context, start, end *time.Time) (map[string]int64, error) {
	return storage.Execute(ctx, s.gw, "events.countsByType",
		func(ctx context.Context) (map[string]int64, error) { return s.primary.CountsByType(ctx, start, end) },
		func(ctx context.Context) (map[string]int64, error) { return s.fallback.CountsByType(ctx, start, end) },
	)
}

// DistinctWallets counts distinct wallets with any event in the range.
func (s *Service) DistinctWallets(ctx context.Context, start, end time.Time) (int64, error) {
	return storage.Execute(ctx, s.gw, "events.distinctWallets",
		func(ctx context.Context) (int64, error) { return s.primary.DistinctWallets(ctx, start, end) },
		func(ctx context.Context) (int64, error) { return s.fallback.DistinctWallets(ctx, start, end) },
	)
}

// CountTypeInRange counts events of one type in the range.
func (s *Service) CountTypeInRange(ctx context.Context, eventType string, start, end time.Time) (int64, error) {
	return storage.Execute(ctx, s.gw, "events.countTypeInRange",
		func(ctx context.Context) (int64, error) { return s.primary.CountTypeInRange(ctx, eventType, start, end) },
		func(ctx context.Context) (int64, error) { return s.fallback.CountTypeInRange(ctx, eventType, start, end) },
	)
}

// CountInRange counts all events in the range.
func (s *Service) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	return storage.Execute(ctx, s.gw, "events.countInRange",
		func(ctx context.Context) (int64, error) { return s.primary.CountInRange(ctx, start, end) },
		func(ctx context.Context) (int64, error) { return s.fallback.CountInRange(ctx, start, end) },
	)
}

// SumGasUsed returns the exact gas total over events in the range.
func (s *Service) SumGasUsed(ctx context.Context, start, end time.Time) (string, error) {
	return storage.Execute(ctx, s.gw, "events.sumGasUsed",
		func(ctx context.Context) (string, error) { return s.primary.SumGasUsed(ctx, start, end) },
		func(ctx context.Context) (string, error) { return s.fallback.SumGasUsed(ctx, start, end) },
	)
}

// TopContracts ranks contracts by interaction count in the range.
func (s *Service) TopContracts(ctx context.Context, start, end time.Time, limit int) ([]ContractCount, error) {
	return storage.Execute(ctx, s.gw, "events.topContracts",
		func(ctx context.Context) ([]ContractCount, error) { return s.primary.TopContracts(ctx, start, end, limit) },
		func(ctx context.Context) ([]ContractCount, error) { return s.fallback.TopContracts(ctx, start, end, limit) },
	)
}

// TopEventNames ranks event names by occurrence count in the range.
func (s *Service) TopEventNames(ctx context.Context, start, end time.Time, limit int) ([]EventNameCount, error) {
	return storage.Execute(ctx, s.gw, "events.topEventNames",
		func(ctx context.Context) ([]EventNameCount, error) { return s.primary.TopEventNames(ctx, start, end, limit) },
		func(ctx context.Context) ([]EventNameCount, error) { return s.fallback.TopEventNames(ctx, start, end, limit) },
	)
}

// RecentEvents returns the most recent events since a time, newest first.
func (s *Service) RecentEvents(ctx context.Context, since time.Time, limit int) ([]*Event, error) {
	return storage.Execute(ctx, s.gw, "events.recent",
		func(ctx context.Context) ([]*Event, error) { return s.primary.Recent(ctx, since, limit) },
		func(ctx context.Context) ([]*Event, error) { return s.fallback.Recent(ctx, since, limit) },
	)
}
