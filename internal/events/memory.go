package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"getchainpulse.com/chainpulse/pkg/bignum"
)

// MemoryRepository is the in-process fallback event store. It holds events in
// an ordinary keyed map, guarded by a mutex, and hands out copies so callers
// can never mutate stored records in place. Contents are lost on restart.
type MemoryRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory event repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]*Event)}
}

func (r *MemoryRepository) Insert(ctx context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.ID] = e.Clone()
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events[id].Clone(), nil
}

func (r *MemoryRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[id]; !ok {
		return false, nil
	}
	delete(r.events, id)
	return true, nil
}

// matches applies the conjunctive filter semantics shared with the relational
// backend.
func matches(e *Event, f Filter) bool {
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.Timestamp.After(*f.EndTime) {
		return false
	}
	if f.WalletAddress != nil && (e.WalletAddress == nil || *e.WalletAddress != *f.WalletAddress) {
		return false
	}
	if f.ContractAddress != nil && (e.ContractAddress == nil || *e.ContractAddress != *f.ContractAddress) {
		return false
	}
	if f.EventType != nil && e.EventType != *f.EventType {
		return false
	}
	if f.ChainID != nil && (e.ChainID == nil || *e.ChainID != *f.ChainID) {
		return false
	}
	return true
}

// sortEvents orders events by timestamp with id as the deterministic
// tie-break, matching the relational ORDER BY.
func sortEvents(list []*Event, ascending bool) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			if ascending {
				return a.Timestamp.Before(b.Timestamp)
			}
			return a.Timestamp.After(b.Timestamp)
		}
		if ascending {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})
}

func (r *MemoryRepository) Query(ctx context.Context, f Filter) ([]*Event, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Event
	for _, e := range r.events {
		if matches(e, f) {
			matched = append(matched, e)
		}
	}
	sortEvents(matched, f.SortDir == "asc")

	total := int64(len(matched))
	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if f.Limit <= 0 || end > len(matched) {
		end = len(matched)
	}

	page := make([]*Event, 0, end-start)
	for _, e := range matched[start:end] {
		page = append(page, e.Clone())
	}
	return page, total, nil
}

func (r *MemoryRepository) CountsByType(ctx context.Context, start, end *time.Time) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range r.events {
		if start != nil && e.Timestamp.Before(*start) {
			continue
		}
		if end != nil && e.Timestamp.After(*end) {
			continue
		}
		counts[e.EventType]++
	}
	return counts, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func (r *MemoryRepository) DistinctWallets(ctx context.Context, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range r.events {
		if e.WalletAddress != nil && inRange(e.Timestamp, start, end) {
			seen[*e.WalletAddress] = struct{}{}
		}
	}
	return int64(len(seen)), nil
}

func (r *MemoryRepository) CountTypeInRange(ctx context.Context, eventType string, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, e := range r.events {
		if e.EventType == eventType && inRange(e.Timestamp, start, end) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CountInRange(ctx context.Context, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, e := range r.events {
		if inRange(e.Timestamp, start, end) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) SumGasUsed(ctx context.Context, start, end time.Time) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sum := bignum.Zero
	for _, e := range r.events {
		if e.GasUsed != nil && inRange(e.Timestamp, start, end) {
			sum = bignum.Add(sum, *e.GasUsed)
		}
	}
	return sum, nil
}

func (r *MemoryRepository) TopContracts(ctx context.Context, start, end time.Time, limit int) ([]ContractCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range r.events {
		if e.EventType == TypeContractInteraction && e.ContractAddress != nil && inRange(e.Timestamp, start, end) {
			counts[*e.ContractAddress]++
		}
	}

	top := make([]ContractCount, 0, len(counts))
	for addr, count := range counts {
		top = append(top, ContractCount{Address: addr, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Address < top[j].Address
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (r *MemoryRepository) TopEventNames(ctx context.Context, start, end time.Time, limit int) ([]EventNameCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range r.events {
		if e.EventName != nil && inRange(e.Timestamp, start, end) {
			counts[*e.EventName]++
		}
	}

	top := make([]EventNameCount, 0, len(counts))
	for name, count := range counts {
		top = append(top, EventNameCount{Name: name, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Name < top[j].Name
	})
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (r *MemoryRepository) Recent(ctx context.Context, since time.Time, limit int) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Event
	for _, e := range r.events {
		if !e.Timestamp.Before(since) {
			matched = append(matched, e)
		}
	}
	sortEvents(matched, false)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*Event, 0, len(matched))
	for _, e := range matched {
		out = append(out, e.Clone())
	}
	return out, nil
}
