package contracts

import (
	"context"
	"sort"
	"sync"
	"time"

	"getchainpulse.com/chainpulse/pkg/bignum"
)

// MemoryRepository is the in-process fallback store for contract rollups.
// Not persisted across restarts.
type MemoryRepository struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
	seen      map[string]map[string]struct{}
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory contract repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		contracts: make(map[string]*Contract),
		seen:      make(map[string]map[string]struct{}),
	}
}

func (r *MemoryRepository) GetByAddress(ctx context.Context, address string) (*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.contracts[address].Clone(), nil
}

func (r *MemoryRepository) Insert(ctx context.Context, c *Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[c.Address]; ok {
		return nil
	}
	r.contracts[c.Address] = c.Clone()
	return nil
}

func (r *MemoryRepository) MarkUserSeen(ctx context.Context, address, wallet string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wallets, ok := r.seen[address]
	if !ok {
		wallets = make(map[string]struct{})
		r.seen[address] = wallets
	}
	if _, ok := wallets[wallet]; ok {
		return false, nil
	}
	wallets[wallet] = struct{}{}
	return true, nil
}

func (r *MemoryRepository) ApplyInteraction(ctx context.Context, address, eventName string, newUsers int, gasUsed string, at time.Time, metadata map[string]interface{}) (*Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.contracts[address]
	if !ok {
		return nil, nil
	}
	c.TotalInteractions++
	c.UniqueUsers += int64(newUsers)
	c.GasUsed = bignum.Add(c.GasUsed, gasUsed)
	if c.LastInteraction == nil || at.After(*c.LastInteraction) {
		t := at
		c.LastInteraction = &t
	}
	if c.Events == nil {
		c.Events = make(map[string]int64)
	}
	c.Events[eventName]++
	if metadata != nil {
		if c.Metadata == nil {
			c.Metadata = make(map[string]interface{}, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
	return c.Clone(), nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(), nil
}

func (r *MemoryRepository) Top(ctx context.Context, limit int) ([]*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sorted()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sorted returns clones ordered by interactions descending, address as the
// deterministic tie-break. Callers must hold the lock.
func (r *MemoryRepository) sorted() []*Contract {
	out := make([]*Contract, 0, len(r.contracts))
	for _, c := range r.contracts {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalInteractions != out[j].TotalInteractions {
			return out[i].TotalInteractions > out[j].TotalInteractions
		}
		return out[i].Address < out[j].Address
	})
	return out
}
