package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"getchainpulse.com/chainpulse/pkg/bignum"
)

// MemoryRepository is the in-process fallback user store.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by wallet address
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory user repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*User)}
}

func (r *MemoryRepository) GetByWallet(ctx context.Context, wallet string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[wallet].Clone(), nil
}

func (r *MemoryRepository) Insert(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[u.WalletAddress]; exists {
		return nil
	}
	r.users[u.WalletAddress] = u.Clone()
	return nil
}

func (r *MemoryRepository) ApplyStats(ctx context.Context, wallet string, sessions, interactions, transactions int, gasSpent string, lastSeen time.Time, metadata map[string]interface{}) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[wallet]
	if !ok {
		return nil, nil
	}
	if lastSeen.After(u.LastSeen) {
		u.LastSeen = lastSeen
	}
	u.TotalSessions += int64(sessions)
	u.TotalInteractions += int64(interactions)
	u.TotalTransactions += int64(transactions)
	u.TotalGasSpent = bignum.Add(u.TotalGasSpent, gasSpent)
	if len(metadata) > 0 {
		if u.Metadata == nil {
			u.Metadata = make(map[string]interface{}, len(metadata))
		}
		for k, v := range metadata {
			u.Metadata[k] = v
		}
	}
	return u.Clone(), nil
}

func sortByLastSeenDesc(list []*User) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].LastSeen.Equal(list[j].LastSeen) {
			return list[i].LastSeen.After(list[j].LastSeen)
		}
		return list[i].WalletAddress < list[j].WalletAddress
	})
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		list = append(list, u.Clone())
	}
	sortByLastSeenDesc(list)
	return list, nil
}

func (r *MemoryRepository) ListActiveSince(ctx context.Context, t time.Time) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*User
	for _, u := range r.users {
		if !u.LastSeen.Before(t) {
			list = append(list, u.Clone())
		}
	}
	sortByLastSeenDesc(list)
	return list, nil
}

func (r *MemoryRepository) ListNewSince(ctx context.Context, t time.Time) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*User
	for _, u := range r.users {
		if !u.FirstSeen.Before(t) {
			list = append(list, u.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].FirstSeen.Equal(list[j].FirstSeen) {
			return list[i].FirstSeen.After(list[j].FirstSeen)
		}
		return list[i].WalletAddress < list[j].WalletAddress
	})
	return list, nil
}

func (r *MemoryRepository) CountActiveSince(ctx context.Context, t time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, u := range r.users {
		if !u.LastSeen.Before(t) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CountNewBetween(ctx context.Context, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, u := range r.users {
		if !u.FirstSeen.Before(start) && !u.FirstSeen.After(end) {
			count++
		}
	}
	return count, nil
}
