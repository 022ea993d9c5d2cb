package sessions

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is the in-process fallback session store.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory session repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*Session)}
}

func (r *MemoryRepository) Insert(ctx context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id].Clone(), nil
}

func (r *MemoryRepository) AddStats(ctx context.Context, id string, pageViews, interactions int, currentPage *string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return nil, nil
	}
	s.PageViews += pageViews
	s.Interactions += interactions
	if currentPage != nil {
		s.ExitPage = currentPage
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) End(ctx context.Context, id string, endTime time.Time, exitPage *string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || !s.IsActive {
		return nil, nil
	}
	end := endTime
	duration := end.Sub(s.StartTime).Milliseconds()
	s.EndTime = &end
	s.Duration = &duration
	s.IsActive = false
	if exitPage != nil {
		s.ExitPage = exitPage
	}
	return s.Clone(), nil
}

func sortByStartDesc(list []*Session) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.After(list[j].StartTime)
		}
		return list[i].ID > list[j].ID
	})
}

func (r *MemoryRepository) ListActive(ctx context.Context) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*Session
	for _, s := range r.sessions {
		if s.IsActive {
			list = append(list, s.Clone())
		}
	}
	sortByStartDesc(list)
	return list, nil
}

func (r *MemoryRepository) ListByWallet(ctx context.Context, wallet string) ([]*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var list []*Session
	for _, s := range r.sessions {
		if s.WalletAddress != nil && *s.WalletAddress == wallet {
			list = append(list, s.Clone())
		}
	}
	sortByStartDesc(list)
	return list, nil
}

func (r *MemoryRepository) CountActive(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, s := range r.sessions {
		if s.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CountStartedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, s := range r.sessions {
		if !s.StartTime.Before(start) && !s.StartTime.After(end) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) DurationTotals(ctx context.Context, start, end time.Time) (int64, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count, total int64
	for _, s := range r.sessions {
		if s.Duration != nil && !s.StartTime.Before(start) && !s.StartTime.After(end) {
			count++
			total += *s.Duration
		}
	}
	return count, total, nil
}
