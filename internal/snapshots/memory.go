package snapshots

import (
	"context"
	"sort"
	"sync"
	"time"
)

const dateKeyLayout = "2006-01-02"

// MemoryRepository is the in-process fallback store for daily snapshots.
// Not persisted across restarts.
type MemoryRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*DailySnapshot
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory snapshot repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snapshots: make(map[string]*DailySnapshot)}
}

func (r *MemoryRepository) Upsert(ctx context.Context, s *DailySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[s.Date.Format(dateKeyLayout)] = s.Clone()
	return nil
}

func (r *MemoryRepository) GetByDate(ctx context.Context, date time.Time) (*DailySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshots[date.Format(dateKeyLayout)].Clone(), nil
}

func (r *MemoryRepository) ListRange(ctx context.Context, start, end time.Time) ([]*DailySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	from := start.Format(dateKeyLayout)
	to := end.Format(dateKeyLayout)
	var out []*DailySnapshot
	for key, s := range r.snapshots {
		if key >= from && key <= to {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
