package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
	clock func() time.Time

	// Fail, when set, is returned by every method. Lets tests simulate a store outage.
	Fail error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{calls: map[string]Call{}, clock: time.Now}
}

func (r *MemoryRepo) Insert(ctx context.Context, c Call) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return Call{}, r.Fail
	}
	now := r.clock().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	r.calls[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return Call{}, r.Fail
	}
	c, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Transition(ctx context.Context, id string, fn func(Call) (Call, bool)) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return Call{}, r.Fail
	}
	cur, ok := r.calls[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	next, changed := fn(cur)
	if !changed {
		return cur, nil
	}
	next.UpdatedAt = r.clock().UTC()
	r.calls[id] = next
	return next, nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	out := r.sortedLocked()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fail != nil {
		return nil, r.Fail
	}
	out := make([]Call, 0)
	for _, c := range r.sortedLocked() {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Put stores c as-is. Test helper for seeding records with fixed ids and times.
func (r *MemoryRepo) Put(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[c.ID] = c
}

func (r *MemoryRepo) sortedLocked() []Call {
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
