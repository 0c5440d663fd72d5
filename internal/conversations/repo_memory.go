package conversations

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
	items map[string]Conversation
	clock func() time.Time

	// Fail, when set, is returned by every method.
	Fail error
	// Reads and Writes count store accesses.
	Reads, Writes int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: map[string]Conversation{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, c Conversation) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	if r.Fail != nil {
		return Conversation{}, r.Fail
	}
	now := r.clock().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.History = append([]Turn{}, c.History...)
	r.items[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	if r.Fail != nil {
		return Conversation{}, r.Fail
	}
	c, ok := r.items[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	c.History = append([]Turn{}, c.History...)
	return c, nil
}

func (r *MemoryRepo) SaveTranscript(ctx context.Context, id string, history []Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Writes++
	if r.Fail != nil {
		return r.Fail
	}
	c, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	c.History = append([]Turn{}, history...)
	c.UpdatedAt = r.clock().UTC()
	r.items[id] = c
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, limit int) ([]Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads++
	if r.Fail != nil {
		return nil, r.Fail
	}
	out := make([]Conversation, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
