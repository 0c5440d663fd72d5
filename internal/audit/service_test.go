package audit

import (
	"context"
	"errors"
	"testing"

	"voice-relay/internal/auth"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected invalid event, got %v", err)
	}
}

func TestService_RecordCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithIdentity(context.Background(), "op-1", "admin")
	ctx = WithClientIP(ctx, "1.2.3.4")
	svc.Record(ctx, Event{Type: EventTypeCallPlaced, CallID: "c1", Message: "call placed"})

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.OperatorID != "op-1" || e.Role != "admin" || e.IPAddress != "1.2.3.4" {
		t.Fatalf("expected actor captured, got %+v", e)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", e)
	}
}

func TestService_RecordIsBestEffort(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Fail = errors.New("db down")
	NewService(repo).Record(context.Background(), Event{Type: EventTypeAdminAction})

	var nilSvc *Service
	nilSvc.Record(context.Background(), Event{Type: EventTypeAdminAction})
}

func TestMemoryRepo_ListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	for _, id := range []string{"a", "b", "c"} {
		if err := svc.Append(context.Background(), Event{ID: id, Type: EventTypeAdminAction}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, _ := svc.List(context.Background(), 2)
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}
