package session

import (
	"errors"
	"testing"
	"time"
)

func TestRegistryCreateIdempotent(t *testing.T) {
	r := NewRegistry()

	first, created := r.Create("call-1", Context{PhoneNumber: "+15550100"})
	if !created {
		t.Fatal("first create should report created=true")
	}

	second, created := r.Create("call-1", Context{PhoneNumber: "+15550199"})
	if created {
		t.Error("repeated create should report created=false")
	}
	if second != first {
		t.Error("repeated create must return the existing session")
	}
	if second.Context().PhoneNumber != "+15550100" {
		t.Error("repeated create must leave the existing session untouched")
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1", r.Count())
	}
}

func TestRegistryGetNotFound(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("ghost"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	r.Create("call-1", Context{})
	if _, err := r.Get("call-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Create("call-1", Context{})

	r.Remove("call-1")
	if r.Count() != 0 {
		t.Errorf("count after remove = %d, want 0", r.Count())
	}

	// Removing twice, or an unknown ID, is a no-op.
	r.Remove("call-1")
	r.Remove("never-existed")
}

func TestRegistrySummariesOrdered(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.SetNowFunc(func() time.Time { return now })

	r.Create("call-b", Context{})
	now = now.Add(time.Minute)
	r.Create("call-a", Context{})

	now = now.Add(30 * time.Second)
	summaries := r.Summaries()
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].CallID != "call-b" || summaries[1].CallID != "call-a" {
		t.Errorf("summaries not ordered by start time: %q, %q", summaries[0].CallID, summaries[1].CallID)
	}
	if summaries[0].DurationSeconds != 90 {
		t.Errorf("duration = %v, want 90", summaries[0].DurationSeconds)
	}
}

func TestRegistryIdleCallIDs(t *testing.T) {
	r := NewRegistry()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.SetNowFunc(func() time.Time { return now })

	stale, _ := r.Create("stale", Context{})
	r.Create("fresh", Context{})

	// Age the stale session past the threshold, keep fresh alive.
	now = now.Add(31 * time.Minute)
	fresh, _ := r.Get("fresh")
	fresh.Touch(now)

	ids := r.IdleCallIDs(30 * time.Minute)
	if len(ids) != 1 || ids[0] != "stale" {
		t.Fatalf("idle ids = %v, want [stale]", ids)
	}

	stale.Touch(now)
	if ids := r.IdleCallIDs(30 * time.Minute); len(ids) != 0 {
		t.Errorf("idle ids after touch = %v, want none", ids)
	}
}
