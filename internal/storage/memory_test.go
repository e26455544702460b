package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCallLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	call := &Call{ID: "call-1", ToNumber: "+15550199", Status: StatusPending}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateCall(ctx, call); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate create: %v, want ErrAlreadyExists", err)
	}

	status := StatusInProgress
	answered := time.Now().UTC()
	providerID := "CA123"
	err := s.UpdateCallStatus(ctx, "call-1", StatusDelta{
		Status:         &status,
		ProviderCallID: &providerID,
		AnsweredAt:     &answered,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetCall(ctx, "call-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusInProgress || got.ProviderCallID != "CA123" || got.AnsweredAt == nil {
		t.Errorf("call = %+v", got)
	}

	ended := answered.Add(90 * time.Second)
	err = s.CompleteCall(ctx, "call-1", Completion{
		EndedAt:         ended,
		DurationSeconds: 90,
		Summary:         "handled",
		Outcome:         "successful",
		SentimentScore:  0.8,
		EndReason:       "completed",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ = s.GetCall(ctx, "call-1")
	if got.Status != StatusCompleted || got.EndReason != "completed" || got.DurationSeconds != 90 {
		t.Errorf("completed call = %+v", got)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetCall(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get call: %v", err)
	}
	if err := s.UpdateCallStatus(ctx, "ghost", StatusDelta{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update: %v", err)
	}
	if err := s.CompleteCall(ctx, "ghost", Completion{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("complete: %v", err)
	}
	if _, err := s.GetContact(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get contact: %v", err)
	}
	if _, err := s.GetCampaign(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get campaign: %v", err)
	}
}

func TestMemoryStoreCopiesOnReadAndWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	call := &Call{ID: "call-1", ToNumber: "+15550199"}
	if err := s.CreateCall(ctx, call); err != nil {
		t.Fatalf("create: %v", err)
	}
	call.ToNumber = "mutated"

	got, _ := s.GetCall(ctx, "call-1")
	if got.ToNumber != "+15550199" {
		t.Error("store must copy on write")
	}
	got.ToNumber = "mutated-again"

	again, _ := s.GetCall(ctx, "call-1")
	if again.ToNumber != "+15550199" {
		t.Error("store must copy on read")
	}
}

func TestMemoryStoreCallLogsOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		err := s.AppendCallLog(ctx, &CallLog{CallID: "call-1", Sequence: i, EventType: "speech", Content: "x"})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	logs, err := s.ListCallLogs(ctx, "call-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("logs = %d", len(logs))
	}
	for i, l := range logs {
		if l.Sequence != i+1 {
			t.Errorf("log %d sequence = %d", i, l.Sequence)
		}
		if l.ID == "" {
			t.Error("log ID not generated")
		}
	}
}

func TestMemoryStoreDirectory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.CreateContact(ctx, &Contact{ID: "c1", FirstName: "Sam", PhoneNumber: "+15550100"}); err != nil {
		t.Fatalf("create contact: %v", err)
	}
	if err := s.CreateCampaign(ctx, &Campaign{ID: "p1", Name: "Support"}); err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	campaign, err := s.GetCampaign(ctx, "p1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if campaign.Type != "sales" {
		t.Errorf("campaign type default = %q, want sales", campaign.Type)
	}
}
