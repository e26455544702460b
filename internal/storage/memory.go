package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and single-process
// development runs. Data does not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	calls     map[string]*Call
	logs      map[string][]*CallLog
	contacts  map[string]*Contact
	campaigns map[string]*Campaign
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:     make(map[string]*Call),
		logs:      make(map[string][]*CallLog),
		contacts:  make(map[string]*Contact),
		campaigns: make(map[string]*Campaign),
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// CreateCall inserts a new call record.
func (s *MemoryStore) CreateCall(ctx context.Context, call *Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if _, ok := s.calls[call.ID]; ok {
		return ErrAlreadyExists
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	if call.Status == "" {
		call.Status = StatusPending
	}

	cp := *call
	s.calls[call.ID] = &cp
	return nil
}

// GetCall fetches a call record by ID.
func (s *MemoryStore) GetCall(ctx context.Context, id string) (*Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.calls[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *call
	return &cp, nil
}

// UpdateCallStatus applies a partial status update.
func (s *MemoryStore) UpdateCallStatus(ctx context.Context, id string, delta StatusDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return ErrNotFound
	}
	if delta.Status != nil {
		call.Status = *delta.Status
	}
	if delta.ProviderCallID != nil {
		call.ProviderCallID = *delta.ProviderCallID
	}
	if delta.AnsweredAt != nil {
		t := *delta.AnsweredAt
		call.AnsweredAt = &t
	}
	return nil
}

// CompleteCall writes the final call summary.
func (s *MemoryStore) CompleteCall(ctx context.Context, id string, completion Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.calls[id]
	if !ok {
		return ErrNotFound
	}
	endedAt := completion.EndedAt
	call.Status = StatusCompleted
	call.EndedAt = &endedAt
	call.DurationSeconds = completion.DurationSeconds
	call.Summary = completion.Summary
	call.Outcome = completion.Outcome
	call.SentimentScore = completion.SentimentScore
	call.EndReason = completion.EndReason
	return nil
}

// AppendCallLog appends one interaction log entry.
func (s *MemoryStore) AppendCallLog(ctx context.Context, entry *CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	cp := *entry
	s.logs[entry.CallID] = append(s.logs[entry.CallID], &cp)
	return nil
}

// ListCallLogs returns a call's log entries in append order.
func (s *MemoryStore) ListCallLogs(ctx context.Context, callID string) ([]*CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[callID]
	out := make([]*CallLog, len(entries))
	for i, e := range entries {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// GetContact fetches a contact by ID.
func (s *MemoryStore) GetContact(ctx context.Context, id string) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// GetCampaign fetches a campaign by ID.
func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// CreateContact inserts a new contact.
func (s *MemoryStore) CreateContact(ctx context.Context, contact *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	cp := *contact
	s.contacts[contact.ID] = &cp
	return nil
}

// CreateCampaign inserts a new campaign.
func (s *MemoryStore) CreateCampaign(ctx context.Context, campaign *Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if campaign.ID == "" {
		campaign.ID = uuid.New().String()
	}
	if campaign.Type == "" {
		campaign.Type = "sales"
	}
	cp := *campaign
	s.campaigns[campaign.ID] = &cp
	return nil
}
