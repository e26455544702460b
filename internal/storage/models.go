// Package storage persists call, contact, and campaign records.
//
// The orchestration engine treats storage as a fire-and-forget bridge:
// write failures are logged, never retried inline, and never block the
// conversation. Concurrent sessions write disjoint call records, so the
// store needs no cross-call coordination.
package storage

import "time"

// CallStatus tracks the persisted lifecycle of a call record.
type CallStatus string

const (
	StatusPending    CallStatus = "pending"
	StatusInitiated  CallStatus = "initiated"
	StatusInProgress CallStatus = "in_progress"
	StatusCompleted  CallStatus = "completed"
	StatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether the record has reached a final status.
func (s CallStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Call is the persistent record of one placed or received call.
type Call struct {
	ID         string     `json:"id"`
	ContactID  string     `json:"contact_id,omitempty"`
	CampaignID string     `json:"campaign_id,omitempty"`
	ToNumber   string     `json:"to_number"`
	FromNumber string     `json:"from_number"`

	// ProviderCallID is the telephony provider's identifier (Twilio SID).
	ProviderCallID string `json:"provider_call_id,omitempty"`

	Status     CallStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	AnsweredAt *time.Time `json:"answered_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`

	DurationSeconds int `json:"duration_seconds,omitempty"`

	// Completion summary, written once when the session terminates.
	Summary        string  `json:"summary,omitempty"`
	Outcome        string  `json:"outcome,omitempty"`
	SentimentScore float64 `json:"sentiment_score,omitempty"`
	EndReason      string  `json:"end_reason,omitempty"`
}

// CallLog is one entry in a call's ordered interaction log.
type CallLog struct {
	ID        string    `json:"id"`
	CallID    string    `json:"call_id"`
	Sequence  int       `json:"sequence"`
	EventType string    `json:"event_type"` // greeting|speech|response|recovery|closing
	Direction string    `json:"direction"`  // inbound|outbound

	Content    string  `json:"content"`
	Confidence float64 `json:"confidence,omitempty"`
	Emotion    string  `json:"emotion,omitempty"`
	Intent     string  `json:"intent,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Contact is a dialable person attached to a campaign.
type Contact struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
}

// Campaign groups calls under a script and conversation style.
type Campaign struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"` // sales|support|appointment
	Script string `json:"script"`
}

// StatusDelta is a partial update applied to a call record.
// Nil pointer fields are left unchanged.
type StatusDelta struct {
	Status         *CallStatus
	ProviderCallID *string
	AnsweredAt     *time.Time
}

// Completion carries the final state written when a call terminates.
type Completion struct {
	EndedAt         time.Time
	DurationSeconds int
	Summary         string
	Outcome         string
	SentimentScore  float64
	EndReason       string
}
