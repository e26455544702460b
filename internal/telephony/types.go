// Package telephony abstracts the carrier side of a call: placing and
// hanging up calls, validating and parsing carrier webhooks, and the
// media stream frame protocol.
package telephony

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// ProviderName identifies a telephony provider.
type ProviderName string

const (
	ProviderTwilio ProviderName = "twilio"
	ProviderMock   ProviderName = "mock"
)

// ErrCallNotFound is returned when the carrier does not know the call.
var ErrCallNotFound = errors.New("telephony: call not found")

// PlaceCallParams describes an outbound call to place.
type PlaceCallParams struct {
	// CallID is our internal identifier, embedded in webhook URLs so
	// carrier callbacks can be routed back to the session.
	CallID string
	To     string
	From   string

	// AnswerURL receives the voice webhook when the call connects.
	AnswerURL string
	// StatusURL receives lifecycle status callbacks.
	StatusURL string

	// TimeoutSeconds bounds how long the carrier lets the call ring.
	// Zero means the provider default.
	TimeoutSeconds int
}

// PlaceCallResult is the carrier's acknowledgement of a placed call.
type PlaceCallResult struct {
	ProviderCallID string
	Status         string
}

// Provider is the carrier integration surface. Implementations must be
// safe for concurrent use.
type Provider interface {
	Name() ProviderName

	// PlaceCall starts an outbound call and returns the carrier's call
	// identifier.
	PlaceCall(ctx context.Context, params PlaceCallParams) (*PlaceCallResult, error)

	// Hangup terminates the call on the carrier side. Hanging up a call
	// the carrier no longer knows is not an error.
	Hangup(ctx context.Context, providerCallID string) error

	// ValidateSignature checks that a webhook request genuinely came
	// from the carrier.
	ValidateSignature(fullURL string, form url.Values, signature string) bool
}

// CallStatus is a normalized carrier call state.
type CallStatus string

const (
	StatusQueued     CallStatus = "queued"
	StatusInitiated  CallStatus = "initiated"
	StatusRinging    CallStatus = "ringing"
	StatusInProgress CallStatus = "in-progress"
	StatusCompleted  CallStatus = "completed"
	StatusBusy       CallStatus = "busy"
	StatusNoAnswer   CallStatus = "no-answer"
	StatusFailed     CallStatus = "failed"
	StatusCanceled   CallStatus = "canceled"
)

// IsTerminal reports whether the carrier will send no further status
// for this call.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// EndReason maps a terminal carrier status to the reason recorded on
// the completed call. Non-terminal statuses return "".
func (s CallStatus) EndReason() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusBusy:
		return "busy"
	case StatusNoAnswer:
		return "no_answer"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	}
	return ""
}

// StatusEvent is one parsed status callback from the carrier.
type StatusEvent struct {
	CallID         string
	ProviderCallID string
	Status         CallStatus
	From           string
	To             string
	DurationSecs   int
	Timestamp      time.Time
}

// ParseStatusEvent normalizes a Twilio-shaped status callback form
// post. The caller supplies our internal call ID, which travels in the
// webhook path rather than the form body.
func ParseStatusEvent(callID string, form url.Values, now time.Time) (*StatusEvent, error) {
	status := CallStatus(form.Get("CallStatus"))
	if status == "" {
		return nil, errors.New("telephony: status callback missing CallStatus")
	}

	ev := &StatusEvent{
		CallID:         callID,
		ProviderCallID: form.Get("CallSid"),
		Status:         status,
		From:           form.Get("From"),
		To:             form.Get("To"),
		Timestamp:      now,
	}
	if d := form.Get("CallDuration"); d != "" {
		if secs, err := strconv.Atoi(d); err == nil {
			ev.DurationSecs = secs
		}
	}
	return ev, nil
}
