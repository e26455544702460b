// Package dialogue generates the conversational side of a call:
// intent classification, contextual replies, greetings, closings, and
// end-of-call summaries.
//
// The dialogue provider owns the conversation sub-state machine; the
// orchestration engine only passes a bounded history window in and
// receives the next state out, so per-call memory growth stays on the
// provider's side of the contract.
package dialogue

import (
	"context"
	"errors"
	"time"
)

// ErrDialogue marks a dialogue provider failure. Callers match it with
// errors.Is to drive the session error-recovery policy.
var ErrDialogue = errors.New("dialogue: provider failure")

// State is the dialogue-level conversation state, tracked independently
// from the session phase.
type State string

const (
	StateGreeting   State = "greeting"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateResponding State = "responding"
	StateClarifying State = "clarifying"
	StateClosing    State = "closing"
	StateEnded      State = "ended"
	StateError      State = "error"
)

// Intent classifies what the caller is trying to do.
type Intent string

const (
	IntentGreeting        Intent = "greeting"
	IntentQuestion        Intent = "question"
	IntentRequest         Intent = "request"
	IntentComplaint       Intent = "complaint"
	IntentCompliment      Intent = "compliment"
	IntentGoodbye         Intent = "goodbye"
	IntentUnclear         Intent = "unclear"
	IntentInterruption    Intent = "interruption"
	IntentHoldRequest     Intent = "hold_request"
	IntentTransferRequest Intent = "transfer_request"
)

// Sentiment is the coarse affect of a caller utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Message is one utterance in the conversation history.
type Message struct {
	Role      string    `json:"role"` // "assistant" or "user"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context carries the campaign and contact details that condition
// reply generation. Read-only for the provider.
type Context struct {
	ContactName  string
	CampaignType string // sales|support|appointment
	Script       string
}

// Analysis is the outcome of classifying one caller utterance.
type Analysis struct {
	Intent     Intent    `json:"intent"`
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
}

// Reply is a generated assistant utterance.
type Reply struct {
	Text string
}

// Summary is the end-of-call record written back to persistence.
type Summary struct {
	Outcome   string    `json:"outcome"` // successful|unsuccessful|partial
	Sentiment Sentiment `json:"customer_sentiment"`
	Notes     string    `json:"notes"`
}

// Provider is the dialogue-generation collaborator contract.
type Provider interface {
	// ClassifyIntent analyzes a caller utterance against recent history.
	ClassifyIntent(ctx context.Context, text string, history []Message) (*Analysis, error)

	// GenerateReply produces the next assistant utterance conditioned on
	// the bounded history window, the detected intent, and call context.
	GenerateReply(ctx context.Context, history []Message, analysis *Analysis, callCtx Context) (*Reply, error)

	// Greeting produces the opening line for a just-answered call.
	Greeting(ctx context.Context, callCtx Context) (*Reply, error)

	// Closing produces a short sign-off line for a terminating call.
	Closing(ctx context.Context, callCtx Context, reason string) (*Reply, error)

	// Summarize condenses the conversation for the call record.
	Summarize(ctx context.Context, history []Message) (*Summary, error)
}
