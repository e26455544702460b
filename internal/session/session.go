// Package session holds the live state of in-progress calls: the
// per-call session record, the concurrency-safe registry keyed by call
// ID, the per-call lock manager, and the idle sweeper that reclaims
// sessions gone silent.
package session

import (
	"sync"
	"time"

	"github.com/voxflow-ai/voxflow/internal/dialogue"
)

// Phase is the session's coarse-grained position in the call lifecycle,
// distinct from the dialogue provider's conversation state.
type Phase string

const (
	PhaseInitializing       Phase = "initializing"
	PhaseGreeting           Phase = "greeting"
	PhaseListening          Phase = "listening"
	PhaseProcessingSpeech   Phase = "processing_speech"
	PhaseGeneratingResponse Phase = "generating_response"
	PhaseSpeaking           Phase = "speaking"
	PhaseTransferring       Phase = "transferring"
	PhaseEnding             Phase = "ending"
	PhaseCompleted          Phase = "completed"
	PhaseError              Phase = "error"
)

// IsTerminal reports whether no transition leaves this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted
}

// validTransitions is the phase transition table. ERROR and ENDING are
// universal escapes reachable from any non-terminal phase and are
// checked separately in TransitionAllowed.
var validTransitions = map[Phase][]Phase{
	PhaseInitializing:       {PhaseGreeting},
	PhaseGreeting:           {PhaseSpeaking},
	PhaseSpeaking:           {PhaseListening, PhaseTransferring},
	PhaseListening:          {PhaseProcessingSpeech},
	PhaseProcessingSpeech:   {PhaseGeneratingResponse, PhaseListening},
	PhaseGeneratingResponse: {PhaseSpeaking},
	PhaseTransferring:       {PhaseCompleted},
	PhaseEnding:             {PhaseCompleted},
	PhaseError:              {PhaseListening, PhaseEnding},
}

// TransitionAllowed reports whether the phase table permits from → to.
// Any non-terminal phase may escape to ERROR or ENDING.
func TransitionAllowed(from, to Phase) bool {
	if from.IsTerminal() {
		return false
	}
	if to == PhaseError || to == PhaseEnding {
		return true
	}
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Direction marks which side of the call produced a turn.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Turn is one entry in the session's append-only conversation log.
type Turn struct {
	Direction Direction `json:"direction"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context carries the contact and campaign details seeded at session
// creation. Read-only after creation.
type Context struct {
	ContactID    string
	CampaignID   string
	ContactName  string
	CampaignType string
	Script       string
	PhoneNumber  string

	// ProviderCallID is the carrier's identifier, needed to hang up the
	// carrier leg at termination.
	ProviderCallID string
}

// Session is the live state of one in-progress call.
//
// Thread Safety: the internal mutex guards individual field access so
// that observability reads can run concurrently with the owning event
// handler. The read-modify-write spanning "check phase → run pipeline →
// update phase" is serialized separately by the per-call LockManager;
// the field mutex is never held across a provider call.
type Session struct {
	callID  string
	context Context

	mu                sync.Mutex
	phase             Phase
	conversationState dialogue.State
	startedAt         time.Time
	lastActivity      time.Time
	audioBuffer       []byte
	isSpeaking        bool
	isListening       bool
	turns             []Turn
	errorCount        int
}

// newSession creates a session in the INITIALIZING phase. Only the
// Registry constructs sessions, keeping the one-session-per-call-ID
// invariant in a single place.
func newSession(callID string, sessCtx Context, now time.Time) *Session {
	return &Session{
		callID:            callID,
		context:           sessCtx,
		phase:             PhaseInitializing,
		conversationState: dialogue.StateGreeting,
		startedAt:         now,
		lastActivity:      now,
	}
}

// CallID returns the session's stable external identifier.
func (s *Session) CallID() string { return s.callID }

// Context returns the seed context captured at creation.
func (s *Session) Context() Context { return s.context }

// Phase returns the current lifecycle phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetPhase moves the session to the given phase, enforcing the
// transition table. Returns false and leaves the phase unchanged when
// the transition is not allowed.
func (s *Session) SetPhase(to Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !TransitionAllowed(s.phase, to) {
		return false
	}
	s.phase = to

	switch to {
	case PhaseSpeaking:
		s.isSpeaking = true
		s.isListening = false
	case PhaseListening:
		s.isSpeaking = false
		s.isListening = true
	case PhaseEnding, PhaseTransferring, PhaseCompleted:
		s.isSpeaking = false
		s.isListening = false
	}
	return true
}

// ConversationState returns the dialogue-level state.
func (s *Session) ConversationState() dialogue.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationState
}

// SetConversationState records the dialogue provider's reported state.
func (s *Session) SetConversationState(state dialogue.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationState = state
}

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// LastActivity returns the time of the most recent inbound event.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch updates the activity timestamp; called on every inbound event.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
}

// BufferAudio appends a partial audio chunk.
func (s *Session) BufferAudio(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBuffer = append(s.audioBuffer, chunk...)
}

// DrainAudio returns the buffered audio combined with the final chunk
// and clears the buffer.
func (s *Session) DrainAudio(final []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	combined := append(s.audioBuffer, final...)
	s.audioBuffer = nil
	return combined
}

// AppendTurn adds one entry to the append-only conversation log.
func (s *Session) AppendTurn(direction Direction, content string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Direction: direction, Content: content, Timestamp: now})
}

// Turns returns a copy of the conversation log in append order.
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TurnCount returns the conversation log length.
func (s *Session) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// RecordError increments and returns the session error counter.
func (s *Session) RecordError() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	return s.errorCount
}

// ErrorCount returns the number of recoverable failures so far.
func (s *Session) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCount
}

// Status is a point-in-time snapshot for observability surfaces.
type Status struct {
	CallID            string         `json:"call_id"`
	Phase             Phase          `json:"phase"`
	ConversationState dialogue.State `json:"conversation_state"`
	IsSpeaking        bool           `json:"is_speaking"`
	IsListening       bool           `json:"is_listening"`
	ErrorCount        int            `json:"error_count"`
	StartedAt         time.Time      `json:"started_at"`
	LastActivity      time.Time      `json:"last_activity"`
	ConversationTurns int            `json:"conversation_turns"`
}

// StatusSnapshot returns a consistent snapshot of the session.
func (s *Session) StatusSnapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		CallID:            s.callID,
		Phase:             s.phase,
		ConversationState: s.conversationState,
		IsSpeaking:        s.isSpeaking,
		IsListening:       s.isListening,
		ErrorCount:        s.errorCount,
		StartedAt:         s.startedAt,
		LastActivity:      s.lastActivity,
		ConversationTurns: len(s.turns),
	}
}
