package session

import (
	"testing"
	"time"

	"github.com/voxflow-ai/voxflow/internal/dialogue"
)

func TestTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Phase }{
		{PhaseInitializing, PhaseGreeting},
		{PhaseGreeting, PhaseSpeaking},
		{PhaseSpeaking, PhaseListening},
		{PhaseSpeaking, PhaseTransferring},
		{PhaseListening, PhaseProcessingSpeech},
		{PhaseProcessingSpeech, PhaseGeneratingResponse},
		{PhaseProcessingSpeech, PhaseListening}, // no speech detected
		{PhaseGeneratingResponse, PhaseSpeaking},
		{PhaseEnding, PhaseCompleted},
		{PhaseTransferring, PhaseCompleted},
		{PhaseError, PhaseListening},
		{PhaseError, PhaseEnding},
		// Universal escapes.
		{PhaseListening, PhaseError},
		{PhaseSpeaking, PhaseEnding},
		{PhaseGreeting, PhaseError},
	}
	for _, tt := range allowed {
		if !TransitionAllowed(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to Phase }{
		{PhaseListening, PhaseCompleted}, // must pass through ENDING/TRANSFERRING
		{PhaseListening, PhaseSpeaking},
		{PhaseInitializing, PhaseListening},
		{PhaseCompleted, PhaseListening},
		{PhaseCompleted, PhaseEnding},
		{PhaseCompleted, PhaseError},
		{PhaseGreeting, PhaseListening},
	}
	for _, tt := range denied {
		if TransitionAllowed(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be denied", tt.from, tt.to)
		}
	}
}

func TestSetPhaseEnforcesTable(t *testing.T) {
	s := newSession("call-1", Context{}, time.Now())

	if s.Phase() != PhaseInitializing {
		t.Fatalf("new session phase = %s, want initializing", s.Phase())
	}
	if s.SetPhase(PhaseListening) {
		t.Error("initializing -> listening should be rejected")
	}
	if !s.SetPhase(PhaseGreeting) {
		t.Error("initializing -> greeting should be accepted")
	}
	if !s.SetPhase(PhaseSpeaking) {
		t.Error("greeting -> speaking should be accepted")
	}
	if !s.SetPhase(PhaseListening) {
		t.Error("speaking -> listening should be accepted")
	}
}

func TestSetPhaseTogglesDuplexFlags(t *testing.T) {
	s := newSession("call-1", Context{}, time.Now())
	s.SetPhase(PhaseGreeting)
	s.SetPhase(PhaseSpeaking)

	st := s.StatusSnapshot()
	if !st.IsSpeaking || st.IsListening {
		t.Errorf("speaking phase: is_speaking=%v is_listening=%v", st.IsSpeaking, st.IsListening)
	}

	s.SetPhase(PhaseListening)
	st = s.StatusSnapshot()
	if st.IsSpeaking || !st.IsListening {
		t.Errorf("listening phase: is_speaking=%v is_listening=%v", st.IsSpeaking, st.IsListening)
	}

	s.SetPhase(PhaseEnding)
	st = s.StatusSnapshot()
	if st.IsSpeaking || st.IsListening {
		t.Errorf("ending phase: both duplex flags should be false")
	}
}

func TestConversationLogAppendOnly(t *testing.T) {
	s := newSession("call-1", Context{}, time.Now())

	s.AppendTurn(DirectionOutbound, "hello", time.Now())
	s.AppendTurn(DirectionInbound, "hi there", time.Now())
	s.AppendTurn(DirectionOutbound, "how can I help?", time.Now())

	turns := s.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "hello" || turns[2].Content != "how can I help?" {
		t.Error("turns out of append order")
	}

	// Mutating the returned copy must not touch the log.
	turns[0].Content = "mutated"
	if s.Turns()[0].Content != "hello" {
		t.Error("Turns() must return a copy")
	}
}

func TestAudioBuffer(t *testing.T) {
	s := newSession("call-1", Context{}, time.Now())

	s.BufferAudio([]byte("chunk1"))
	s.BufferAudio([]byte("chunk2"))

	combined := s.DrainAudio([]byte("final"))
	if string(combined) != "chunk1chunk2final" {
		t.Errorf("drained audio = %q", combined)
	}

	// Buffer is cleared after a drain.
	if got := s.DrainAudio(nil); len(got) != 0 {
		t.Errorf("expected empty buffer after drain, got %q", got)
	}
}

func TestRecordError(t *testing.T) {
	s := newSession("call-1", Context{}, time.Now())

	if n := s.RecordError(); n != 1 {
		t.Errorf("first error count = %d, want 1", n)
	}
	if n := s.RecordError(); n != 2 {
		t.Errorf("second error count = %d, want 2", n)
	}
	if s.ErrorCount() != 2 {
		t.Errorf("ErrorCount() = %d, want 2", s.ErrorCount())
	}
}

func TestStatusSnapshot(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := newSession("call-1", Context{PhoneNumber: "+15550100"}, started)
	s.SetConversationState(dialogue.StateClarifying)
	s.AppendTurn(DirectionOutbound, "hello", started)

	st := s.StatusSnapshot()
	if st.CallID != "call-1" {
		t.Errorf("call id = %q", st.CallID)
	}
	if st.ConversationState != dialogue.StateClarifying {
		t.Errorf("conversation state = %s", st.ConversationState)
	}
	if st.ConversationTurns != 1 {
		t.Errorf("turns = %d, want 1", st.ConversationTurns)
	}
	if !st.StartedAt.Equal(started) {
		t.Errorf("started at = %v", st.StartedAt)
	}
}
