// Package orchestrator is the event-driven engine behind every call:
// it owns the session lifecycle, runs the turn pipeline under the
// per-call lock, applies the error-recovery policy, and funnels all
// terminations through a single routine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/voxflow-ai/voxflow/internal/dialogue"
	"github.com/voxflow-ai/voxflow/internal/observability"
	"github.com/voxflow-ai/voxflow/internal/session"
	"github.com/voxflow-ai/voxflow/internal/storage"
	"github.com/voxflow-ai/voxflow/internal/telephony"
)

// DefaultMaxErrors is how many pipeline failures a session survives
// before it is force-terminated.
const DefaultMaxErrors = 3

// DefaultHistoryWindow bounds how many recent turns condition reply
// generation.
const DefaultHistoryWindow = 10

// Termination reasons funneled through the single termination routine.
const (
	ReasonCompleted     = "completed"
	ReasonTransfer      = "transfer"
	ReasonErrorLimit    = "error_limit_exceeded"
	ReasonCallerHangup  = "hangup_user"
	ReasonCarrierFailed = "failed"
)

// Output is what the transport layer plays back to the caller after an
// event is processed. A zero Output means nothing to play.
type Output struct {
	CallID  string
	Text    string
	Emotion string
	Audio   []byte

	// ShouldHangup tells the transport to end the carrier leg after
	// playing the output.
	ShouldHangup bool

	// Dropped marks an event discarded because the session was not in a
	// phase that accepts it.
	Dropped bool
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Registry *session.Registry
	Locks    *session.LockManager
	Pipeline *Pipeline
	Store    storage.Store
	Carrier  telephony.Provider
	Logger   *observability.Logger
	Metrics  *observability.Metrics

	// PublicURL is the externally reachable base URL webhooks are built
	// from when placing outbound calls.
	PublicURL string

	// MaxErrors caps recoverable failures per session. Default: 3
	MaxErrors int

	// HistoryWindow is how many recent turns the dialogue provider sees.
	// Default: 10
	HistoryWindow int
}

// Orchestrator coordinates sessions, the turn pipeline, persistence,
// and the carrier. All per-call event handling runs under the call's
// lock; handlers for different calls run concurrently.
type Orchestrator struct {
	registry *session.Registry
	locks    *session.LockManager
	pipeline *Pipeline
	store    storage.Store
	carrier  telephony.Provider
	logger   *observability.Logger
	metrics  *observability.Metrics

	publicURL     string
	maxErrors     int
	historyWindow int

	nowFunc func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = DefaultMaxErrors
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	return &Orchestrator{
		registry:      cfg.Registry,
		locks:         cfg.Locks,
		pipeline:      cfg.Pipeline,
		store:         cfg.Store,
		carrier:       cfg.Carrier,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		publicURL:     cfg.PublicURL,
		maxErrors:     cfg.MaxErrors,
		historyWindow: cfg.HistoryWindow,
		nowFunc:       time.Now,
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (o *Orchestrator) SetNowFunc(fn func() time.Time) { o.nowFunc = fn }

// StartOutboundCall creates a call record for the contact and places
// the call through the carrier. The session itself is created lazily
// when the answered webhook arrives.
func (o *Orchestrator) StartOutboundCall(ctx context.Context, contactID, campaignID string) (*storage.Call, error) {
	contact, err := o.store.GetContact(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: unknown contact %q: %w", contactID, err)
	}
	if campaignID != "" {
		if _, err := o.store.GetCampaign(ctx, campaignID); err != nil {
			return nil, fmt.Errorf("orchestrator: unknown campaign %q: %w", campaignID, err)
		}
	}

	call := &storage.Call{
		ID:         uuid.NewString(),
		ContactID:  contactID,
		CampaignID: campaignID,
		ToNumber:   contact.PhoneNumber,
		Status:     storage.StatusPending,
		CreatedAt:  o.nowFunc(),
	}
	if err := o.store.CreateCall(ctx, call); err != nil {
		return nil, fmt.Errorf("orchestrator: failed to create call record: %w", err)
	}

	ctx = observability.WithCallID(ctx, call.ID)
	result, err := o.carrier.PlaceCall(ctx, telephony.PlaceCallParams{
		CallID:    call.ID,
		To:        contact.PhoneNumber,
		AnswerURL: fmt.Sprintf("%s/webhooks/twilio/voice/%s", o.publicURL, call.ID),
		StatusURL: fmt.Sprintf("%s/webhooks/twilio/status/%s", o.publicURL, call.ID),
	})
	if err != nil {
		failed := storage.StatusFailed
		o.persistStatus(ctx, call.ID, storage.StatusDelta{Status: &failed})
		return nil, fmt.Errorf("orchestrator: failed to place call: %w", err)
	}

	initiated := storage.StatusInitiated
	o.persistStatus(ctx, call.ID, storage.StatusDelta{
		Status:         &initiated,
		ProviderCallID: &result.ProviderCallID,
	})
	call.Status = initiated
	call.ProviderCallID = result.ProviderCallID

	o.logger.Info(ctx, "outbound call placed",
		"provider_call_id", result.ProviderCallID,
		"to", contact.PhoneNumber,
	)
	return call, nil
}

// OnCallAnswered handles the carrier's answered event: it creates the
// session, generates the greeting, and moves the call to SPEAKING.
// A repeated answered event for a live session is dropped.
func (o *Orchestrator) OnCallAnswered(ctx context.Context, callID string) (*Output, error) {
	ctx = observability.WithCallID(ctx, callID)

	release, err := o.locks.Acquire(ctx, callID)
	if err != nil {
		return nil, err
	}
	defer release()

	s, created := o.ensureSession(ctx, callID)
	if !created && s.Phase() != session.PhaseInitializing {
		o.logger.Warn(ctx, "duplicate answered event dropped", "phase", string(s.Phase()))
		o.metrics.TurnsTotal.WithLabelValues("dropped").Inc()
		return &Output{CallID: callID, Dropped: true}, nil
	}
	s.Touch(o.nowFunc())

	if !s.SetPhase(session.PhaseGreeting) {
		return &Output{CallID: callID, Dropped: true}, nil
	}

	sessCtx := s.Context()
	dlgCtx := dialogue.Context{
		ContactName:  sessCtx.ContactName,
		CampaignType: sessCtx.CampaignType,
		Script:       sessCtx.Script,
	}

	result, err := o.pipeline.Greet(ctx, dlgCtx)
	if err != nil {
		// Greeting synthesis failed; the text fallback is still speakable
		// through carrier TTS, so the call proceeds.
		s.RecordError()
		o.logger.Warn(ctx, "greeting synthesis failed, sending text only", "error", err)
		result = &TurnResult{ReplyText: dialogue.FallbackGreeting, Emotion: "friendly"}
	}

	s.SetPhase(session.PhaseSpeaking)
	s.AppendTurn(session.DirectionOutbound, result.ReplyText, o.nowFunc())

	answered := o.nowFunc()
	inProgress := storage.StatusInProgress
	o.persistStatus(ctx, callID, storage.StatusDelta{Status: &inProgress, AnsweredAt: &answered})
	o.persistLog(ctx, &storage.CallLog{
		CallID:    callID,
		Sequence:  s.TurnCount(),
		EventType: "greeting",
		Direction: string(session.DirectionOutbound),
		Content:   result.ReplyText,
		Emotion:   result.Emotion,
	})

	o.logger.Info(ctx, "call answered, greeting sent")
	return &Output{CallID: callID, Text: result.ReplyText, Emotion: result.Emotion, Audio: result.Audio}, nil
}

// OnSpeechReceived handles a caller audio segment. Partial segments
// are buffered; the final segment drains the buffer and runs the turn
// pipeline. Audio arriving while the session is not LISTENING is
// dropped whole.
func (o *Orchestrator) OnSpeechReceived(ctx context.Context, callID string, audio []byte, isFinal bool) (*Output, error) {
	ctx = observability.WithCallID(ctx, callID)

	release, err := o.locks.Acquire(ctx, callID)
	if err != nil {
		return nil, err
	}
	defer release()

	s, err := o.registry.Get(callID)
	if err != nil {
		return nil, err
	}
	s.Touch(o.nowFunc())

	if !isFinal {
		s.BufferAudio(audio)
		return &Output{CallID: callID}, nil
	}

	if s.Phase() != session.PhaseListening {
		o.logger.Debug(ctx, "speech dropped, session not listening", "phase", string(s.Phase()))
		o.metrics.TurnsTotal.WithLabelValues("dropped").Inc()
		// The buffer is cleared so stale audio cannot leak into the next turn.
		s.DrainAudio(nil)
		return &Output{CallID: callID, Dropped: true}, nil
	}

	combined := s.DrainAudio(audio)
	s.SetPhase(session.PhaseProcessingSpeech)
	s.SetConversationState(dialogue.StateProcessing)

	sessCtx := s.Context()
	dlgCtx := dialogue.Context{
		ContactName:  sessCtx.ContactName,
		CampaignType: sessCtx.CampaignType,
		Script:       sessCtx.Script,
	}

	result, err := o.pipeline.RunTurn(ctx, combined, o.history(s), dlgCtx)
	if err != nil {
		return o.handleTurnFailure(ctx, s, err)
	}

	if result.NoSpeech {
		s.SetPhase(session.PhaseListening)
		s.SetConversationState(dialogue.StateListening)
		o.metrics.TurnsTotal.WithLabelValues("no_speech").Inc()
		return &Output{CallID: callID}, nil
	}

	s.AppendTurn(session.DirectionInbound, result.Transcript, o.nowFunc())
	o.persistLog(ctx, &storage.CallLog{
		CallID:     callID,
		Sequence:   s.TurnCount(),
		EventType:  "speech",
		Direction:  string(session.DirectionInbound),
		Content:    result.Transcript,
		Confidence: result.Confidence,
		Intent:     string(result.Analysis.Intent),
	})

	s.SetPhase(session.PhaseGeneratingResponse)
	s.SetConversationState(dialogue.StateResponding)

	s.SetPhase(session.PhaseSpeaking)
	s.AppendTurn(session.DirectionOutbound, result.ReplyText, o.nowFunc())
	s.SetConversationState(dialogue.NextState(result.Analysis.Intent))
	o.persistLog(ctx, &storage.CallLog{
		CallID:    callID,
		Sequence:  s.TurnCount(),
		EventType: "response",
		Direction: string(session.DirectionOutbound),
		Content:   result.ReplyText,
		Emotion:   result.Emotion,
	})

	o.metrics.TurnsTotal.WithLabelValues("completed").Inc()

	out := &Output{
		CallID:  callID,
		Text:    result.ReplyText,
		Emotion: result.Emotion,
		Audio:   result.Audio,
	}

	switch {
	case dialogue.ShouldTransfer(result.Analysis.Intent):
		o.terminateLocked(ctx, s, ReasonTransfer)
		out.ShouldHangup = true
	case dialogue.ShouldEndCall(result.Analysis.Intent):
		o.terminateLocked(ctx, s, ReasonCompleted)
		out.ShouldHangup = true
	}
	return out, nil
}

// handleTurnFailure applies the error-recovery policy: below the error
// limit the caller hears the recovery prompt and the session returns
// to LISTENING; at the limit the call is terminated with a farewell.
func (o *Orchestrator) handleTurnFailure(ctx context.Context, s *session.Session, cause error) (*Output, error) {
	o.metrics.TurnsTotal.WithLabelValues("error").Inc()
	count := s.RecordError()
	s.SetPhase(session.PhaseError)
	s.SetConversationState(dialogue.StateError)

	o.logger.Error(ctx, "turn pipeline failed",
		"error", cause,
		"error_count", count,
		"max_errors", o.maxErrors,
	)

	if count >= o.maxErrors {
		sessCtx := s.Context()
		farewell := o.pipeline.Farewell(ctx, dialogue.Context{
			ContactName:  sessCtx.ContactName,
			CampaignType: sessCtx.CampaignType,
			Script:       sessCtx.Script,
		}, ReasonErrorLimit)

		s.AppendTurn(session.DirectionOutbound, farewell.ReplyText, o.nowFunc())
		o.terminateLocked(ctx, s, ReasonErrorLimit)
		return &Output{
			CallID:       s.CallID(),
			Text:         farewell.ReplyText,
			Emotion:      farewell.Emotion,
			Audio:        farewell.Audio,
			ShouldHangup: true,
		}, nil
	}

	recovery := o.pipeline.Recovery(ctx)
	s.AppendTurn(session.DirectionOutbound, recovery.ReplyText, o.nowFunc())
	o.persistLog(ctx, &storage.CallLog{
		CallID:    s.CallID(),
		Sequence:  s.TurnCount(),
		EventType: "recovery",
		Direction: string(session.DirectionOutbound),
		Content:   recovery.ReplyText,
		Emotion:   recovery.Emotion,
	})

	s.SetPhase(session.PhaseListening)
	s.SetConversationState(dialogue.StateListening)
	return &Output{
		CallID:  s.CallID(),
		Text:    recovery.ReplyText,
		Emotion: recovery.Emotion,
		Audio:   recovery.Audio,
	}, nil
}

// OnPlaybackFinished handles the carrier's signal that the session's
// outbound audio finished playing; the session returns to LISTENING.
func (o *Orchestrator) OnPlaybackFinished(ctx context.Context, callID string) error {
	ctx = observability.WithCallID(ctx, callID)

	release, err := o.locks.Acquire(ctx, callID)
	if err != nil {
		return err
	}
	defer release()

	s, err := o.registry.Get(callID)
	if err != nil {
		return err
	}
	s.Touch(o.nowFunc())

	if s.Phase() == session.PhaseSpeaking {
		s.SetPhase(session.PhaseListening)
		s.SetConversationState(dialogue.StateListening)
	}
	return nil
}

// OnCallEnded handles an external hangup (caller or carrier). Unknown
// call IDs return session.ErrSessionNotFound; the termination itself
// is idempotent.
func (o *Orchestrator) OnCallEnded(ctx context.Context, callID, reason string) error {
	ctx = observability.WithCallID(ctx, callID)

	release, err := o.locks.Acquire(ctx, callID)
	if err != nil {
		return err
	}
	defer release()

	s, err := o.registry.Get(callID)
	if err != nil {
		return err
	}
	o.terminateLocked(ctx, s, reason)
	return nil
}

// HandleStatusEvent applies a carrier status callback. Non-terminal
// statuses update the call record; terminal statuses terminate the
// session, or close out the record directly when the call never
// produced a session (busy, no answer, failed before connect).
func (o *Orchestrator) HandleStatusEvent(ctx context.Context, ev *telephony.StatusEvent) error {
	ctx = observability.WithCallID(ctx, ev.CallID)

	if !ev.Status.IsTerminal() {
		if ev.Status == telephony.StatusInProgress {
			return nil // the answered webhook owns this transition
		}
		// Pre-answer progress (queued, ringing). Carrier callbacks can
		// arrive out of order, so a call that already answered or ended
		// must not be downgraded back to initiated.
		call, err := o.store.GetCall(ctx, ev.CallID)
		if err != nil || (call.Status != storage.StatusPending && call.Status != storage.StatusInitiated) {
			return nil
		}
		status := storage.StatusInitiated
		o.persistStatus(ctx, ev.CallID, storage.StatusDelta{Status: &status})
		return nil
	}

	reason := ev.Status.EndReason()
	if ev.Status == telephony.StatusCompleted {
		reason = ReasonCallerHangup
	}

	err := o.OnCallEnded(ctx, ev.CallID, reason)
	if errors.Is(err, session.ErrSessionNotFound) {
		// No live session. When the termination routine already ran, this
		// is the carrier's follow-up callback for a hangup we initiated;
		// the persisted summary must survive it.
		if call, err := o.store.GetCall(ctx, ev.CallID); err == nil && call.Status.IsTerminal() {
			return nil
		}
		// The call never produced a session (busy, no answer, failed
		// before connect); close out the record so it does not dangle in
		// a live status.
		completion := storage.Completion{
			EndedAt:         ev.Timestamp,
			DurationSeconds: ev.DurationSecs,
			EndReason:       ev.Status.EndReason(),
		}
		if err := o.store.CompleteCall(ctx, ev.CallID, completion); err != nil && !errors.Is(err, storage.ErrNotFound) {
			o.metrics.ProviderErrors.WithLabelValues(StagePersist).Inc()
			o.logger.Warn(ctx, "failed to close out call record", "error", err)
		}
		return nil
	}
	return err
}

// TerminateIdle force-terminates an idle session on behalf of the
// sweeper. Returns false without blocking when the call's lock is
// held.
func (o *Orchestrator) TerminateIdle(ctx context.Context, callID, reason string) bool {
	release, ok := o.locks.TryAcquire(callID)
	if !ok {
		return false
	}
	defer release()

	s, err := o.registry.Get(callID)
	if err != nil {
		// Terminated between the idle scan and now; nothing left to do.
		return true
	}
	o.terminateLocked(ctx, s, reason)
	return true
}

// terminateLocked is the single termination routine. Callers must hold
// the call's lock. It summarizes the conversation, completes the call
// record, hangs up the carrier leg, and removes the session; each step
// is best-effort so a provider failure cannot leave a session behind.
func (o *Orchestrator) terminateLocked(ctx context.Context, s *session.Session, reason string) {
	if s.Phase().IsTerminal() {
		return
	}

	if reason == ReasonTransfer {
		s.SetPhase(session.PhaseTransferring)
	} else {
		s.SetPhase(session.PhaseEnding)
	}
	s.SetConversationState(dialogue.StateEnded)

	now := o.nowFunc()
	duration := now.Sub(s.StartedAt())

	summary := o.pipeline.Summarize(ctx, o.history(s))
	completion := storage.Completion{
		EndedAt:         now,
		DurationSeconds: int(duration.Seconds()),
		Summary:         summary.Notes,
		Outcome:         summary.Outcome,
		SentimentScore:  dialogue.SentimentScore(summary.Sentiment),
		EndReason:       reason,
	}
	if err := o.store.CompleteCall(ctx, s.CallID(), completion); err != nil {
		o.metrics.ProviderErrors.WithLabelValues(StagePersist).Inc()
		o.logger.Error(ctx, "failed to persist call completion", "error", err)
	}

	if providerCallID := s.Context().ProviderCallID; providerCallID != "" {
		if err := o.carrier.Hangup(ctx, providerCallID); err != nil {
			o.logger.Warn(ctx, "carrier hangup failed", "error", err)
		}
	}

	s.SetPhase(session.PhaseCompleted)
	o.registry.Remove(s.CallID())
	o.locks.Forget(s.CallID())

	o.metrics.ActiveSessions.Dec()
	o.metrics.CallsEnded.WithLabelValues(reason).Inc()
	o.metrics.CallDuration.Observe(duration.Seconds())

	o.logger.Info(ctx, "call terminated",
		"reason", reason,
		"duration", duration.String(),
		"turns", s.TurnCount(),
		"outcome", summary.Outcome,
	)
}

// Sessions returns summaries of all active sessions.
func (o *Orchestrator) Sessions() []session.Summary {
	return o.registry.Summaries()
}

// SessionStatus returns the live status of one session.
func (o *Orchestrator) SessionStatus(callID string) (session.Status, error) {
	s, err := o.registry.Get(callID)
	if err != nil {
		return session.Status{}, err
	}
	return s.StatusSnapshot(), nil
}

// ensureSession returns the call's session, creating and seeding it
// from the call record on first sight. Creation is idempotent under
// the call lock.
func (o *Orchestrator) ensureSession(ctx context.Context, callID string) (*session.Session, bool) {
	if s, err := o.registry.Get(callID); err == nil {
		return s, false
	}

	sessCtx := o.loadSessionContext(ctx, callID)
	s, created := o.registry.Create(callID, sessCtx)
	if created {
		o.metrics.ActiveSessions.Inc()
		o.logger.Info(ctx, "session created",
			"campaign_type", sessCtx.CampaignType,
			"phone_number", sessCtx.PhoneNumber,
		)
	}
	return s, created
}

// loadSessionContext seeds session context from the call record and
// directory. An unknown call (an inbound call with no prior record)
// gets a fresh record and an empty context.
func (o *Orchestrator) loadSessionContext(ctx context.Context, callID string) session.Context {
	call, err := o.store.GetCall(ctx, callID)
	if errors.Is(err, storage.ErrNotFound) {
		call = &storage.Call{
			ID:        callID,
			Status:    storage.StatusInProgress,
			CreatedAt: o.nowFunc(),
		}
		if err := o.store.CreateCall(ctx, call); err != nil {
			o.metrics.ProviderErrors.WithLabelValues(StagePersist).Inc()
			o.logger.Warn(ctx, "failed to create record for unseen call", "error", err)
		}
		return session.Context{}
	}
	if err != nil {
		o.logger.Warn(ctx, "failed to load call record, proceeding without context", "error", err)
		return session.Context{}
	}

	sessCtx := session.Context{
		ContactID:      call.ContactID,
		CampaignID:     call.CampaignID,
		PhoneNumber:    call.ToNumber,
		ProviderCallID: call.ProviderCallID,
	}
	if call.ContactID != "" {
		if contact, err := o.store.GetContact(ctx, call.ContactID); err == nil {
			sessCtx.ContactName = contact.FirstName
		}
	}
	if call.CampaignID != "" {
		if campaign, err := o.store.GetCampaign(ctx, call.CampaignID); err == nil {
			sessCtx.CampaignType = campaign.Type
			sessCtx.Script = campaign.Script
		}
	}
	return sessCtx
}

// history converts the session's recent turns into dialogue messages,
// bounded by the history window.
func (o *Orchestrator) history(s *session.Session) []dialogue.Message {
	turns := s.Turns()
	if len(turns) > o.historyWindow {
		turns = turns[len(turns)-o.historyWindow:]
	}

	messages := make([]dialogue.Message, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Direction == session.DirectionOutbound {
			role = "assistant"
		}
		messages = append(messages, dialogue.Message{
			Role:      role,
			Content:   turn.Content,
			Timestamp: turn.Timestamp,
		})
	}
	return messages
}

func (o *Orchestrator) persistStatus(ctx context.Context, callID string, delta storage.StatusDelta) {
	if err := o.store.UpdateCallStatus(ctx, callID, delta); err != nil {
		o.metrics.ProviderErrors.WithLabelValues(StagePersist).Inc()
		o.logger.Error(ctx, "failed to persist call status", "error", err)
	}
}

func (o *Orchestrator) persistLog(ctx context.Context, entry *storage.CallLog) {
	entry.ID = uuid.NewString()
	entry.Timestamp = o.nowFunc()
	if err := o.store.AppendCallLog(ctx, entry); err != nil {
		o.metrics.ProviderErrors.WithLabelValues(StagePersist).Inc()
		o.logger.Error(ctx, "failed to persist call log", "error", err)
	}
}
