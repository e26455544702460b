package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/voxflow-ai/voxflow/internal/observability"
	"github.com/voxflow-ai/voxflow/internal/telephony"
)

// verifyWebhook checks the carrier signature against the public URL
// the carrier actually signed.
func (s *Server) verifyWebhook(r *http.Request) bool {
	if !s.cfg.ValidateSignatures {
		return true
	}
	signedURL := strings.TrimRight(s.cfg.PublicURL, "/") + r.URL.RequestURI()
	return s.cfg.Carrier.ValidateSignature(signedURL, r.PostForm, r.Header.Get("X-Twilio-Signature"))
}

// handleVoiceWebhook answers the carrier's voice webhook with TwiML
// that connects the call to our media stream. The session itself is
// created when the stream opens.
func (s *Server) handleVoiceWebhook(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	ctx := observability.WithCallID(r.Context(), callID)

	if err := r.ParseForm(); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	if !s.verifyWebhook(r) {
		s.cfg.Logger.Warn(ctx, "rejected voice webhook with bad signature")
		s.jsonError(w, http.StatusForbidden, "invalid signature")
		return
	}

	// A retried or delayed webhook can carry a terminal status; opening
	// a media stream to a dead call would only spawn an orphan session.
	if status := telephony.CallStatus(r.PostForm.Get("CallStatus")); status.IsTerminal() {
		s.cfg.Logger.Info(ctx, "voice webhook for already-ended call", "call_status", string(status))
		s.writeTwiML(w, telephony.HangupTwiML(""))
		return
	}

	s.cfg.Logger.Info(ctx, "voice webhook received",
		"provider_call_id", r.PostForm.Get("CallSid"),
		"call_status", r.PostForm.Get("CallStatus"),
	)
	s.writeTwiML(w, telephony.AnswerTwiML(s.streamURL(callID)))
}

// handleStatusWebhook applies a carrier status callback.
func (s *Server) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	callID := r.PathValue("call_id")
	ctx := observability.WithCallID(r.Context(), callID)

	if err := r.ParseForm(); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed form body")
		return
	}
	if !s.verifyWebhook(r) {
		s.cfg.Logger.Warn(ctx, "rejected status webhook with bad signature")
		s.jsonError(w, http.StatusForbidden, "invalid signature")
		return
	}

	ev, err := telephony.ParseStatusEvent(callID, r.PostForm, time.Now())
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.cfg.Engine.HandleStatusEvent(ctx, ev); err != nil {
		// The session may already be gone; the callback is still acked so
		// the carrier stops retrying.
		s.cfg.Logger.Debug(ctx, "status event not applied", "error", err, "status", string(ev.Status))
	}
	s.writeTwiML(w, telephony.EmptyTwiML())
}

// streamURL builds the WebSocket URL the carrier connects its media
// stream to.
func (s *Server) streamURL(callID string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return fmt.Sprintf("%s/ws/stream/%s", base, callID)
	}
	scheme := "wss"
	if u.Scheme == "http" {
		scheme = "ws"
	}
	return fmt.Sprintf("%s://%s/ws/stream/%s", scheme, u.Host, callID)
}
