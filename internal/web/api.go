package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voxflow-ai/voxflow/internal/session"
	"github.com/voxflow-ai/voxflow/internal/storage"
)

type createCallRequest struct {
	ContactID  string `json:"contact_id"`
	CampaignID string `json:"campaign_id,omitempty"`
}

// handleCreateCall places an outbound call.
func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.ContactID == "" {
		s.jsonError(w, http.StatusBadRequest, "contact_id is required")
		return
	}

	call, err := s.cfg.Engine.StartOutboundCall(r.Context(), req.ContactID, req.CampaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.jsonError(w, http.StatusNotFound, err.Error())
			return
		}
		s.cfg.Logger.Error(r.Context(), "failed to start outbound call", "error", err)
		s.jsonError(w, http.StatusBadGateway, "failed to place call")
		return
	}
	s.writeJSON(w, http.StatusCreated, call)
}

type sessionListResponse struct {
	Sessions []session.Summary `json:"sessions"`
	Count    int               `json:"count"`
}

// handleListSessions returns summaries of all active sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries := s.cfg.Engine.Sessions()
	s.writeJSON(w, http.StatusOK, sessionListResponse{Sessions: summaries, Count: len(summaries)})
}

// handleGetSession returns the live status of one session.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	status, err := s.cfg.Engine.SessionStatus(r.PathValue("call_id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			s.jsonError(w, http.StatusNotFound, "no active session for call")
			return
		}
		s.jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}
