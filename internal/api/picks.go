package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type pickRequest struct {
	SignupID string `json:"signup_id"`
	Replace  bool   `json:"replace"`
}

// requireLead gates the roster-editing endpoints to raidleads and
// elevated sessions.
func requireLead(w http.ResponseWriter, r *http.Request) bool {
	session, _ := SessionFromContext(r.Context())
	if !session.Raidlead && !session.Elevated {
		respondError(w, http.StatusForbidden, "forbidden", nil)
		return false
	}
	return true
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	if !requireLead(w, r) {
		return
	}
	raidID := chi.URLParam(r, "raidID")
	var req pickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SignupID == "" {
		respondError(w, http.StatusBadRequest, "missing_signup_id", nil)
		return
	}

	outcome, err := s.picks.Pick(r.Context(), raidID, req.SignupID, req.Replace)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"evicted_raid_ids": outcome.EvictedRaidIDs,
	})
}

func (s *Server) handleUnpick(w http.ResponseWriter, r *http.Request) {
	if !requireLead(w, r) {
		return
	}
	raidID := chi.URLParam(r, "raidID")
	var req pickRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.SignupID == "" {
		respondError(w, http.StatusBadRequest, "missing_signup_id", nil)
		return
	}

	if err := s.picks.Unpick(r.Context(), raidID, req.SignupID); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

type toggleRequest struct {
	Picked  bool `json:"picked"`
	Replace bool `json:"replace"`
}

func (s *Server) handleTogglePicked(w http.ResponseWriter, r *http.Request) {
	if !requireLead(w, r) {
		return
	}
	signupID := chi.URLParam(r, "signupID")
	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	su, err := s.signups.GetByID(r.Context(), signupID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	if !req.Picked {
		if err := s.picks.Unpick(r.Context(), su.RaidID, signupID); err != nil {
			s.respondDomainError(w, err)
			return
		}
		respond(w, http.StatusOK, nil)
		return
	}

	outcome, err := s.picks.Pick(r.Context(), su.RaidID, signupID, req.Replace)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"evicted_raid_ids": outcome.EvictedRaidIDs,
	})
}
