package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	chars, err := s.chars.ListByUser(r.Context(), session.UserID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"characters": chars})
}

type importRequest struct {
	Region string `json:"region"`
	Realm  string `json:"realm"`
	Name   string `json:"name"`
}

func (s *Server) handleImportCharacter(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, _ := SessionFromContext(r.Context())

	c, err := s.chars.Import(r.Context(), session.UserID, req.Region, req.Realm, req.Name)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"character": c})
}

func (s *Server) handleRemoveCharacter(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	err := s.chars.Remove(r.Context(), chi.URLParam(r, "characterID"), session.UserID, session.Elevated)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

type presetRequest struct {
	Name        string `json:"name"`
	Tanks       int    `json:"tanks"`
	Healers     int    `json:"healers"`
	DPS         int    `json:"dps"`
	Lootbuddies int    `json:"lootbuddies"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.presets.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"presets": presets})
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "missing_name", nil)
		return
	}
	session, _ := SessionFromContext(r.Context())
	if !session.Raidlead && !session.Elevated {
		respondError(w, http.StatusForbidden, "forbidden", nil)
		return
	}

	p := &store.Preset{
		Name:        req.Name,
		OwnerID:     session.UserID,
		Tanks:       req.Tanks,
		Healers:     req.Healers,
		DPS:         req.DPS,
		Lootbuddies: req.Lootbuddies,
	}
	if err := s.presets.Create(r.Context(), p); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"preset": p})
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.presets.GetByID(r.Context(), chi.URLParam(r, "presetID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"preset": p})
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, _ := SessionFromContext(r.Context())

	p, err := s.presets.GetByID(r.Context(), chi.URLParam(r, "presetID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if p.OwnerID != session.UserID && !session.Elevated {
		respondError(w, http.StatusForbidden, "forbidden", nil)
		return
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	p.Tanks = req.Tanks
	p.Healers = req.Healers
	p.DPS = req.DPS
	p.Lootbuddies = req.Lootbuddies
	if err := s.presets.Update(r.Context(), p); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"preset": p})
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())

	p, err := s.presets.GetByID(r.Context(), chi.URLParam(r, "presetID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	if p.OwnerID != session.UserID && !session.Elevated {
		respondError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := s.presets.Delete(r.Context(), p.ID); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"users": users})
}
