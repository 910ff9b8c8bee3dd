package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/armory"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// respond writes the success envelope. extra is merged in next to
// "ok": true.
func respond(w http.ResponseWriter, status int, extra map[string]any) {
	body := map[string]any{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// respondError writes the error envelope with a stable error code.
func respondError(w http.ResponseWriter, status int, code string, extra map[string]any) {
	body := map[string]any{"ok": false, "error": code}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondDomainError maps domain errors onto the error taxonomy.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	var ce *conflict.Error
	switch {
	case errors.As(err, &ce):
		extra := map[string]any{
			"raid_id":   ce.RaidID,
			"starts_at": ce.StartsAt,
		}
		if ce.Kind == conflict.KindTimeWindow {
			extra["minutes"] = ce.Minutes
		}
		respondError(w, http.StatusConflict, ce.Kind, extra)
	case errors.Is(err, store.ErrPickRace):
		respondError(w, http.StatusConflict, "pick_race", nil)
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, raidmgr.ErrNotAuthorized), errors.Is(err, armory.ErrNotOwner):
		respondError(w, http.StatusForbidden, "forbidden", nil)
	case errors.Is(err, raidmgr.ErrInvalidDatetime):
		respondError(w, http.StatusBadRequest, "invalid_datetime", nil)
	case errors.Is(err, raidmgr.ErrOutsideCycle):
		respondError(w, http.StatusBadRequest, "datetime_outside_cycle", nil)
	case errors.Is(err, store.ErrInvalidDifficulty):
		respondError(w, http.StatusBadRequest, "invalid_difficulty", nil)
	case errors.Is(err, store.ErrInvalidLootType):
		respondError(w, http.StatusBadRequest, "invalid_loot_type", nil)
	case errors.Is(err, store.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, "invalid_role", nil)
	case errors.Is(err, store.ErrInvalidLockout):
		respondError(w, http.StatusBadRequest, "invalid_lockout", nil)
	case errors.Is(err, store.ErrMythicSaved):
		respondError(w, http.StatusBadRequest, "mythic_saved_forbidden", nil)
	case errors.Is(err, store.ErrDuplicate):
		respondError(w, http.StatusConflict, "duplicate", nil)
	default:
		s.logger.Error("internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "internal", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_json", nil)
		return false
	}
	return true
}
