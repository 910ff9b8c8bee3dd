package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/cycle"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

type raidRequest struct {
	Title       string  `json:"title"`
	StartsAt    string  `json:"starts_at"`
	Difficulty  string  `json:"difficulty"`
	LootType    string  `json:"loot_type"`
	Description string  `json:"description"`
	ChannelID   *string `json:"channel_id,omitempty"`
	PresetID    *string `json:"preset_id,omitempty"`
}

func parseStartsAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, raidmgr.ErrInvalidDatetime
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, raidmgr.ErrInvalidDatetime
	}
	return t, nil
}

func (s *Server) handleListRaids(w http.ResponseWriter, r *http.Request) {
	raids, err := s.raids.List(r.Context())
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"raids": raids})
}

func (s *Server) handleCreateRaid(w http.ResponseWriter, r *http.Request) {
	var req raidRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	startsAt, err := parseStartsAt(req.StartsAt)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	raid, err := s.raids.Create(r.Context(), actor(r), raidmgr.CreateParams{
		Title:       req.Title,
		StartsAt:    startsAt,
		Difficulty:  req.Difficulty,
		LootType:    req.LootType,
		Description: req.Description,
		ChannelID:   req.ChannelID,
		PresetID:    req.PresetID,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"raid": raid})
}

func (s *Server) handleGetRaid(w http.ResponseWriter, r *http.Request) {
	raid, err := s.raids.Get(r.Context(), chi.URLParam(r, "raidID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"raid": raid})
}

func (s *Server) handleUpdateRaid(w http.ResponseWriter, r *http.Request) {
	var req raidRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var startsAt time.Time
	if req.StartsAt != "" {
		var err error
		if startsAt, err = parseStartsAt(req.StartsAt); err != nil {
			s.respondDomainError(w, err)
			return
		}
	}

	raid, err := s.raids.Update(r.Context(), actor(r), chi.URLParam(r, "raidID"), raidmgr.UpdateParams{
		Title:       req.Title,
		StartsAt:    startsAt,
		Difficulty:  req.Difficulty,
		LootType:    req.LootType,
		Description: req.Description,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"raid": raid})
}

func (s *Server) handleDeleteRaid(w http.ResponseWriter, r *http.Request) {
	if err := s.raids.Delete(r.Context(), actor(r), chi.URLParam(r, "raidID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

type signupRequest struct {
	CharacterID *string `json:"character_id,omitempty"`
	ClassLabel  *string `json:"class_label,omitempty"`
	Role        string  `json:"role"`
	Lockout     string  `json:"lockout"`
	Note        string  `json:"note"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, _ := SessionFromContext(r.Context())

	su, err := s.raids.SignUp(r.Context(), raidmgr.SignupParams{
		RaidID:      chi.URLParam(r, "raidID"),
		UserID:      session.UserID,
		CharacterID: req.CharacterID,
		ClassLabel:  req.ClassLabel,
		Role:        req.Role,
		Lockout:     req.Lockout,
		Note:        req.Note,
	})
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{"signup": su})
}

func (s *Server) handleRemoveSignup(w http.ResponseWriter, r *http.Request) {
	if err := s.raids.RemoveSignup(r.Context(), actor(r), chi.URLParam(r, "signupID")); err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

// signupRow is a signup annotated with the caller-facing conflict hint:
// the user is already picked in another raid close to this one.
type signupRow struct {
	store.SignupDetail
	PickedInOther    bool       `json:"picked_in_other,omitempty"`
	ConflictRaidID   string     `json:"conflict_raid_id,omitempty"`
	ConflictStartsAt *time.Time `json:"conflict_starts_at,omitempty"`
}

func (s *Server) handleListSignups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raidID := chi.URLParam(r, "raidID")

	raid, err := s.raids.Get(ctx, raidID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	details, err := s.signups.ListByRaid(ctx, raidID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	cycleStart, cycleEnd := cycle.Bounds(raid.StartsAt)

	// One conflict lookup per distinct user, and one lockout lookup per
	// distinct character. Mirrors the checks the pick path runs.
	nearby := make(map[string][]store.PickedEntry)
	locked := make(map[string][]store.PickedEntry)
	rows := make([]signupRow, 0, len(details))
	for _, d := range details {
		row := signupRow{SignupDetail: d}
		entries, ok := nearby[d.UserID]
		if !ok {
			entries, err = s.signups.PickedNear(ctx, d.UserID, raid.StartsAt, conflict.Window, raidID)
			if err != nil {
				s.respondDomainError(w, err)
				return
			}
			nearby[d.UserID] = entries
		}
		if len(entries) == 0 && d.CharacterID != nil && raid.LootType.Blocking() {
			charID := *d.CharacterID
			entries, ok = locked[charID]
			if !ok {
				entries, err = s.signups.PickedBlockingInCycle(ctx, charID, raid.Difficulty, cycleStart, cycleEnd, raidID)
				if err != nil {
					s.respondDomainError(w, err)
					return
				}
				locked[charID] = entries
			}
		}
		if len(entries) > 0 {
			row.PickedInOther = true
			row.ConflictRaidID = entries[0].RaidID
			row.ConflictStartsAt = &entries[0].StartsAt
		}
		rows = append(rows, row)
	}

	respond(w, http.StatusOK, map[string]any{"signups": rows})
}

type assignmentGroup struct {
	UserID   string            `json:"user_id"`
	UserName string            `json:"user_name"`
	Entries  []store.UserEntry `json:"entries"`
}

// handleCycleAssignments lists what else each signed-up user is doing in
// this raid's lockout cycle or time window.
func (s *Server) handleCycleAssignments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raidID := chi.URLParam(r, "raidID")

	raid, err := s.raids.Get(ctx, raidID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	details, err := s.signups.ListByRaid(ctx, raidID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	names := make(map[string]string, len(details))
	userIDs := make([]string, 0, len(details))
	for _, d := range details {
		if _, ok := names[d.UserID]; ok {
			continue
		}
		names[d.UserID] = d.UserName
		userIDs = append(userIDs, d.UserID)
	}

	// The relevant range is the raid's cycle widened by the conflict
	// window around its start.
	from, to := cycle.Bounds(raid.StartsAt)
	if t := raid.StartsAt.Add(-conflict.Window); t.Before(from) {
		from = t
	}
	if t := raid.StartsAt.Add(conflict.Window); t.After(to) {
		to = t
	}

	entries, err := s.signups.UserEntriesInRange(ctx, userIDs, from, to, raidID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	byUser := make(map[string][]store.UserEntry)
	for _, e := range entries {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	groups := make([]assignmentGroup, 0, len(userIDs))
	for _, userID := range userIDs {
		groups = append(groups, assignmentGroup{
			UserID:   userID,
			UserName: names[userID],
			Entries:  byUser[userID],
		})
	}
	respond(w, http.StatusOK, map[string]any{"assignments": groups})
}

func (s *Server) handlePostRoster(w http.ResponseWriter, r *http.Request) {
	channelID, messageID, err := s.raids.PostRoster(r.Context(), actor(r), chi.URLParam(r, "raidID"))
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"channel_id": channelID,
		"message_id": messageID,
	})
}
