package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/api"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/config"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

const testSecret = "test-secret"

var raidStart = time.Date(2026, 8, 26, 20, 0, 0, 0, time.UTC)

type mockPicks struct {
	outcome *store.PickOutcome
	pickErr error

	lastRaidID   string
	lastSignupID string
	lastReplace  bool
	unpicked     bool
}

func (m *mockPicks) Pick(_ context.Context, raidID, signupID string, replace bool) (*store.PickOutcome, error) {
	m.lastRaidID, m.lastSignupID, m.lastReplace = raidID, signupID, replace
	if m.pickErr != nil {
		return nil, m.pickErr
	}
	if m.outcome != nil {
		return m.outcome, nil
	}
	return &store.PickOutcome{}, nil
}

func (m *mockPicks) Unpick(_ context.Context, raidID, signupID string) error {
	m.lastRaidID, m.lastSignupID = raidID, signupID
	m.unpicked = true
	return nil
}

type mockRaids struct {
	api.RaidService

	raid      *store.Raid
	createErr error
	lastActor raidmgr.Actor
}

func (m *mockRaids) Create(_ context.Context, actor raidmgr.Actor, p raidmgr.CreateParams) (*store.Raid, error) {
	m.lastActor = actor
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &store.Raid{ID: "raid-1", Title: p.Title, LeadID: actor.UserID}, nil
}

func (m *mockRaids) Get(_ context.Context, raidID string) (*store.Raid, error) {
	if m.raid == nil || m.raid.ID != raidID {
		return nil, store.ErrNotFound
	}
	return m.raid, nil
}

func (m *mockRaids) PostRoster(_ context.Context, actor raidmgr.Actor, _ string) (string, string, error) {
	if !actor.Raidlead && !actor.Elevated {
		return "", "", raidmgr.ErrNotAuthorized
	}
	return "chan-1", "msg-1", nil
}

type mockSignups struct {
	store.SignupRepository

	signup   *store.Signup
	details  []store.SignupDetail
	near     []store.PickedEntry
	blocking []store.PickedEntry
	entries  []store.UserEntry
}

func (m *mockSignups) GetByID(_ context.Context, id string) (*store.Signup, error) {
	if m.signup == nil || m.signup.ID != id {
		return nil, store.ErrNotFound
	}
	return m.signup, nil
}

func (m *mockSignups) ListByRaid(context.Context, string) ([]store.SignupDetail, error) {
	return m.details, nil
}

func (m *mockSignups) PickedNear(context.Context, string, time.Time, time.Duration, string) ([]store.PickedEntry, error) {
	return m.near, nil
}

func (m *mockSignups) PickedBlockingInCycle(context.Context, string, store.Difficulty, time.Time, time.Time, string) ([]store.PickedEntry, error) {
	return m.blocking, nil
}

func (m *mockSignups) UserEntriesInRange(context.Context, []string, time.Time, time.Time, string) ([]store.UserEntry, error) {
	return m.entries, nil
}

type fixture struct {
	picks   *mockPicks
	raids   *mockRaids
	signups *mockSignups
	handler http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		picks:   &mockPicks{},
		raids:   &mockRaids{},
		signups: &mockSignups{},
	}
	srv := api.New(config.APIConfig{JWTSecret: testSecret},
		f.picks, f.raids, nil, f.signups, nil, nil, slog.Default())
	f.handler = srv.Router()
	return f
}

func token(t *testing.T, s api.Session) string {
	t.Helper()
	tok, err := api.SignToken(testSecret, s, time.Hour)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return tok
}

func doRequest(t *testing.T, handler http.Handler, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestAuth(t *testing.T) {
	f := newFixture()

	t.Run("missing token", func(t *testing.T) {
		rec := doRequest(t, f.handler, http.MethodGet, "/api/raids", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "unauthorized" {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := doRequest(t, f.handler, http.MethodGet, "/api/raids", "garbage", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := api.SignToken("other-secret", api.Session{UserID: "u1"}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		rec := doRequest(t, f.handler, http.MethodGet, "/api/raids", tok, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})
}

func TestPickEndpoint(t *testing.T) {
	lead := api.Session{UserID: "lead-1", Name: "Anna", Raidlead: true}

	t.Run("member forbidden", func(t *testing.T) {
		f := newFixture()
		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/pick",
			token(t, api.Session{UserID: "u2"}),
			map[string]any{"signup_id": "su-1"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("success with evictions", func(t *testing.T) {
		f := newFixture()
		f.picks.outcome = &store.PickOutcome{EvictedRaidIDs: []string{"raid-0"}}

		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/pick", token(t, lead),
			map[string]any{"signup_id": "su-1", "replace": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		if body["ok"] != true {
			t.Error("ok != true")
		}
		evicted, _ := body["evicted_raid_ids"].([]any)
		if len(evicted) != 1 || evicted[0] != "raid-0" {
			t.Errorf("evicted_raid_ids = %v", body["evicted_raid_ids"])
		}
		if f.picks.lastRaidID != "raid-1" || f.picks.lastSignupID != "su-1" || !f.picks.lastReplace {
			t.Errorf("forwarded (%s, %s, %v)", f.picks.lastRaidID, f.picks.lastSignupID, f.picks.lastReplace)
		}
	})

	t.Run("time window conflict", func(t *testing.T) {
		f := newFixture()
		f.picks.pickErr = &conflict.Error{Kind: conflict.KindTimeWindow, RaidID: "raid-0", Minutes: 45, StartsAt: raidStart}

		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/pick", token(t, lead),
			map[string]any{"signup_id": "su-1"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != "time_window_conflict" {
			t.Errorf("error = %v", body["error"])
		}
		if body["minutes"] != float64(45) {
			t.Errorf("minutes = %v, want 45", body["minutes"])
		}
	})

	t.Run("cycle lockout conflict", func(t *testing.T) {
		f := newFixture()
		f.picks.pickErr = &conflict.Error{Kind: conflict.KindCycleLockout, RaidID: "raid-0"}

		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/pick", token(t, lead),
			map[string]any{"signup_id": "su-1"})
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		if body := decodeBody(t, rec); body["error"] != "already_picked_this_cycle" {
			t.Errorf("error = %v", body["error"])
		}
	})

	t.Run("unknown signup", func(t *testing.T) {
		f := newFixture()
		f.picks.pickErr = store.ErrNotFound

		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/pick", token(t, lead),
			map[string]any{"signup_id": "su-404"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("missing signup id", func(t *testing.T) {
		f := newFixture()
		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/pick", token(t, lead),
			map[string]any{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestTogglePicked(t *testing.T) {
	lead := api.Session{UserID: "lead-1", Raidlead: true}

	t.Run("toggle on resolves the raid", func(t *testing.T) {
		f := newFixture()
		f.signups.signup = &store.Signup{ID: "su-1", RaidID: "raid-1"}

		rec := doRequest(t, f.handler, http.MethodPost, "/api/signups/su-1/toggle-picked", token(t, lead),
			map[string]any{"picked": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if f.picks.lastRaidID != "raid-1" {
			t.Errorf("raid id = %q, want resolved raid-1", f.picks.lastRaidID)
		}
	})

	t.Run("toggle off unpicks", func(t *testing.T) {
		f := newFixture()
		f.signups.signup = &store.Signup{ID: "su-1", RaidID: "raid-1"}

		rec := doRequest(t, f.handler, http.MethodPost, "/api/signups/su-1/toggle-picked", token(t, lead),
			map[string]any{"picked": false})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !f.picks.unpicked {
			t.Error("Unpick not called")
		}
	})
}

func TestCreateRaidValidation(t *testing.T) {
	lead := api.Session{UserID: "lead-1", Raidlead: true}

	tests := []struct {
		name       string
		createErr  error
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad datetime",
			body:       map[string]any{"starts_at": "tomorrow-ish", "difficulty": "heroic", "loot_type": "unsaved"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_datetime",
		},
		{
			name:       "outside cycle",
			createErr:  raidmgr.ErrOutsideCycle,
			body:       map[string]any{"starts_at": raidStart.Format(time.RFC3339), "difficulty": "heroic", "loot_type": "unsaved"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "datetime_outside_cycle",
		},
		{
			name:       "mythic saved",
			createErr:  store.ErrMythicSaved,
			body:       map[string]any{"starts_at": raidStart.Format(time.RFC3339), "difficulty": "mythic", "loot_type": "saved"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "mythic_saved_forbidden",
		},
		{
			name:       "member forbidden",
			createErr:  raidmgr.ErrNotAuthorized,
			body:       map[string]any{"starts_at": raidStart.Format(time.RFC3339), "difficulty": "heroic", "loot_type": "unsaved"},
			wantStatus: http.StatusForbidden,
			wantCode:   "forbidden",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.raids.createErr = tt.createErr

			rec := doRequest(t, f.handler, http.MethodPost, "/api/raids", token(t, lead), tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body := decodeBody(t, rec); body["error"] != tt.wantCode {
				t.Errorf("error = %v, want %s", body["error"], tt.wantCode)
			}
		})
	}

	t.Run("session becomes actor", func(t *testing.T) {
		f := newFixture()
		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids", token(t, lead),
			map[string]any{"starts_at": raidStart.Format(time.RFC3339), "difficulty": "heroic", "loot_type": "unsaved"})
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if f.raids.lastActor.UserID != "lead-1" || !f.raids.lastActor.Raidlead {
			t.Errorf("actor = %+v", f.raids.lastActor)
		}
	})
}

func TestListSignupsAnnotation(t *testing.T) {
	member := api.Session{UserID: "u1"}

	listRows := func(t *testing.T, f *fixture) []any {
		t.Helper()
		rec := doRequest(t, f.handler, http.MethodGet, "/api/raids/raid-1/signups", token(t, member), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		body := decodeBody(t, rec)
		rows, _ := body["signups"].([]any)
		return rows
	}

	t.Run("picked within the time window", func(t *testing.T) {
		f := newFixture()
		f.raids.raid = &store.Raid{ID: "raid-1", StartsAt: raidStart}
		f.signups.details = []store.SignupDetail{
			{Signup: store.Signup{ID: "su-1", RaidID: "raid-1", UserID: "u1", Role: store.RoleDPS}, UserName: "Anna"},
		}
		f.signups.near = []store.PickedEntry{
			{RaidID: "raid-0", StartsAt: raidStart.Add(-time.Hour)},
		}

		rows := listRows(t, f)
		if len(rows) != 1 {
			t.Fatalf("signups = %v", rows)
		}
		row, _ := rows[0].(map[string]any)
		if row["picked_in_other"] != true {
			t.Errorf("picked_in_other = %v", row["picked_in_other"])
		}
		if row["conflict_raid_id"] != "raid-0" {
			t.Errorf("conflict_raid_id = %v", row["conflict_raid_id"])
		}
	})

	t.Run("lockout held elsewhere in the cycle", func(t *testing.T) {
		charID := "char-1"
		f := newFixture()
		f.raids.raid = &store.Raid{
			ID: "raid-1", StartsAt: raidStart,
			Difficulty: store.DifficultyHeroic, LootType: store.LootUnsaved,
		}
		f.signups.details = []store.SignupDetail{
			{Signup: store.Signup{ID: "su-1", RaidID: "raid-1", UserID: "u1", CharacterID: &charID, Role: store.RoleDPS}, UserName: "Anna"},
		}
		f.signups.blocking = []store.PickedEntry{
			{RaidID: "raid-0", StartsAt: raidStart.AddDate(0, 0, 2)},
		}

		rows := listRows(t, f)
		if len(rows) != 1 {
			t.Fatalf("signups = %v", rows)
		}
		row, _ := rows[0].(map[string]any)
		if row["picked_in_other"] != true {
			t.Errorf("picked_in_other = %v", row["picked_in_other"])
		}
		if row["conflict_raid_id"] != "raid-0" {
			t.Errorf("conflict_raid_id = %v", row["conflict_raid_id"])
		}
	})

	t.Run("no character stays unflagged", func(t *testing.T) {
		f := newFixture()
		f.raids.raid = &store.Raid{
			ID: "raid-1", StartsAt: raidStart,
			Difficulty: store.DifficultyHeroic, LootType: store.LootUnsaved,
		}
		f.signups.details = []store.SignupDetail{
			{Signup: store.Signup{ID: "su-1", RaidID: "raid-1", UserID: "u1", Role: store.RoleDPS}, UserName: "Anna"},
		}
		f.signups.blocking = []store.PickedEntry{
			{RaidID: "raid-0", StartsAt: raidStart.AddDate(0, 0, 2)},
		}

		rows := listRows(t, f)
		if len(rows) != 1 {
			t.Fatalf("signups = %v", rows)
		}
		row, _ := rows[0].(map[string]any)
		if _, flagged := row["picked_in_other"]; flagged {
			t.Errorf("picked_in_other = %v, want absent", row["picked_in_other"])
		}
	})
}

func TestPostRosterEndpoint(t *testing.T) {
	lead := api.Session{UserID: "lead-1", Raidlead: true}
	member := api.Session{UserID: "u1"}

	for _, path := range []string{
		"/api/raids/raid-1/post-roster",
		"/api/raids/raid-1/publish",
		"/api/raids/raid-1/publish-template",
	} {
		t.Run(path, func(t *testing.T) {
			f := newFixture()
			rec := doRequest(t, f.handler, http.MethodPost, path, token(t, lead), nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body["channel_id"] != "chan-1" || body["message_id"] != "msg-1" {
				t.Errorf("body = %v", body)
			}
		})
	}

	t.Run("member forbidden", func(t *testing.T) {
		f := newFixture()
		rec := doRequest(t, f.handler, http.MethodPost, "/api/raids/raid-1/post-roster", token(t, member), nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})
}
