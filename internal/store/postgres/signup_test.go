package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/cycle"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// raidEvening is a Wednesday 20:00 inside an arbitrary cycle.
var raidEvening = time.Date(2026, 8, 26, 20, 0, 0, 0, time.UTC)

func pickParams(f *fixture, r *store.Raid, s *store.Signup, evict bool) store.PickParams {
	start, end := cycle.Bounds(r.StartsAt)
	return store.PickParams{
		SignupID:    s.ID,
		RaidID:      r.ID,
		UserID:      s.UserID,
		CharacterID: s.CharacterID,
		Difficulty:  r.Difficulty,
		LootType:    r.LootType,
		CycleStart:  start,
		CycleEnd:    end,
		Evict:       evict,
	}
}

func TestSignupRepo_UpsertReplacesPrior(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raid := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)

	first := f.createSignup(t, raid.ID, store.RoleDPS)
	second := f.createSignup(t, raid.ID, store.RoleTank)

	rows, err := f.signups.ListByRaid(ctx, raid.ID)
	if err != nil {
		t.Fatalf("ListByRaid: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d signups, want 1 (re-signup must replace)", len(rows))
	}
	if rows[0].ID == first.ID {
		t.Error("old signup survived the re-signup")
	}
	if rows[0].ID != second.ID || rows[0].Role != store.RoleTank {
		t.Errorf("got signup %s role %s, want %s role tank", rows[0].ID, rows[0].Role, second.ID)
	}
	if rows[0].Picked {
		t.Error("replacement signup must start unpicked")
	}
}

func TestSignupRepo_CommitPick_Exclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raid := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)

	// Second character so the member can hold two signups in one raid.
	alt := &store.Character{UserID: f.member.ID, Name: "Garrosh", Realm: "Blackhand", Region: "eu", Class: "Warrior"}
	if err := f.characters.Create(ctx, alt); err != nil {
		t.Fatalf("creating alt: %v", err)
	}

	first := f.createSignup(t, raid.ID, store.RoleDPS)
	second := &store.Signup{RaidID: raid.ID, UserID: f.member.ID, CharacterID: &alt.ID, Role: store.RoleTank, Lockout: store.LockoutUnsaved}
	if err := f.signups.Upsert(ctx, second); err != nil {
		t.Fatalf("creating alt signup: %v", err)
	}

	if _, err := f.signups.CommitPick(ctx, pickParams(f, raid, first, false)); err != nil {
		t.Fatalf("CommitPick(first): %v", err)
	}
	if _, err := f.signups.CommitPick(ctx, pickParams(f, raid, second, false)); err != nil {
		t.Fatalf("CommitPick(second): %v", err)
	}

	rows, err := f.signups.ListByRaid(ctx, raid.ID)
	if err != nil {
		t.Fatalf("ListByRaid: %v", err)
	}
	picked := 0
	for _, row := range rows {
		if row.Picked {
			picked++
			if row.ID != second.ID {
				t.Errorf("picked signup = %s, want %s", row.ID, second.ID)
			}
			if row.Status != store.StatusPicked {
				t.Errorf("picked status = %q, want %q", row.Status, store.StatusPicked)
			}
		}
	}
	if picked != 1 {
		t.Fatalf("picked count = %d, want exactly 1", picked)
	}
}

func TestSignupRepo_CommitPick_EvictsBlockingSignups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raidA := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)
	raidB := f.createRaid(t, raidEvening.AddDate(0, 0, 1), store.DifficultyHeroic, store.LootUnsaved)
	// Different difficulty: untouched by the eviction.
	raidC := f.createRaid(t, raidEvening.AddDate(0, 0, 2), store.DifficultyNormal, store.LootUnsaved)

	suA := f.createSignup(t, raidA.ID, store.RoleDPS)
	suB := f.createSignup(t, raidB.ID, store.RoleDPS)
	suC := f.createSignup(t, raidC.ID, store.RoleDPS)

	if _, err := f.signups.CommitPick(ctx, pickParams(f, raidA, suA, false)); err != nil {
		t.Fatalf("picking into raid A: %v", err)
	}

	outcome, err := f.signups.CommitPick(ctx, pickParams(f, raidB, suB, true))
	if err != nil {
		t.Fatalf("replacing pick into raid B: %v", err)
	}
	if len(outcome.EvictedRaidIDs) != 1 || outcome.EvictedRaidIDs[0] != raidA.ID {
		t.Fatalf("EvictedRaidIDs = %v, want [%s]", outcome.EvictedRaidIDs, raidA.ID)
	}

	// Raid A's signup is deleted, not merely unpicked.
	if _, err := f.signups.GetByID(ctx, suA.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByID(evicted) error = %v, want ErrNotFound", err)
	}
	// The Normal raid signup survives.
	if _, err := f.signups.GetByID(ctx, suC.ID); err != nil {
		t.Errorf("GetByID(other difficulty) error = %v, want nil", err)
	}
}

func TestSignupRepo_CommitPick_NoEvictWithoutFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raidA := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)
	raidB := f.createRaid(t, raidEvening.AddDate(0, 0, 1), store.DifficultyHeroic, store.LootUnsaved)
	suA := f.createSignup(t, raidA.ID, store.RoleDPS)
	suB := f.createSignup(t, raidB.ID, store.RoleDPS)

	if _, err := f.signups.CommitPick(ctx, pickParams(f, raidA, suA, false)); err != nil {
		t.Fatalf("picking into raid A: %v", err)
	}
	outcome, err := f.signups.CommitPick(ctx, pickParams(f, raidB, suB, false))
	if err != nil {
		t.Fatalf("picking into raid B: %v", err)
	}
	if len(outcome.EvictedRaidIDs) != 0 {
		t.Errorf("EvictedRaidIDs = %v, want none without the evict flag", outcome.EvictedRaidIDs)
	}
	if _, err := f.signups.GetByID(ctx, suA.ID); err != nil {
		t.Errorf("raid A signup should survive: %v", err)
	}
}

func TestSignupRepo_Unpick_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raid := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)
	su := f.createSignup(t, raid.ID, store.RoleHealer)

	if _, err := f.signups.CommitPick(ctx, pickParams(f, raid, su, false)); err != nil {
		t.Fatalf("CommitPick: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.signups.Unpick(ctx, su.ID); err != nil {
			t.Fatalf("Unpick #%d: %v", i+1, err)
		}
	}

	got, err := f.signups.GetByID(ctx, su.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Picked || got.Status != store.StatusOpen {
		t.Errorf("after unpick: picked=%v status=%q, want open", got.Picked, got.Status)
	}
}

func TestSignupRepo_PickedNear_WindowBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raidA := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)
	suA := f.createSignup(t, raidA.ID, store.RoleDPS)
	if _, err := f.signups.CommitPick(ctx, pickParams(f, raidA, suA, false)); err != nil {
		t.Fatalf("CommitPick: %v", err)
	}

	window := 90 * time.Minute
	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"89 minutes after conflicts", raidEvening.Add(89 * time.Minute), 1},
		{"exactly 90 minutes does not conflict", raidEvening.Add(90 * time.Minute), 0},
		{"89 minutes before conflicts", raidEvening.Add(-89 * time.Minute), 1},
		{"same instant conflicts", raidEvening, 1},
		{"far away is clear", raidEvening.Add(5 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := f.signups.PickedNear(ctx, f.member.ID, tt.at, window, "00000000-0000-0000-0000-000000000000")
			if err != nil {
				t.Fatalf("PickedNear: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("got %d entries, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestSignupRepo_PickedBlockingInCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	raidA := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)
	suA := f.createSignup(t, raidA.ID, store.RoleDPS)
	if _, err := f.signups.CommitPick(ctx, pickParams(f, raidA, suA, false)); err != nil {
		t.Fatalf("CommitPick: %v", err)
	}

	start, end := cycle.Bounds(raidEvening)

	entries, err := f.signups.PickedBlockingInCycle(ctx, f.character.ID, store.DifficultyHeroic, start, end, "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("PickedBlockingInCycle: %v", err)
	}
	if len(entries) != 1 || entries[0].RaidID != raidA.ID {
		t.Fatalf("entries = %+v, want one entry for raid A", entries)
	}

	// Different difficulty finds nothing.
	entries, err = f.signups.PickedBlockingInCycle(ctx, f.character.ID, store.DifficultyNormal, start, end, "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("PickedBlockingInCycle: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries for Normal, want 0", len(entries))
	}

	// Next cycle finds nothing.
	entries, err = f.signups.PickedBlockingInCycle(ctx, f.character.ID, store.DifficultyHeroic,
		start.AddDate(0, 0, 7), end.AddDate(0, 0, 7), "00000000-0000-0000-0000-000000000000")
	if err != nil {
		t.Fatalf("PickedBlockingInCycle: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries in next cycle, want 0", len(entries))
	}
}

func TestSignupRepo_PickIndex_RejectsDoublePick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	raid := f.createRaid(t, raidEvening, store.DifficultyHeroic, store.LootUnsaved)
	su := f.createSignup(t, raid.ID, store.RoleDPS)

	if _, err := f.signups.CommitPick(ctx, pickParams(f, raid, su, false)); err != nil {
		t.Fatalf("CommitPick: %v", err)
	}

	// Forcing a second picked row for the same user+raid past the
	// application logic must hit the partial unique index.
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO signups (raid_id, user_id, role, picked, status) VALUES ($1, $2, 'dps', TRUE, 'picked')`,
		raid.ID, f.member.ID)
	if err == nil {
		t.Fatal("expected unique violation for second picked signup")
	}
}
