package postgres_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store/postgres"
)

// newTestDB starts a Postgres container, applies the migration, and returns
// a connected *sqlx.DB. The container is automatically terminated when the
// test ends.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	// Locate migration file relative to this source file.
	_, thisFile, _, _ := runtime.Caller(0)
	migrationDir := filepath.Join(filepath.Dir(thisFile), "migrations")

	migrationSQL, err := os.ReadFile(filepath.Join(migrationDir, "001_initial.sql"))
	if err != nil {
		t.Fatalf("reading migration: %v", err)
	}

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("raidbot_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Apply migration.
	if _, err := db.ExecContext(ctx, string(migrationSQL)); err != nil {
		t.Fatalf("applying migration: %v", err)
	}

	return db
}

// fixture builds the common test graph: a lead, a member with a character,
// and repositories over db.
type fixture struct {
	db         *sqlx.DB
	users      *postgres.UserRepo
	characters *postgres.CharacterRepo
	raids      *postgres.RaidRepo
	signups    *postgres.SignupRepo

	lead      *store.User
	member    *store.User
	character *store.Character
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clk := clock.Real{}
	f := &fixture{
		db:         db,
		users:      postgres.NewUserRepo(db, clk),
		characters: postgres.NewCharacterRepo(db, clk),
		raids:      postgres.NewRaidRepo(db, clk),
		signups:    postgres.NewSignupRepo(db, clk),
	}
	ctx := context.Background()

	f.lead = &store.User{DiscordID: "lead-1", DisplayName: "Lead"}
	if err := f.users.Upsert(ctx, f.lead); err != nil {
		t.Fatalf("creating lead: %v", err)
	}
	f.member = &store.User{DiscordID: "member-1", DisplayName: "Member"}
	if err := f.users.Upsert(ctx, f.member); err != nil {
		t.Fatalf("creating member: %v", err)
	}
	f.character = &store.Character{
		UserID: f.member.ID, Name: "Thrall", Realm: "Blackhand", Region: "eu",
		Class: "Shaman", Spec: "Enhancement", ItemLevel: 489,
	}
	if err := f.characters.Create(ctx, f.character); err != nil {
		t.Fatalf("creating character: %v", err)
	}
	return f
}

// createRaid inserts a raid at the given start time.
func (f *fixture) createRaid(t *testing.T, startsAt time.Time, diff store.Difficulty, loot store.LootType) *store.Raid {
	t.Helper()
	r := &store.Raid{
		Title:      "Test Raid",
		StartsAt:   startsAt,
		Difficulty: diff,
		LootType:   loot,
		LeadID:     f.lead.ID,
	}
	if err := f.raids.Create(context.Background(), r); err != nil {
		t.Fatalf("creating raid: %v", err)
	}
	return r
}

// createSignup inserts an open signup for the fixture member + character.
func (f *fixture) createSignup(t *testing.T, raidID string, role store.Role) *store.Signup {
	t.Helper()
	s := &store.Signup{
		RaidID:      raidID,
		UserID:      f.member.ID,
		CharacterID: &f.character.ID,
		Role:        role,
		Lockout:     store.LockoutUnsaved,
	}
	if err := f.signups.Upsert(context.Background(), s); err != nil {
		t.Fatalf("creating signup: %v", err)
	}
	return s
}
