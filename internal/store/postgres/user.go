package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// UserRepo implements store.UserRepository with sqlx.
type UserRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewUserRepo returns a new UserRepo.
func NewUserRepo(db *sqlx.DB, clk clock.Clock) *UserRepo {
	return &UserRepo{db: db, clock: clk}
}

// Upsert inserts the user or refreshes the display name on every login.
func (r *UserRepo) Upsert(ctx context.Context, u *store.User) error {
	now := r.clock.Now().UTC()
	query := `INSERT INTO users (discord_id, display_name, created_at, updated_at)
	           VALUES ($1, $2, $3, $3)
	           ON CONFLICT (discord_id) DO UPDATE
	             SET display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at
	           RETURNING id, is_raidlead, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, u.DiscordID, u.DisplayName, now).
		Scan(&u.ID, &u.IsRaidlead, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*store.User, error) {
	var u store.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "getting user")
	}
	return &u, nil
}

func (r *UserRepo) GetByDiscordID(ctx context.Context, discordID string) (*store.User, error) {
	var u store.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE discord_id = $1`, discordID)
	if err != nil {
		return nil, notFound(err, "getting user by discord_id")
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]store.User, error) {
	var users []store.User
	err := r.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY display_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) SetRaidlead(ctx context.Context, id string, lead bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_raidlead = $1, updated_at = $2 WHERE id = $3`,
		lead, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting raidlead flag: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return nil
}
