package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// CharacterRepo implements store.CharacterRepository with sqlx.
type CharacterRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewCharacterRepo returns a new CharacterRepo.
func NewCharacterRepo(db *sqlx.DB, clk clock.Clock) *CharacterRepo {
	return &CharacterRepo{db: db, clock: clk}
}

func (r *CharacterRepo) Create(ctx context.Context, c *store.Character) error {
	now := r.clock.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	query := `INSERT INTO characters
	            (user_id, name, realm, region, class, spec, item_level, score, profile_url, synced_at, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	           RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		c.UserID, c.Name, c.Realm, c.Region, c.Class, c.Spec,
		c.ItemLevel, c.Score, c.ProfileURL, c.SyncedAt, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		if uniqueViolation(err, "") {
			return fmt.Errorf("character %s-%s: %w", c.Name, c.Realm, store.ErrDuplicate)
		}
		return fmt.Errorf("creating character: %w", err)
	}
	return nil
}

func (r *CharacterRepo) GetByID(ctx context.Context, id string) (*store.Character, error) {
	var c store.Character
	err := r.db.GetContext(ctx, &c, `SELECT * FROM characters WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "getting character")
	}
	return &c, nil
}

func (r *CharacterRepo) ListByUser(ctx context.Context, userID string) ([]store.Character, error) {
	var chars []store.Character
	err := r.db.SelectContext(ctx, &chars,
		`SELECT * FROM characters WHERE user_id = $1 ORDER BY item_level DESC, name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing characters: %w", err)
	}
	return chars, nil
}

// UpdateProfile refreshes the fields the external sync fetches and stamps
// the sync time.
func (r *CharacterRepo) UpdateProfile(ctx context.Context, c *store.Character) error {
	now := r.clock.Now().UTC()
	c.UpdatedAt = now
	c.SyncedAt = &now
	result, err := r.db.ExecContext(ctx,
		`UPDATE characters
		   SET class = $1, spec = $2, item_level = $3, score = $4, profile_url = $5,
		       synced_at = $6, updated_at = $7
		 WHERE id = $8`,
		c.Class, c.Spec, c.ItemLevel, c.Score, c.ProfileURL, c.SyncedAt, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating character profile: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("character %s: %w", c.ID, store.ErrNotFound)
	}
	return nil
}

func (r *CharacterRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting character: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("character %s: %w", id, store.ErrNotFound)
	}
	return nil
}
