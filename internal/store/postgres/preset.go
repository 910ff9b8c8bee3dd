package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// PresetRepo implements store.PresetRepository with sqlx.
type PresetRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewPresetRepo returns a new PresetRepo.
func NewPresetRepo(db *sqlx.DB, clk clock.Clock) *PresetRepo {
	return &PresetRepo{db: db, clock: clk}
}

func (r *PresetRepo) Create(ctx context.Context, p *store.Preset) error {
	now := r.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO presets (name, owner_id, tanks, healers, dps, lootbuddies, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.Name, p.OwnerID, p.Tanks, p.Healers, p.DPS, p.Lootbuddies, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("creating preset: %w", err)
	}
	return nil
}

func (r *PresetRepo) GetByID(ctx context.Context, id string) (*store.Preset, error) {
	var p store.Preset
	err := r.db.GetContext(ctx, &p, `SELECT * FROM presets WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "getting preset")
	}
	return &p, nil
}

func (r *PresetRepo) List(ctx context.Context) ([]store.Preset, error) {
	var presets []store.Preset
	err := r.db.SelectContext(ctx, &presets, `SELECT * FROM presets ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing presets: %w", err)
	}
	return presets, nil
}

func (r *PresetRepo) Update(ctx context.Context, p *store.Preset) error {
	p.UpdatedAt = r.clock.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE presets SET name = $1, tanks = $2, healers = $3, dps = $4, lootbuddies = $5, updated_at = $6
		 WHERE id = $7`,
		p.Name, p.Tanks, p.Healers, p.DPS, p.Lootbuddies, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating preset: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("preset %s: %w", p.ID, store.ErrNotFound)
	}
	return nil
}

func (r *PresetRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM presets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting preset: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("preset %s: %w", id, store.ErrNotFound)
	}
	return nil
}
