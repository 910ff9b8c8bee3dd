package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// RaidRepo implements store.RaidRepository with sqlx.
type RaidRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewRaidRepo returns a new RaidRepo.
func NewRaidRepo(db *sqlx.DB, clk clock.Clock) *RaidRepo {
	return &RaidRepo{db: db, clock: clk}
}

func (r *RaidRepo) Create(ctx context.Context, raid *store.Raid) error {
	now := r.clock.Now().UTC()
	raid.CreatedAt = now
	raid.UpdatedAt = now
	query := `INSERT INTO raids
	            (title, starts_at, difficulty, loot_type, description, lead_id, channel_id,
	             cap_tanks, cap_healers, cap_dps, cap_lootbuddies, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	           RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		raid.Title, raid.StartsAt, raid.Difficulty, raid.LootType, raid.Description,
		raid.LeadID, raid.ChannelID,
		raid.CapTanks, raid.CapHealers, raid.CapDPS, raid.CapLootbuddies,
		raid.CreatedAt, raid.UpdatedAt,
	).Scan(&raid.ID)
	if err != nil {
		return fmt.Errorf("creating raid: %w", err)
	}
	return nil
}

func (r *RaidRepo) GetByID(ctx context.Context, id string) (*store.Raid, error) {
	var raid store.Raid
	err := r.db.GetContext(ctx, &raid, `SELECT * FROM raids WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "getting raid")
	}
	return &raid, nil
}

func (r *RaidRepo) List(ctx context.Context) ([]store.Raid, error) {
	var raids []store.Raid
	err := r.db.SelectContext(ctx, &raids, `SELECT * FROM raids ORDER BY starts_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing raids: %w", err)
	}
	return raids, nil
}

func (r *RaidRepo) ListUpcoming(ctx context.Context, from time.Time) ([]store.Raid, error) {
	var raids []store.Raid
	err := r.db.SelectContext(ctx, &raids,
		`SELECT * FROM raids WHERE starts_at >= $1 ORDER BY starts_at ASC`, from)
	if err != nil {
		return nil, fmt.Errorf("listing upcoming raids: %w", err)
	}
	return raids, nil
}

func (r *RaidRepo) Update(ctx context.Context, raid *store.Raid) error {
	raid.UpdatedAt = r.clock.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE raids
		   SET title = $1, starts_at = $2, difficulty = $3, loot_type = $4,
		       description = $5, lead_id = $6, channel_id = $7, updated_at = $8
		 WHERE id = $9`,
		raid.Title, raid.StartsAt, raid.Difficulty, raid.LootType,
		raid.Description, raid.LeadID, raid.ChannelID, raid.UpdatedAt, raid.ID,
	)
	if err != nil {
		return fmt.Errorf("updating raid: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("raid %s: %w", raid.ID, store.ErrNotFound)
	}
	return nil
}

func (r *RaidRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM raids WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting raid: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("raid %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetMessage persists the adopted or newly created roster message ids.
func (r *RaidRepo) SetMessage(ctx context.Context, id, channelID, messageID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE raids SET channel_id = $1, message_id = $2, updated_at = $3 WHERE id = $4`,
		channelID, messageID, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting raid message: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("raid %s: %w", id, store.ErrNotFound)
	}
	return nil
}
