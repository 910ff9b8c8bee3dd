package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// SignupRepo implements store.SignupRepository with sqlx.
type SignupRepo struct {
	db    *sqlx.DB
	clock clock.Clock
}

// NewSignupRepo returns a new SignupRepo.
func NewSignupRepo(db *sqlx.DB, clk clock.Clock) *SignupRepo {
	return &SignupRepo{db: db, clock: clk}
}

// Upsert inserts the signup. A prior signup by the same user in the same
// raid for the same character is replaced; the replacement always starts
// out unpicked.
func (r *SignupRepo) Upsert(ctx context.Context, s *store.Signup) error {
	now := r.clock.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.Picked = false
	s.Status = store.StatusOpen

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Replace semantics: drop the user's previous entry for this raid and
	// character slot before inserting the new one.
	if s.CharacterID != nil {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM signups WHERE raid_id = $1 AND user_id = $2 AND character_id = $3`,
			s.RaidID, s.UserID, s.CharacterID)
	} else {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM signups WHERE raid_id = $1 AND user_id = $2 AND character_id IS NULL`,
			s.RaidID, s.UserID)
	}
	if err != nil {
		return fmt.Errorf("replacing prior signup: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO signups
		   (raid_id, user_id, character_id, class_label, role, lockout, note, picked, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		s.RaidID, s.UserID, s.CharacterID, s.ClassLabel, s.Role, s.Lockout,
		s.Note, s.Picked, s.Status, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("inserting signup: %w", err)
	}

	return tx.Commit()
}

func (r *SignupRepo) GetByID(ctx context.Context, id string) (*store.Signup, error) {
	var s store.Signup
	err := r.db.GetContext(ctx, &s, `SELECT * FROM signups WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err, "getting signup")
	}
	return &s, nil
}

func (r *SignupRepo) ListByRaid(ctx context.Context, raidID string) ([]store.SignupDetail, error) {
	var rows []store.SignupDetail
	err := r.db.SelectContext(ctx, &rows,
		`SELECT s.*,
		        u.display_name AS user_name,
		        c.name AS character_name,
		        c.class AS character_class,
		        c.score AS character_score,
		        c.item_level AS character_item_level
		   FROM signups s
		   JOIN users u ON u.id = s.user_id
		   LEFT JOIN characters c ON c.id = s.character_id
		  WHERE s.raid_id = $1
		  ORDER BY s.created_at ASC`, raidID)
	if err != nil {
		return nil, fmt.Errorf("listing signups: %w", err)
	}
	return rows, nil
}

func (r *SignupRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM signups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting signup: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("signup %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// Unpick flips the signup back to open. A no-op on an already open signup.
func (r *SignupRepo) Unpick(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE signups SET picked = FALSE, status = $1, updated_at = $2 WHERE id = $3`,
		store.StatusOpen, r.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("unpicking signup: %w", err)
	}
	return nil
}

// CommitPick runs the pick mutation sequence in one transaction: unpick all
// other signups of the user in this raid, mark the target picked, and
// optionally evict the character's competing blocking signups in the same
// cycle. The partial unique index on (raid_id, user_id) WHERE picked turns
// a lost race into store.ErrPickRace instead of a double pick.
func (r *SignupRepo) CommitPick(ctx context.Context, p store.PickParams) (*store.PickOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.clock.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE signups SET picked = FALSE, status = $1, updated_at = $2
		  WHERE raid_id = $3 AND user_id = $4 AND id <> $5 AND picked`,
		store.StatusOpen, now, p.RaidID, p.UserID, p.SignupID,
	); err != nil {
		return nil, fmt.Errorf("unpicking competing signups: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE signups SET picked = TRUE, status = $1, updated_at = $2 WHERE id = $3`,
		store.StatusPicked, now, p.SignupID,
	)
	if err != nil {
		if uniqueViolation(err, "signups_one_pick_per_user_idx") {
			return nil, store.ErrPickRace
		}
		return nil, fmt.Errorf("picking signup: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("signup %s: %w", p.SignupID, store.ErrNotFound)
	}

	outcome := &store.PickOutcome{}

	// Cascading eviction: committing a character to a lockout-consuming
	// raid forfeits its competing blocking signups this cycle outright.
	if p.Evict && p.CharacterID != nil && p.LootType.Blocking() {
		rows, err := tx.QueryxContext(ctx,
			`DELETE FROM signups s
			  USING raids r
			  WHERE r.id = s.raid_id
			    AND s.character_id = $1
			    AND s.raid_id <> $2
			    AND r.difficulty = $3
			    AND r.loot_type IN ('unsaved', 'vip')
			    AND r.starts_at BETWEEN $4 AND $5
			  RETURNING s.raid_id`,
			p.CharacterID, p.RaidID, p.Difficulty, p.CycleStart, p.CycleEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("evicting competing signups: %w", err)
		}
		for rows.Next() {
			var raidID string
			if err := rows.Scan(&raidID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning evicted raid id: %w", err)
			}
			outcome.EvictedRaidIDs = append(outcome.EvictedRaidIDs, raidID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("evicting competing signups: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		// Deferred constraint checks can also fire at commit time.
		if uniqueViolation(err, "signups_one_pick_per_user_idx") {
			return nil, store.ErrPickRace
		}
		return nil, fmt.Errorf("committing pick: %w", err)
	}
	return outcome, nil
}

// PickedNear implements the time-window conflict query: picked signups of
// the user in other raids starting strictly less than window away.
func (r *SignupRepo) PickedNear(ctx context.Context, userID string, at time.Time, window time.Duration, excludeRaidID string) ([]store.PickedEntry, error) {
	var entries []store.PickedEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT s.id AS signup_id, s.user_id, r.id AS raid_id, r.starts_at, r.difficulty, r.loot_type
		   FROM signups s
		   JOIN raids r ON r.id = s.raid_id
		  WHERE s.user_id = $1
		    AND s.picked
		    AND r.id <> $2
		    AND ABS(EXTRACT(EPOCH FROM (r.starts_at - $3::timestamptz))) < $4
		  ORDER BY r.starts_at ASC`,
		userID, excludeRaidID, at, window.Seconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying time-window conflicts: %w", err)
	}
	return entries, nil
}

// PickedBlockingInCycle implements the loot-lockout conflict query.
func (r *SignupRepo) PickedBlockingInCycle(ctx context.Context, characterID string, difficulty store.Difficulty, cycleStart, cycleEnd time.Time, excludeRaidID string) ([]store.PickedEntry, error) {
	var entries []store.PickedEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT s.id AS signup_id, s.user_id, r.id AS raid_id, r.starts_at, r.difficulty, r.loot_type
		   FROM signups s
		   JOIN raids r ON r.id = s.raid_id
		  WHERE s.character_id = $1
		    AND s.picked
		    AND r.id <> $2
		    AND r.difficulty = $3
		    AND r.loot_type IN ('unsaved', 'vip')
		    AND r.starts_at BETWEEN $4 AND $5
		  ORDER BY r.starts_at ASC`,
		characterID, excludeRaidID, difficulty, cycleStart, cycleEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cycle-lockout conflicts: %w", err)
	}
	return entries, nil
}

// UserEntriesInRange returns all signups the given users hold in other raids
// starting inside [from, to], for the cycle-assignments view.
func (r *SignupRepo) UserEntriesInRange(ctx context.Context, userIDs []string, from, to time.Time, excludeRaidID string) ([]store.UserEntry, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`SELECT s.user_id, s.id AS signup_id, r.id AS raid_id, r.title, r.starts_at, s.picked
		   FROM signups s
		   JOIN raids r ON r.id = s.raid_id
		  WHERE s.user_id IN (?)
		    AND r.id <> ?
		    AND r.starts_at BETWEEN ? AND ?
		  ORDER BY r.starts_at ASC`,
		userIDs, excludeRaidID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("building assignments query: %w", err)
	}

	var entries []store.UserEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying user assignments: %w", err)
	}
	return entries, nil
}
