// Package conflict decides whether a pick would double-book a raider or
// burn a loot lockout twice in the same reset.
package conflict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/cycle"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// Window is how close two picked raid starts may be before they count as
// overlapping. Exactly Window apart is allowed.
const Window = 90 * time.Minute

// Conflict kinds, also used as API error codes.
const (
	KindTimeWindow   = "time_window_conflict"
	KindCycleLockout = "already_picked_this_cycle"
)

// Error describes a rejected pick. Kind is one of the constants above;
// RaidID and StartsAt identify the raid already holding the slot. Minutes
// is the start-time distance and only set for time-window conflicts.
type Error struct {
	Kind     string
	RaidID   string
	StartsAt time.Time
	Minutes  int
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeWindow:
		return fmt.Sprintf("picked in raid %s only %d minutes away", e.RaidID, e.Minutes)
	case KindCycleLockout:
		return fmt.Sprintf("character already picked for a blocking raid %s this cycle", e.RaidID)
	default:
		return e.Kind
	}
}

// Evaluator answers conflict questions against the signup store.
type Evaluator struct {
	signups store.SignupRepository
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewEvaluator returns an Evaluator over the given signup repository.
func NewEvaluator(signups store.SignupRepository, logger *slog.Logger, tp trace.TracerProvider) *Evaluator {
	return &Evaluator{
		signups: signups,
		logger:  logger,
		tracer:  tp.Tracer("github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"),
	}
}

// CheckTimeWindow rejects the pick when the user is already picked in
// another raid starting strictly less than Window away from raid.
func (e *Evaluator) CheckTimeWindow(ctx context.Context, userID string, raid *store.Raid) error {
	ctx, span := e.tracer.Start(ctx, "conflict.CheckTimeWindow")
	defer span.End()

	entries, err := e.signups.PickedNear(ctx, userID, raid.StartsAt, Window, raid.ID)
	if err != nil {
		return fmt.Errorf("checking time window: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	// Entries arrive ordered by start time; report the one with the
	// smallest gap, not the earliest.
	nearest := entries[0]
	gap := absGap(raid.StartsAt, nearest.StartsAt)
	for _, entry := range entries[1:] {
		if g := absGap(raid.StartsAt, entry.StartsAt); g < gap {
			nearest, gap = entry, g
		}
	}
	e.logger.InfoContext(ctx, "time window conflict",
		slog.String("user_id", userID),
		slog.String("raid_id", raid.ID),
		slog.String("conflicting_raid_id", nearest.RaidID),
		slog.Int("minutes", int(gap.Minutes())),
	)
	return &Error{
		Kind:     KindTimeWindow,
		RaidID:   nearest.RaidID,
		StartsAt: nearest.StartsAt,
		Minutes:  int(gap.Minutes()),
	}
}

func absGap(a, b time.Time) time.Duration {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// CheckCycleLockout rejects the pick when the character is already picked
// for another lockout-consuming raid of the same difficulty in the raid's
// reset cycle. Signups without a character, and raids whose loot type does
// not consume a lockout, never conflict.
func (e *Evaluator) CheckCycleLockout(ctx context.Context, characterID *string, raid *store.Raid) error {
	ctx, span := e.tracer.Start(ctx, "conflict.CheckCycleLockout")
	defer span.End()

	if characterID == nil || !raid.LootType.Blocking() {
		return nil
	}

	start, end := cycle.Bounds(raid.StartsAt)
	entries, err := e.signups.PickedBlockingInCycle(ctx, *characterID, raid.Difficulty, start, end, raid.ID)
	if err != nil {
		return fmt.Errorf("checking cycle lockout: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	e.logger.InfoContext(ctx, "cycle lockout conflict",
		slog.String("character_id", *characterID),
		slog.String("raid_id", raid.ID),
		slog.String("conflicting_raid_id", entries[0].RaidID),
	)
	return &Error{
		Kind:     KindCycleLockout,
		RaidID:   entries[0].RaidID,
		StartsAt: entries[0].StartsAt,
	}
}
