// Package picker moves signups between the open pool and the picked
// roster while keeping the conflict rules intact.
package picker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/cycle"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/event"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// ConflictChecker is the conflict surface the picker needs. Satisfied by
// *conflict.Evaluator.
type ConflictChecker interface {
	CheckTimeWindow(ctx context.Context, userID string, raid *store.Raid) error
	CheckCycleLockout(ctx context.Context, characterID *string, raid *store.Raid) error
}

// RosterNotifier is told which raids need their posted roster refreshed.
// Implementations must not block.
type RosterNotifier interface {
	Notify(raidIDs ...string)
}

// Manager handles pick and unpick operations.
type Manager struct {
	raids    store.RaidRepository
	signups  store.SignupRepository
	checker  ConflictChecker
	events   event.Store
	notifier RosterNotifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewManager returns a new pick Manager.
func NewManager(raids store.RaidRepository, signups store.SignupRepository, checker ConflictChecker, events event.Store, notifier RosterNotifier, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		raids:    raids,
		signups:  signups,
		checker:  checker,
		events:   events,
		notifier: notifier,
		logger:   logger,
		tracer:   tp.Tracer("github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/picker"),
	}
}

// Pick promotes the signup onto the raid's roster. A conflicting pick in
// another raid rejects the operation; when replace is true a cycle-lockout
// conflict is resolved by evicting the competing blocking signups instead.
// Picking an already picked signup is a no-op.
func (m *Manager) Pick(ctx context.Context, raidID, signupID string, replace bool) (*store.PickOutcome, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Pick",
		trace.WithAttributes(
			attribute.String("raid_id", raidID),
			attribute.String("signup_id", signupID),
			attribute.Bool("replace", replace),
		),
	)
	defer span.End()

	raid, err := m.raids.GetByID(ctx, raidID)
	if err != nil {
		return nil, err
	}
	// The schema forbids this combination; re-check in case the raid row
	// predates the constraint.
	if raid.Difficulty == store.DifficultyMythic && raid.LootType == store.LootSaved {
		return nil, store.ErrMythicSaved
	}
	su, err := m.signups.GetByID(ctx, signupID)
	if err != nil {
		return nil, err
	}
	if su.RaidID != raidID {
		return nil, fmt.Errorf("signup %s does not belong to raid %s: %w", signupID, raidID, store.ErrNotFound)
	}
	if su.Picked {
		return &store.PickOutcome{}, nil
	}

	if err := m.checker.CheckTimeWindow(ctx, su.UserID, raid); err != nil {
		return nil, err
	}

	evict := false
	if err := m.checker.CheckCycleLockout(ctx, su.CharacterID, raid); err != nil {
		var ce *conflict.Error
		if !replace || !errors.As(err, &ce) || ce.Kind != conflict.KindCycleLockout {
			return nil, err
		}
		evict = true
	}

	start, end := cycle.Bounds(raid.StartsAt)
	outcome, err := m.signups.CommitPick(ctx, store.PickParams{
		SignupID:    signupID,
		RaidID:      raidID,
		UserID:      su.UserID,
		CharacterID: su.CharacterID,
		Difficulty:  raid.Difficulty,
		LootType:    raid.LootType,
		CycleStart:  start,
		CycleEnd:    end,
		Evict:       evict,
	})
	if err != nil {
		return nil, err
	}

	m.appendSignupEvent(ctx, event.SignupPicked, raidID, su, "")
	for _, evictedRaidID := range outcome.EvictedRaidIDs {
		m.appendSignupEvent(ctx, event.SignupEvicted, evictedRaidID, su, raidID)
	}

	m.logger.InfoContext(ctx, "signup picked",
		slog.String("raid_id", raidID),
		slog.String("signup_id", signupID),
		slog.Int("evicted", len(outcome.EvictedRaidIDs)),
	)

	m.notifier.Notify(append(outcome.EvictedRaidIDs, raidID)...)
	return outcome, nil
}

// Unpick returns the signup to the open pool. Unpicking an open signup is
// a no-op.
func (m *Manager) Unpick(ctx context.Context, raidID, signupID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Unpick",
		trace.WithAttributes(
			attribute.String("raid_id", raidID),
			attribute.String("signup_id", signupID),
		),
	)
	defer span.End()

	su, err := m.signups.GetByID(ctx, signupID)
	if err != nil {
		return err
	}
	if su.RaidID != raidID {
		return fmt.Errorf("signup %s does not belong to raid %s: %w", signupID, raidID, store.ErrNotFound)
	}

	wasPicked := su.Picked
	if err := m.signups.Unpick(ctx, signupID); err != nil {
		return err
	}
	if !wasPicked {
		return nil
	}

	m.appendSignupEvent(ctx, event.SignupUnpicked, raidID, su, "")
	m.logger.InfoContext(ctx, "signup unpicked",
		slog.String("raid_id", raidID),
		slog.String("signup_id", signupID),
	)
	m.notifier.Notify(raidID)
	return nil
}

// Toggle sets the signup's picked state, routing through Pick or Unpick.
func (m *Manager) Toggle(ctx context.Context, raidID, signupID string, picked, replace bool) (*store.PickOutcome, error) {
	if picked {
		return m.Pick(ctx, raidID, signupID, replace)
	}
	return &store.PickOutcome{}, m.Unpick(ctx, raidID, signupID)
}

func (m *Manager) appendSignupEvent(ctx context.Context, typ event.Type, raidID string, su *store.Signup, reason string) {
	characterID := ""
	if su.CharacterID != nil {
		characterID = *su.CharacterID
	}
	data, _ := json.Marshal(event.SignupChangeData{
		SignupID:    su.ID,
		RaidID:      raidID,
		UserID:      su.UserID,
		CharacterID: characterID,
		Role:        string(su.Role),
		Reason:      reason,
	})
	evt := event.Event{
		AggregateID: raidID,
		Type:        typ,
		Data:        data,
		Version:     0,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append signup event",
			slog.String("type", string(typ)), slog.Any("error", err))
	}
}
