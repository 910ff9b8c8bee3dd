// Package raidmgr manages the raid lifecycle: creation with validation
// and preset snapshots, updates, deletion, signups, roster publishing.
package raidmgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/cycle"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/event"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

var (
	// ErrNotAuthorized is returned when the actor may not perform the
	// operation.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrOutsideCycle is returned when a raid datetime falls outside the
	// current or next lockout cycle.
	ErrOutsideCycle = errors.New("datetime outside current or next cycle")
	// ErrInvalidDatetime is returned for a missing or unparseable datetime.
	ErrInvalidDatetime = errors.New("invalid datetime")
)

// Actor identifies the caller and their privileges.
type Actor struct {
	UserID   string
	Raidlead bool
	Elevated bool
}

func (a Actor) privileged() bool { return a.Raidlead || a.Elevated }

// Notifier triggers background roster syncs. Implemented by the mirror.
type Notifier interface {
	Notify(raidIDs ...string)
}

// Syncer resolves and updates a raid's roster message synchronously.
// Implemented by the mirror.
type Syncer interface {
	Sync(ctx context.Context, raidID string) (channelID, messageID string, err error)
}

// CreateParams describes a new raid.
type CreateParams struct {
	Title       string
	StartsAt    time.Time
	Difficulty  string
	LootType    string
	Description string
	ChannelID   *string
	PresetID    *string
}

// UpdateParams describes a raid update. Zero-value fields keep their
// current value except Description, which is always written.
type UpdateParams struct {
	Title       string
	StartsAt    time.Time
	Difficulty  string
	LootType    string
	Description string
}

// Manager handles raid lifecycle operations.
type Manager struct {
	raids    store.RaidRepository
	signups  store.SignupRepository
	presets  store.PresetRepository
	events   event.Store
	notifier Notifier
	syncer   Syncer
	clock    clock.Clock
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewManager returns a new raid Manager.
func NewManager(raids store.RaidRepository, signups store.SignupRepository, presets store.PresetRepository, events event.Store, notifier Notifier, syncer Syncer, clk clock.Clock, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		raids:    raids,
		signups:  signups,
		presets:  presets,
		events:   events,
		notifier: notifier,
		syncer:   syncer,
		clock:    clk,
		logger:   logger,
		tracer:   tp.Tracer("github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"),
	}
}

// Create validates and stores a new raid led by the actor. The actor must
// be a raidlead or elevated. When a preset is given its capacities are
// snapshotted onto the raid; later preset edits never touch the raid.
func (m *Manager) Create(ctx context.Context, actor Actor, p CreateParams) (*store.Raid, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Create",
		trace.WithAttributes(attribute.String("actor_id", actor.UserID)),
	)
	defer span.End()

	if !actor.privileged() {
		return nil, ErrNotAuthorized
	}

	difficulty, lootType, err := m.validate(p.StartsAt, p.Difficulty, p.LootType)
	if err != nil {
		return nil, err
	}

	raid := &store.Raid{
		Title:       p.Title,
		StartsAt:    p.StartsAt.UTC(),
		Difficulty:  difficulty,
		LootType:    lootType,
		Description: p.Description,
		LeadID:      actor.UserID,
		ChannelID:   p.ChannelID,
	}
	if raid.Title == "" {
		raid.Title = autoTitle(raid.StartsAt, difficulty, lootType)
	}

	if p.PresetID != nil && *p.PresetID != "" {
		preset, err := m.presets.GetByID(ctx, *p.PresetID)
		if err != nil {
			return nil, fmt.Errorf("loading preset: %w", err)
		}
		raid.CapTanks = &preset.Tanks
		raid.CapHealers = &preset.Healers
		raid.CapDPS = &preset.DPS
		raid.CapLootbuddies = &preset.Lootbuddies
	}

	if err := m.raids.Create(ctx, raid); err != nil {
		return nil, err
	}

	m.appendRaidEvent(ctx, event.RaidCreated, raid, actor.UserID)
	m.logger.InfoContext(ctx, "raid created",
		slog.String("raid_id", raid.ID),
		slog.String("title", raid.Title),
		slog.Time("starts_at", raid.StartsAt),
	)
	m.notifier.Notify(raid.ID)
	return raid, nil
}

// Update edits a raid. Only the owning lead or an elevated actor may
// update it.
func (m *Manager) Update(ctx context.Context, actor Actor, raidID string, p UpdateParams) (*store.Raid, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Update",
		trace.WithAttributes(attribute.String("raid_id", raidID)),
	)
	defer span.End()

	raid, err := m.authorized(ctx, actor, raidID)
	if err != nil {
		return nil, err
	}

	if p.Title != "" {
		raid.Title = p.Title
	}
	if !p.StartsAt.IsZero() {
		raid.StartsAt = p.StartsAt.UTC()
	}
	if p.Difficulty != "" {
		raid.Difficulty, err = store.ParseDifficulty(p.Difficulty)
		if err != nil {
			return nil, err
		}
	}
	if p.LootType != "" {
		raid.LootType, err = store.ParseLootType(p.LootType)
		if err != nil {
			return nil, err
		}
	}
	raid.Description = p.Description

	if _, _, err := m.validate(raid.StartsAt, string(raid.Difficulty), string(raid.LootType)); err != nil {
		return nil, err
	}

	if err := m.raids.Update(ctx, raid); err != nil {
		return nil, err
	}

	m.appendRaidEvent(ctx, event.RaidUpdated, raid, actor.UserID)
	m.notifier.Notify(raid.ID)
	return raid, nil
}

// Delete removes a raid; its signups go with it through the FK cascade.
func (m *Manager) Delete(ctx context.Context, actor Actor, raidID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Delete",
		trace.WithAttributes(attribute.String("raid_id", raidID)),
	)
	defer span.End()

	raid, err := m.authorized(ctx, actor, raidID)
	if err != nil {
		return err
	}
	if err := m.raids.Delete(ctx, raidID); err != nil {
		return err
	}

	m.appendRaidEvent(ctx, event.RaidDeleted, raid, actor.UserID)
	m.logger.InfoContext(ctx, "raid deleted",
		slog.String("raid_id", raidID),
		slog.String("actor_id", actor.UserID),
	)
	return nil
}

// Get returns a raid by id.
func (m *Manager) Get(ctx context.Context, raidID string) (*store.Raid, error) {
	return m.raids.GetByID(ctx, raidID)
}

// List returns all raids.
func (m *Manager) List(ctx context.Context) ([]store.Raid, error) {
	return m.raids.List(ctx)
}

// ListUpcoming returns raids starting at or after now.
func (m *Manager) ListUpcoming(ctx context.Context) ([]store.Raid, error) {
	return m.raids.ListUpcoming(ctx, m.clock.Now().UTC())
}

// SignupParams describes a signup upsert.
type SignupParams struct {
	RaidID      string
	UserID      string
	CharacterID *string
	ClassLabel  *string
	Role        string
	Lockout     string
	Note        string
}

// SignUp upserts the user's signup for the raid. Re-signing with the same
// character replaces the previous entry and resets it to open.
func (m *Manager) SignUp(ctx context.Context, p SignupParams) (*store.Signup, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.SignUp",
		trace.WithAttributes(
			attribute.String("raid_id", p.RaidID),
			attribute.String("user_id", p.UserID),
		),
	)
	defer span.End()

	role, err := store.ParseRole(p.Role)
	if err != nil {
		return nil, err
	}
	lockout, err := store.ParseLockout(p.Lockout)
	if err != nil {
		return nil, err
	}
	if _, err := m.raids.GetByID(ctx, p.RaidID); err != nil {
		return nil, err
	}

	su := &store.Signup{
		RaidID:      p.RaidID,
		UserID:      p.UserID,
		CharacterID: p.CharacterID,
		ClassLabel:  p.ClassLabel,
		Role:        role,
		Lockout:     lockout,
		Note:        p.Note,
	}
	if err := m.signups.Upsert(ctx, su); err != nil {
		return nil, err
	}

	m.appendSignupEvent(ctx, event.SignupCreated, su)
	m.notifier.Notify(p.RaidID)
	return su, nil
}

// RemoveSignup deletes a signup. The signup's owner, a raidlead, or an
// elevated actor may remove it.
func (m *Manager) RemoveSignup(ctx context.Context, actor Actor, signupID string) error {
	ctx, span := m.tracer.Start(ctx, "Manager.RemoveSignup",
		trace.WithAttributes(attribute.String("signup_id", signupID)),
	)
	defer span.End()

	su, err := m.signups.GetByID(ctx, signupID)
	if err != nil {
		return err
	}
	if su.UserID != actor.UserID && !actor.privileged() {
		return ErrNotAuthorized
	}
	if err := m.signups.Delete(ctx, signupID); err != nil {
		return err
	}

	m.appendSignupEvent(ctx, event.SignupRemoved, su)
	m.notifier.Notify(su.RaidID)
	return nil
}

// PostRoster publishes or refreshes the raid's roster message and records
// the publication.
func (m *Manager) PostRoster(ctx context.Context, actor Actor, raidID string) (channelID, messageID string, err error) {
	ctx, span := m.tracer.Start(ctx, "Manager.PostRoster",
		trace.WithAttributes(attribute.String("raid_id", raidID)),
	)
	defer span.End()

	if !actor.privileged() {
		return "", "", ErrNotAuthorized
	}

	channelID, messageID, err = m.syncer.Sync(ctx, raidID)
	if err != nil {
		return "", "", err
	}

	data, _ := json.Marshal(event.RosterPublishedData{
		RaidID:    raidID,
		ChannelID: channelID,
		MessageID: messageID,
	})
	evt := event.Event{
		AggregateID: raidID,
		Type:        event.RosterPublished,
		Data:        data,
		Version:     0,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append roster published event", slog.Any("error", err))
	}
	return channelID, messageID, nil
}

// authorized loads the raid and checks the actor may modify it.
func (m *Manager) authorized(ctx context.Context, actor Actor, raidID string) (*store.Raid, error) {
	raid, err := m.raids.GetByID(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if raid.LeadID != actor.UserID && !actor.Elevated {
		return nil, ErrNotAuthorized
	}
	return raid, nil
}

// validate canonicalizes difficulty and loot type and checks the shared
// raid invariants.
func (m *Manager) validate(startsAt time.Time, difficulty, lootType string) (store.Difficulty, store.LootType, error) {
	if startsAt.IsZero() {
		return "", "", ErrInvalidDatetime
	}
	diff, err := store.ParseDifficulty(difficulty)
	if err != nil {
		return "", "", err
	}
	loot, err := store.ParseLootType(lootType)
	if err != nil {
		return "", "", err
	}
	if diff == store.DifficultyMythic && loot == store.LootSaved {
		return "", "", store.ErrMythicSaved
	}
	if !cycle.WithinCurrentOrNext(m.clock.Now(), startsAt) {
		return "", "", ErrOutsideCycle
	}
	return diff, loot, nil
}

func autoTitle(startsAt time.Time, difficulty store.Difficulty, lootType store.LootType) string {
	return fmt.Sprintf("%s %s · %s", difficulty, lootType, startsAt.Format("Mon 02 Jan 15:04"))
}

func (m *Manager) appendRaidEvent(ctx context.Context, typ event.Type, raid *store.Raid, actorID string) {
	data, _ := json.Marshal(event.RaidChangeData{
		RaidID:     raid.ID,
		Title:      raid.Title,
		StartsAt:   raid.StartsAt,
		Difficulty: string(raid.Difficulty),
		LootType:   string(raid.LootType),
		LeadID:     raid.LeadID,
		ActorID:    actorID,
	})
	evt := event.Event{
		AggregateID: raid.ID,
		Type:        typ,
		Data:        data,
		Version:     0,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append raid event",
			slog.String("type", string(typ)), slog.Any("error", err))
	}
}

func (m *Manager) appendSignupEvent(ctx context.Context, typ event.Type, su *store.Signup) {
	characterID := ""
	if su.CharacterID != nil {
		characterID = *su.CharacterID
	}
	data, _ := json.Marshal(event.SignupChangeData{
		SignupID:    su.ID,
		RaidID:      su.RaidID,
		UserID:      su.UserID,
		CharacterID: characterID,
		Role:        string(su.Role),
	})
	evt := event.Event{
		AggregateID: su.RaidID,
		Type:        typ,
		Data:        data,
		Version:     0,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append signup event",
			slog.String("type", string(typ)), slog.Any("error", err))
	}
}
