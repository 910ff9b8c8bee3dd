// Package armory manages imported characters: import and refresh through
// Raider.IO, ownership-checked removal.
package armory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/event"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raiderio"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// ErrNotOwner is returned when a user tries to remove a character they do
// not own.
var ErrNotOwner = fmt.Errorf("character belongs to another user")

// ProfileFetcher is the Raider.IO surface the armory needs. Satisfied by
// *raiderio.Client.
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, region, realm, name string) (*raiderio.Profile, error)
}

// Manager handles character operations.
type Manager struct {
	characters store.CharacterRepository
	fetcher    ProfileFetcher
	events     event.Store
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewManager returns a new armory Manager.
func NewManager(characters store.CharacterRepository, fetcher ProfileFetcher, events event.Store, logger *slog.Logger, tp trace.TracerProvider) *Manager {
	return &Manager{
		characters: characters,
		fetcher:    fetcher,
		events:     events,
		logger:     logger,
		tracer:     tp.Tracer("github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/armory"),
	}
}

// Import fetches the character from Raider.IO and stores it for the user.
func (m *Manager) Import(ctx context.Context, userID, region, realm, name string) (*store.Character, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Import",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.String("character", name),
		),
	)
	defer span.End()

	region = strings.ToLower(strings.TrimSpace(region))
	realm = strings.TrimSpace(realm)
	name = strings.TrimSpace(name)
	if region == "" || realm == "" || name == "" {
		return nil, fmt.Errorf("region, realm and name are required")
	}

	p, err := m.fetcher.FetchProfile(ctx, region, realm, name)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	c := &store.Character{
		UserID:     userID,
		Name:       p.Name,
		Realm:      p.Realm,
		Region:     region,
		Class:      p.Class,
		Spec:       p.Spec,
		ItemLevel:  p.ItemLevel,
		Score:      p.Score,
		ProfileURL: p.ProfileURL,
	}
	if err := m.characters.Create(ctx, c); err != nil {
		return nil, err
	}

	data, _ := json.Marshal(event.CharacterImportedData{
		CharacterID: c.ID,
		UserID:      userID,
		Name:        c.Name,
		Realm:       c.Realm,
		Region:      c.Region,
	})
	evt := event.Event{
		AggregateID: c.ID,
		Type:        event.CharacterImported,
		Data:        data,
		Version:     1,
	}
	if err := m.events.Append(ctx, evt); err != nil {
		m.logger.ErrorContext(ctx, "failed to append character imported event", slog.Any("error", err))
	}

	m.logger.InfoContext(ctx, "character imported",
		slog.String("character_id", c.ID),
		slog.String("name", c.Name),
		slog.String("realm", c.Realm),
	)
	return c, nil
}

// Refresh re-fetches the character's profile and updates the stored copy.
func (m *Manager) Refresh(ctx context.Context, characterID string) (*store.Character, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.Refresh",
		trace.WithAttributes(attribute.String("character_id", characterID)),
	)
	defer span.End()

	c, err := m.characters.GetByID(ctx, characterID)
	if err != nil {
		return nil, err
	}
	p, err := m.fetcher.FetchProfile(ctx, c.Region, c.Realm, c.Name)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}

	c.Class = p.Class
	c.Spec = p.Spec
	c.ItemLevel = p.ItemLevel
	c.Score = p.Score
	c.ProfileURL = p.ProfileURL
	if err := m.characters.UpdateProfile(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Remove deletes a character. Only the owner or an elevated caller may
// remove it.
func (m *Manager) Remove(ctx context.Context, characterID, callerID string, elevated bool) error {
	ctx, span := m.tracer.Start(ctx, "Manager.Remove",
		trace.WithAttributes(attribute.String("character_id", characterID)),
	)
	defer span.End()

	c, err := m.characters.GetByID(ctx, characterID)
	if err != nil {
		return err
	}
	if c.UserID != callerID && !elevated {
		return ErrNotOwner
	}
	if err := m.characters.Delete(ctx, characterID); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "character removed",
		slog.String("character_id", characterID),
		slog.String("caller_id", callerID),
	)
	return nil
}

// ListByUser returns the user's imported characters.
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]store.Character, error) {
	ctx, span := m.tracer.Start(ctx, "Manager.ListByUser")
	defer span.End()

	return m.characters.ListByUser(ctx, userID)
}
