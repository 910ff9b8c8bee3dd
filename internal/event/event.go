package event

import (
	"encoding/json"
	"time"
)

// Type identifies an event kind.
type Type string

const (
	RaidCreated Type = "raid.created"
	RaidUpdated Type = "raid.updated"
	RaidDeleted Type = "raid.deleted"

	SignupCreated  Type = "signup.created"
	SignupPicked   Type = "signup.picked"
	SignupUnpicked Type = "signup.unpicked"
	SignupEvicted  Type = "signup.evicted"
	SignupRemoved  Type = "signup.removed"

	CharacterImported Type = "character.imported"
	RosterPublished   Type = "roster.published"
)

// Event represents a single audit event. The aggregate is the raid for
// raid/signup/roster events and the character for import events.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// RaidChangeData is the payload for raid lifecycle events.
type RaidChangeData struct {
	RaidID     string    `json:"raid_id"`
	Title      string    `json:"title"`
	StartsAt   time.Time `json:"starts_at"`
	Difficulty string    `json:"difficulty"`
	LootType   string    `json:"loot_type"`
	LeadID     string    `json:"lead_id"`
	ActorID    string    `json:"actor_id"`
}

// SignupChangeData is the payload for signup lifecycle events.
type SignupChangeData struct {
	SignupID    string `json:"signup_id"`
	RaidID      string `json:"raid_id"`
	UserID      string `json:"user_id"`
	CharacterID string `json:"character_id,omitempty"`
	Role        string `json:"role,omitempty"`
	// Reason records why a signup was evicted, e.g. the raid id that
	// displaced it.
	Reason string `json:"reason,omitempty"`
}

// CharacterImportedData is the payload for CharacterImported events.
type CharacterImportedData struct {
	CharacterID string `json:"character_id"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Realm       string `json:"realm"`
	Region      string `json:"region"`
}

// RosterPublishedData is the payload for RosterPublished events.
type RosterPublishedData struct {
	RaidID    string `json:"raid_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}
