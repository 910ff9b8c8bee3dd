package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all store drivers.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPickRace is returned when the partial unique index rejects a pick
	// because a concurrent request already picked another signup for the
	// same user and raid.
	ErrPickRace = errors.New("another signup is already picked for this user and raid")
	// ErrDuplicate is returned when a unique constraint rejects an insert,
	// e.g. importing the same character twice.
	ErrDuplicate = errors.New("already exists")
	// ErrMythicSaved is returned when a raid would combine Mythic difficulty
	// with the saved loot type.
	ErrMythicSaved = errors.New("mythic raids cannot use saved loot")
)

// User is a Discord account known to the guild. Users are upserted on every
// login and never deleted.
type User struct {
	ID          string    `db:"id" json:"id"`
	DiscordID   string    `db:"discord_id" json:"discord_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	IsRaidlead  bool      `db:"is_raidlead" json:"is_raidlead"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Character is an imported WoW character owned by exactly one user.
type Character struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Name       string     `db:"name" json:"name"`
	Realm      string     `db:"realm" json:"realm"`
	Region     string     `db:"region" json:"region"`
	Class      string     `db:"class" json:"class"`
	Spec       string     `db:"spec" json:"spec"`
	ItemLevel  float64    `db:"item_level" json:"item_level"`
	Score      float64    `db:"score" json:"score"`
	ProfileURL string     `db:"profile_url" json:"profile_url"`
	SyncedAt   *time.Time `db:"synced_at" json:"synced_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Raid is a scheduled event. MessageID points at the single persisted
// Discord roster message; it is adopted or created by the mirror and then
// only ever edited in place.
type Raid struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	StartsAt    time.Time  `db:"starts_at" json:"starts_at"`
	Difficulty  Difficulty `db:"difficulty" json:"difficulty"`
	LootType    LootType   `db:"loot_type" json:"loot_type"`
	Description string     `db:"description" json:"description"`
	LeadID      string     `db:"lead_id" json:"lead_id"`
	ChannelID   *string    `db:"channel_id" json:"channel_id,omitempty"`
	MessageID   *string    `db:"message_id" json:"message_id,omitempty"`
	// Role capacities snapshotted from a preset at creation time. Nil means
	// uncapped.
	CapTanks       *int      `db:"cap_tanks" json:"cap_tanks,omitempty"`
	CapHealers     *int      `db:"cap_healers" json:"cap_healers,omitempty"`
	CapDPS         *int      `db:"cap_dps" json:"cap_dps,omitempty"`
	CapLootbuddies *int      `db:"cap_lootbuddies" json:"cap_lootbuddies,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Cap returns the capacity snapshot for a role, nil when uncapped.
func (r *Raid) Cap(role Role) *int {
	switch role {
	case RoleTank:
		return r.CapTanks
	case RoleHealer:
		return r.CapHealers
	case RoleDPS:
		return r.CapDPS
	case RoleLootbuddy:
		return r.CapLootbuddies
	}
	return nil
}

// Signup ties a user (and optionally one of their characters) to a raid.
// A lootbuddy signup may carry only ClassLabel instead of a character.
type Signup struct {
	ID          string        `db:"id" json:"id"`
	RaidID      string        `db:"raid_id" json:"raid_id"`
	UserID      string        `db:"user_id" json:"user_id"`
	CharacterID *string       `db:"character_id" json:"character_id,omitempty"`
	ClassLabel  *string       `db:"class_label" json:"class_label,omitempty"`
	Role        Role          `db:"role" json:"role"`
	Lockout     LockoutStatus `db:"lockout" json:"lockout"`
	Note        string        `db:"note" json:"note"`
	Picked      bool          `db:"picked" json:"picked"`
	Status      string        `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// SignupDetail is a signup row joined with its user and character for
// listing and roster projection.
type SignupDetail struct {
	Signup
	UserName       string   `db:"user_name" json:"user_name"`
	CharacterName  *string  `db:"character_name" json:"character_name,omitempty"`
	CharacterClass *string  `db:"character_class" json:"character_class,omitempty"`
	CharacterScore *float64 `db:"character_score" json:"character_score,omitempty"`
	CharacterIlvl  *float64 `db:"character_item_level" json:"character_item_level,omitempty"`
}

// Preset is a named tuple of role capacities used only as a template
// snapshot at raid creation time.
type Preset struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	Tanks       int       `db:"tanks" json:"tanks"`
	Healers     int       `db:"healers" json:"healers"`
	DPS         int       `db:"dps" json:"dps"`
	Lootbuddies int       `db:"lootbuddies" json:"lootbuddies"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PickedEntry is a picked signup joined with its raid, used by the
// conflict evaluator.
type PickedEntry struct {
	SignupID   string     `db:"signup_id"`
	RaidID     string     `db:"raid_id"`
	UserID     string     `db:"user_id"`
	StartsAt   time.Time  `db:"starts_at"`
	Difficulty Difficulty `db:"difficulty"`
	LootType   LootType   `db:"loot_type"`
}

// UserEntry is any signup of a user in some raid, used for the
// cycle-assignments view.
type UserEntry struct {
	UserID   string    `db:"user_id" json:"user_id"`
	SignupID string    `db:"signup_id" json:"signup_id"`
	RaidID   string    `db:"raid_id" json:"raid_id"`
	Title    string    `db:"title" json:"title"`
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
	Picked   bool      `db:"picked" json:"picked"`
}

// PickParams describes a pick commit. Evict authorizes the cascading
// eviction of blocking same-cycle signups of the same character.
type PickParams struct {
	SignupID    string
	RaidID      string
	UserID      string
	CharacterID *string
	Difficulty  Difficulty
	LootType    LootType
	CycleStart  time.Time
	CycleEnd    time.Time
	Evict       bool
}

// PickOutcome reports the side effects of a committed pick.
type PickOutcome struct {
	EvictedRaidIDs []string `json:"evicted_raid_ids,omitempty"`
}

// UserRepository defines user persistence operations.
type UserRepository interface {
	Upsert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*User, error)
	List(ctx context.Context) ([]User, error)
	SetRaidlead(ctx context.Context, id string, lead bool) error
}

// CharacterRepository defines character persistence operations.
type CharacterRepository interface {
	Create(ctx context.Context, c *Character) error
	GetByID(ctx context.Context, id string) (*Character, error)
	ListByUser(ctx context.Context, userID string) ([]Character, error)
	UpdateProfile(ctx context.Context, c *Character) error
	Delete(ctx context.Context, id string) error
}

// RaidRepository defines raid persistence operations.
type RaidRepository interface {
	Create(ctx context.Context, r *Raid) error
	GetByID(ctx context.Context, id string) (*Raid, error)
	List(ctx context.Context) ([]Raid, error)
	ListUpcoming(ctx context.Context, from time.Time) ([]Raid, error)
	Update(ctx context.Context, r *Raid) error
	Delete(ctx context.Context, id string) error
	SetMessage(ctx context.Context, id, channelID, messageID string) error
}

// SignupRepository defines signup persistence operations, including the
// transactional pick commit and the conflict queries.
type SignupRepository interface {
	// Upsert creates the signup, replacing any prior signup by the same
	// user for the same raid and character.
	Upsert(ctx context.Context, s *Signup) error
	GetByID(ctx context.Context, id string) (*Signup, error)
	ListByRaid(ctx context.Context, raidID string) ([]SignupDetail, error)
	Delete(ctx context.Context, id string) error

	// Unpick flips a signup back to open. It is idempotent.
	Unpick(ctx context.Context, id string) error

	// CommitPick atomically unpicks every other signup of the same user in
	// the same raid, marks the target picked, and (when p.Evict) deletes
	// every other blocking signup of the same character in the same cycle
	// and difficulty. A violation of the partial unique pick index is
	// reported as ErrPickRace.
	CommitPick(ctx context.Context, p PickParams) (*PickOutcome, error)

	// PickedNear returns other raids where the user holds a picked signup
	// starting strictly less than window away from at.
	PickedNear(ctx context.Context, userID string, at time.Time, window time.Duration, excludeRaidID string) ([]PickedEntry, error)

	// PickedBlockingInCycle returns other raids of the given difficulty and
	// a blocking loot type, inside [cycleStart, cycleEnd], where the
	// character holds a picked signup.
	PickedBlockingInCycle(ctx context.Context, characterID string, difficulty Difficulty, cycleStart, cycleEnd time.Time, excludeRaidID string) ([]PickedEntry, error)

	// UserEntriesInRange returns every signup the given users hold in other
	// raids starting inside [from, to].
	UserEntriesInRange(ctx context.Context, userIDs []string, from, to time.Time, excludeRaidID string) ([]UserEntry, error)
}

// PresetRepository defines preset persistence operations.
type PresetRepository interface {
	Create(ctx context.Context, p *Preset) error
	GetByID(ctx context.Context, id string) (*Preset, error)
	List(ctx context.Context) ([]Preset, error)
	Update(ctx context.Context, p *Preset) error
	Delete(ctx context.Context, id string) error
}
