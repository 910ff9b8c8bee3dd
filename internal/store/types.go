package store

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors returned by the canonicalization functions.
var (
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	ErrInvalidLootType   = errors.New("invalid loot type")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidLockout    = errors.New("invalid lockout status")
)

// Difficulty is a raid difficulty. Only canonical values cross the store
// boundary.
type Difficulty string

const (
	DifficultyNormal Difficulty = "Normal"
	DifficultyHeroic Difficulty = "Heroic"
	DifficultyMythic Difficulty = "Mythic"
)

// ParseDifficulty canonicalizes a user-supplied difficulty string.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "nhc":
		return DifficultyNormal, nil
	case "heroic", "hc":
		return DifficultyHeroic, nil
	case "mythic":
		return DifficultyMythic, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
}

// LootType classifies how loot eligibility is consumed by a raid.
type LootType string

const (
	LootSaved     LootType = "saved"
	LootUnsaved   LootType = "unsaved"
	LootVIP       LootType = "vip"
	LootCommunity LootType = "community"
)

// ParseLootType canonicalizes a user-supplied loot type string.
func ParseLootType(s string) (LootType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saved":
		return LootSaved, nil
	case "unsaved":
		return LootUnsaved, nil
	case "vip":
		return LootVIP, nil
	case "community", "comm":
		return LootCommunity, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLootType, s)
}

// Blocking reports whether the loot type consumes a character's
// once-per-cycle-per-difficulty eligibility. Saved and community runs
// never block.
func (l LootType) Blocking() bool {
	return l == LootUnsaved || l == LootVIP
}

// Role is a signup role bucket.
type Role string

const (
	RoleTank      Role = "tank"
	RoleHealer    Role = "healer"
	RoleDPS       Role = "dps"
	RoleLootbuddy Role = "lootbuddy"
)

// Roles lists all roles in roster display order.
func Roles() []Role {
	return []Role{RoleTank, RoleHealer, RoleDPS, RoleLootbuddy}
}

// ParseRole canonicalizes a role string, accepting the aliases that show up
// in Discord input ("heal", "lb", "dd", plurals).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tank", "tanks":
		return RoleTank, nil
	case "healer", "healers", "heal":
		return RoleHealer, nil
	case "dps", "dd", "damage":
		return RoleDPS, nil
	case "lootbuddy", "lootbuddies", "lb":
		return RoleLootbuddy, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// LockoutStatus is a signup's self-reported lockout state.
type LockoutStatus string

const (
	LockoutSaved   LockoutStatus = "saved"
	LockoutUnsaved LockoutStatus = "unsaved"
)

// ParseLockout canonicalizes a lockout status string.
func ParseLockout(s string) (LockoutStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saved":
		return LockoutSaved, nil
	case "unsaved", "":
		return LockoutUnsaved, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLockout, s)
}

// Signup status labels.
const (
	StatusOpen   = "open"
	StatusPicked = "picked"
)
