// Package roster projects a raid's signups into the posted roster view.
// Everything here is pure: the projection is recomputed from the raid and
// its signup rows on every call.
package roster

import (
	"fmt"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// MissingSlot is the placeholder line shown for an unfilled capped slot.
const MissingSlot = "— Missing —"

// Entry is a single signup line in the roster view.
type Entry struct {
	SignupID string              `json:"signup_id"`
	UserName string              `json:"user_name"`
	Label    string              `json:"label"`
	Role     store.Role          `json:"role"`
	Lockout  store.LockoutStatus `json:"lockout"`
	Note     string              `json:"note,omitempty"`
}

// Group is all picked entries of one role plus the raid's capacity
// snapshot for it.
type Group struct {
	Role    store.Role `json:"role"`
	Cap     *int       `json:"cap,omitempty"`
	Entries []Entry    `json:"entries"`
}

// Missing returns how many capped slots are still unfilled, zero when
// uncapped or overfull.
func (g Group) Missing() int {
	if g.Cap == nil {
		return 0
	}
	if n := *g.Cap - len(g.Entries); n > 0 {
		return n
	}
	return 0
}

// View is the full projection: picked entries grouped by role in display
// order, and the open pool in signup order.
type View struct {
	Picked []Group `json:"picked"`
	Open   []Entry `json:"open"`
}

// Build projects the raid's signup rows into a View. Rows arrive in
// creation order and keep it within each bucket, so the projection is
// deterministic.
func Build(raid *store.Raid, rows []store.SignupDetail) View {
	byRole := make(map[store.Role][]Entry)
	var open []Entry

	for _, row := range rows {
		e := Entry{
			SignupID: row.ID,
			UserName: row.UserName,
			Label:    label(row),
			Role:     row.Role,
			Lockout:  row.Lockout,
			Note:     row.Note,
		}
		if row.Picked {
			byRole[row.Role] = append(byRole[row.Role], e)
		} else {
			open = append(open, e)
		}
	}

	view := View{Open: open}
	for _, role := range store.Roles() {
		view.Picked = append(view.Picked, Group{
			Role:    role,
			Cap:     raid.Cap(role),
			Entries: byRole[role],
		})
	}
	return view
}

// label resolves the display label: imported character name and class when
// the signup carries one, else the manually supplied class label.
func label(row store.SignupDetail) string {
	if row.CharacterName != nil {
		if row.CharacterClass != nil && *row.CharacterClass != "" {
			return fmt.Sprintf("%s (%s)", *row.CharacterName, *row.CharacterClass)
		}
		return *row.CharacterName
	}
	if row.ClassLabel != nil && *row.ClassLabel != "" {
		return *row.ClassLabel
	}
	return row.UserName
}

// Payload is the transport-agnostic shape of the posted roster message.
// The synchronizer adds the marker footer and maps it onto the concrete
// Discord embed.
type Payload struct {
	Title       string
	Description string
	Fields      []Field
}

// Field is one titled block of the roster message.
type Field struct {
	Name  string
	Value string
}

var roleTitles = map[store.Role]string{
	store.RoleTank:      "Tanks",
	store.RoleHealer:    "Healers",
	store.RoleDPS:       "DPS",
	store.RoleLootbuddy: "Lootbuddies",
}

// BuildPayload renders the raid and its view into the posted message
// shape.
func BuildPayload(raid *store.Raid, view View) Payload {
	p := Payload{
		Title: raid.Title,
		Description: fmt.Sprintf("%s · %s · %s loot",
			raid.StartsAt.UTC().Format("Mon 02 Jan 2006 15:04 MST"),
			raid.Difficulty, raid.LootType),
	}
	if raid.Description != "" {
		p.Description += "\n" + raid.Description
	}

	for _, g := range view.Picked {
		name := roleTitles[g.Role]
		if g.Cap != nil {
			name = fmt.Sprintf("%s (%d/%d)", name, len(g.Entries), *g.Cap)
		} else {
			name = fmt.Sprintf("%s (%d)", name, len(g.Entries))
		}

		value := ""
		for _, e := range g.Entries {
			value += entryLine(e)
		}
		for i := 0; i < g.Missing(); i++ {
			value += MissingSlot + "\n"
		}
		if value == "" {
			value = "–\n"
		}
		p.Fields = append(p.Fields, Field{Name: name, Value: value})
	}

	if len(view.Open) > 0 {
		value := ""
		for _, e := range view.Open {
			value += entryLine(e)
		}
		p.Fields = append(p.Fields, Field{
			Name:  fmt.Sprintf("Open signups (%d)", len(view.Open)),
			Value: value,
		})
	}
	return p
}

func entryLine(e Entry) string {
	line := e.Label
	if e.Lockout == store.LockoutSaved {
		line += " [saved]"
	}
	if e.Note != "" {
		line += " · " + e.Note
	}
	return line + "\n"
}
