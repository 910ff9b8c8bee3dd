package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/clock"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/conflict"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// RaidService is the raid lifecycle surface used by the slash commands.
// Satisfied by *raidmgr.Manager.
type RaidService interface {
	Create(ctx context.Context, actor raidmgr.Actor, p raidmgr.CreateParams) (*store.Raid, error)
	ListUpcoming(ctx context.Context) ([]store.Raid, error)
	SignUp(ctx context.Context, p raidmgr.SignupParams) (*store.Signup, error)
	RemoveSignup(ctx context.Context, actor raidmgr.Actor, signupID string) error
	PostRoster(ctx context.Context, actor raidmgr.Actor, raidID string) (channelID, messageID string, err error)
}

// PickService moves signups on and off rosters. Satisfied by
// *picker.Manager.
type PickService interface {
	Pick(ctx context.Context, raidID, signupID string, replace bool) (*store.PickOutcome, error)
	Unpick(ctx context.Context, raidID, signupID string) error
}

// Handlers process Discord interactions.
type Handlers struct {
	raids      RaidService
	picks      PickService
	users      store.UserRepository
	signups    store.SignupRepository
	characters store.CharacterRepository
	presets    store.PresetRepository
	clock      clock.Clock
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewHandlers creates new command handlers.
func NewHandlers(raids RaidService, picks PickService, users store.UserRepository, signups store.SignupRepository, characters store.CharacterRepository, presets store.PresetRepository, clk clock.Clock, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		raids:      raids,
		picks:      picks,
		users:      users,
		signups:    signups,
		characters: characters,
		presets:    presets,
		clock:      clk,
		logger:     logger,
		tracer:     tp.Tracer("github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	difficultyChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Normal", Value: "normal"},
		{Name: "Heroic", Value: "heroic"},
		{Name: "Mythic", Value: "mythic"},
	}
	lootChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Saved", Value: "saved"},
		{Name: "Unsaved", Value: "unsaved"},
		{Name: "VIP", Value: "vip"},
		{Name: "Community", Value: "community"},
	}
	roleChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Tank", Value: "tank"},
		{Name: "Healer", Value: "healer"},
		{Name: "DPS", Value: "dps"},
		{Name: "Lootbuddy", Value: "lootbuddy"},
	}
	lockoutChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Unsaved", Value: "unsaved"},
		{Name: "Saved", Value: "saved"},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "raid-create",
			Description: "Schedule a raid (raidleads only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "datetime",
					Description: "Start time, e.g. \"2026-09-02 20:00\" or \"tomorrow at 8pm\"",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "difficulty",
					Description: "Raid difficulty",
					Required:    true,
					Choices:     difficultyChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "loot",
					Description: "Loot type",
					Required:    true,
					Choices:     lootChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "title",
					Description: "Raid title (defaults to difficulty, loot and date)",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "description",
					Description: "Extra info shown in the roster message",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "preset",
					Description: "Roster preset whose capacities to snapshot",
					Required:    false,
				},
			},
		},
		{
			Name:        "raid-list",
			Description: "List upcoming raids",
		},
		{
			Name:        "signup",
			Description: "Sign up for a raid",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "raid-id",
					Description: "Raid ID",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role",
					Description: "Role you sign up as",
					Required:    true,
					Choices:     roleChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "character",
					Description: "Name of one of your imported characters",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "class",
					Description: "Class label when signing up without a character",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "lockout",
					Description: "Lockout status (default: unsaved)",
					Required:    false,
					Choices:     lockoutChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "note",
					Description: "Note for the raidlead",
					Required:    false,
				},
			},
		},
		{
			Name:        "unsign",
			Description: "Withdraw your signup from a raid",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "raid-id",
					Description: "Raid ID",
					Required:    true,
				},
			},
		},
		{
			Name:        "pick",
			Description: "Pick a player's signup onto the roster (raidleads only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "raid-id",
					Description: "Raid ID",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Player whose signup to pick",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "replace",
					Description: "Evict their blocking picks elsewhere in this cycle",
					Required:    false,
				},
			},
		},
		{
			Name:        "unpick",
			Description: "Move a player's signup back to the open pool (raidleads only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "raid-id",
					Description: "Raid ID",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "player",
					Description: "Player whose signup to unpick",
					Required:    true,
				},
			},
		},
		{
			Name:        "roster",
			Description: "Post or refresh the raid's roster message (raidleads only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "raid-id",
					Description: "Raid ID",
					Required:    true,
				},
			},
		},
	}
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", i.ApplicationCommandData().Name)),
	)
	defer span.End()

	switch i.ApplicationCommandData().Name {
	case "raid-create":
		h.handleRaidCreate(ctx, s, i)
	case "raid-list":
		h.handleRaidList(ctx, s, i)
	case "signup":
		h.handleSignup(ctx, s, i)
	case "unsign":
		h.handleUnsign(ctx, s, i)
	case "pick":
		h.handlePick(ctx, s, i)
	case "unpick":
		h.handleUnpick(ctx, s, i)
	case "roster":
		h.handleRoster(ctx, s, i)
	default:
		respond(s, i, "Unknown command")
	}
}

func (h *Handlers) handleRaidCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	actor, err := h.resolveActor(ctx, i)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}

	startsAt, err := ParseDatetime(opts["datetime"].StringValue(), h.clock.Now())
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}

	params := raidmgr.CreateParams{
		StartsAt:   startsAt,
		Difficulty: opts["difficulty"].StringValue(),
		LootType:   opts["loot"].StringValue(),
	}
	if opt, ok := opts["title"]; ok {
		params.Title = opt.StringValue()
	}
	if opt, ok := opts["description"]; ok {
		params.Description = opt.StringValue()
	}
	if opt, ok := opts["preset"]; ok {
		preset, err := h.findPreset(ctx, opt.StringValue())
		if err != nil {
			respond(s, i, friendlyError(err))
			return
		}
		params.PresetID = &preset.ID
	}
	if i.ChannelID != "" {
		channelID := i.ChannelID
		params.ChannelID = &channelID
	}

	raid, err := h.raids.Create(ctx, actor, params)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	respond(s, i, fmt.Sprintf("Raid **%s** scheduled for %s (ID: `%s`)",
		raid.Title, raid.StartsAt.Format("Mon 02 Jan 15:04 MST"), raid.ID))
}

func (h *Handlers) handleRaidList(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	raids, err := h.raids.ListUpcoming(ctx)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	if len(raids) == 0 {
		respond(s, i, "No upcoming raids.")
		return
	}
	msg := "**Upcoming raids:**\n"
	for _, r := range raids {
		msg += fmt.Sprintf("`%s` %s — %s %s %s\n",
			r.ID, r.StartsAt.Format("Mon 02 Jan 15:04"), r.Title, r.Difficulty, r.LootType)
	}
	respond(s, i, msg)
}

func (h *Handlers) handleSignup(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	actor, err := h.resolveActor(ctx, i)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}

	params := raidmgr.SignupParams{
		RaidID: opts["raid-id"].StringValue(),
		UserID: actor.UserID,
		Role:   opts["role"].StringValue(),
	}
	if opt, ok := opts["lockout"]; ok {
		params.Lockout = opt.StringValue()
	}
	if opt, ok := opts["note"]; ok {
		params.Note = opt.StringValue()
	}
	if opt, ok := opts["class"]; ok {
		label := opt.StringValue()
		params.ClassLabel = &label
	}
	if opt, ok := opts["character"]; ok {
		char, err := h.findCharacter(ctx, actor.UserID, opt.StringValue())
		if err != nil {
			respond(s, i, friendlyError(err))
			return
		}
		params.CharacterID = &char.ID
	}

	su, err := h.raids.SignUp(ctx, params)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	respond(s, i, fmt.Sprintf("Signed up as **%s** for raid `%s`.", su.Role, su.RaidID))
}

func (h *Handlers) handleUnsign(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	actor, err := h.resolveActor(ctx, i)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	raidID := opts["raid-id"].StringValue()

	mine, err := h.userSignups(ctx, raidID, actor.UserID)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	if len(mine) == 0 {
		respond(s, i, "You are not signed up for that raid.")
		return
	}
	for _, su := range mine {
		if err := h.raids.RemoveSignup(ctx, actor, su.ID); err != nil {
			respond(s, i, friendlyError(err))
			return
		}
	}
	respond(s, i, fmt.Sprintf("Removed your signup from raid `%s`.", raidID))
}

func (h *Handlers) handlePick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	raidID := opts["raid-id"].StringValue()
	target := opts["player"].UserValue(s)

	replace := false
	if opt, ok := opts["replace"]; ok {
		replace = opt.BoolValue()
	}

	su, err := h.targetSignup(ctx, raidID, target.ID)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}

	outcome, err := h.picks.Pick(ctx, raidID, su.ID, replace)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	msg := fmt.Sprintf("Picked **%s** for raid `%s`.", target.Username, raidID)
	if len(outcome.EvictedRaidIDs) > 0 {
		msg += fmt.Sprintf(" Evicted their signup from: `%s`.", strings.Join(outcome.EvictedRaidIDs, "`, `"))
	}
	respond(s, i, msg)
}

func (h *Handlers) handleUnpick(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	raidID := opts["raid-id"].StringValue()
	target := opts["player"].UserValue(s)

	su, err := h.targetSignup(ctx, raidID, target.ID)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	if err := h.picks.Unpick(ctx, raidID, su.ID); err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	respond(s, i, fmt.Sprintf("Moved **%s** back to the open pool for raid `%s`.", target.Username, raidID))
}

func (h *Handlers) handleRoster(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	actor, err := h.resolveActor(ctx, i)
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}

	channelID, _, err := h.raids.PostRoster(ctx, actor, opts["raid-id"].StringValue())
	if err != nil {
		respond(s, i, friendlyError(err))
		return
	}
	respond(s, i, fmt.Sprintf("Roster posted to <#%s>.", channelID))
}

// resolveActor upserts the interaction's member as a user and derives their
// privileges. Server administrators count as elevated.
func (h *Handlers) resolveActor(ctx context.Context, i *discordgo.InteractionCreate) (raidmgr.Actor, error) {
	member := i.Member
	if member == nil || member.User == nil {
		return raidmgr.Actor{}, fmt.Errorf("interaction has no member")
	}

	name := member.Nick
	if name == "" {
		name = member.User.Username
	}
	u := &store.User{DiscordID: member.User.ID, DisplayName: name}
	if err := h.users.Upsert(ctx, u); err != nil {
		return raidmgr.Actor{}, err
	}

	return raidmgr.Actor{
		UserID:   u.ID,
		Raidlead: u.IsRaidlead,
		Elevated: member.Permissions&discordgo.PermissionAdministrator != 0,
	}, nil
}

// findCharacter matches one of the user's imported characters by name.
func (h *Handlers) findCharacter(ctx context.Context, userID, name string) (*store.Character, error) {
	chars, err := h.characters.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for idx := range chars {
		if strings.EqualFold(chars[idx].Name, name) {
			return &chars[idx], nil
		}
	}
	return nil, fmt.Errorf("character %q: %w", name, store.ErrNotFound)
}

// findPreset matches a roster preset by name.
func (h *Handlers) findPreset(ctx context.Context, name string) (*store.Preset, error) {
	presets, err := h.presets.List(ctx)
	if err != nil {
		return nil, err
	}
	for idx := range presets {
		if strings.EqualFold(presets[idx].Name, name) {
			return &presets[idx], nil
		}
	}
	return nil, fmt.Errorf("preset %q: %w", name, store.ErrNotFound)
}

// userSignups returns the user's signups for the raid.
func (h *Handlers) userSignups(ctx context.Context, raidID, userID string) ([]store.SignupDetail, error) {
	rows, err := h.signups.ListByRaid(ctx, raidID)
	if err != nil {
		return nil, err
	}
	var mine []store.SignupDetail
	for _, row := range rows {
		if row.UserID == userID {
			mine = append(mine, row)
		}
	}
	return mine, nil
}

// targetSignup resolves the Discord user's signup in the raid. When a user
// signed up with several characters the first entry wins.
func (h *Handlers) targetSignup(ctx context.Context, raidID, discordID string) (*store.Signup, error) {
	u, err := h.users.GetByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	mine, err := h.userSignups(ctx, raidID, u.ID)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, fmt.Errorf("signup of user %s in raid %s: %w", u.ID, raidID, store.ErrNotFound)
	}
	return &mine[0].Signup, nil
}

// friendlyError renders domain errors as messages a Discord user can act
// on.
func friendlyError(err error) string {
	var ce *conflict.Error
	switch {
	case errors.As(err, &ce):
		if ce.Kind == conflict.KindTimeWindow {
			return fmt.Sprintf("That player is already picked for raid `%s`, only %d minutes away. Unpick them there first.",
				ce.RaidID, ce.Minutes)
		}
		return fmt.Sprintf("That character is already picked for a blocking run this lockout cycle (raid `%s`). Re-run with `replace: true` to move them.",
			ce.RaidID)
	case errors.Is(err, store.ErrPickRace):
		return "Someone picked another of that player's signups at the same time. Check the roster and try again."
	case errors.Is(err, raidmgr.ErrNotAuthorized):
		return "You need the raidlead role for that."
	case errors.Is(err, raidmgr.ErrInvalidDatetime):
		return "I could not read that datetime. Try `2026-09-02 20:00` or `tomorrow at 8pm`."
	case errors.Is(err, raidmgr.ErrOutsideCycle):
		return "Raids can only be scheduled inside the current or next lockout cycle (Wednesday to Tuesday)."
	case errors.Is(err, store.ErrMythicSaved):
		return "Mythic raids cannot use saved loot."
	case errors.Is(err, store.ErrNotFound):
		return "Not found. Check the raid ID and that the player is signed up."
	case errors.Is(err, store.ErrInvalidRole), errors.Is(err, store.ErrInvalidLockout),
		errors.Is(err, store.ErrInvalidDifficulty), errors.Is(err, store.ErrInvalidLootType):
		return fmt.Sprintf("Invalid input: %s.", err)
	}
	return fmt.Sprintf("Something went wrong: %s", err)
}

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
