// Package api exposes the raid, signup, pick, character, preset and user
// operations over an authenticated JSON HTTP API.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/config"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/raidmgr"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store"
)

// PickService moves signups on and off rosters. Satisfied by
// *picker.Manager.
type PickService interface {
	Pick(ctx context.Context, raidID, signupID string, replace bool) (*store.PickOutcome, error)
	Unpick(ctx context.Context, raidID, signupID string) error
}

// RaidService handles the raid lifecycle. Satisfied by *raidmgr.Manager.
type RaidService interface {
	Create(ctx context.Context, actor raidmgr.Actor, p raidmgr.CreateParams) (*store.Raid, error)
	Update(ctx context.Context, actor raidmgr.Actor, raidID string, p raidmgr.UpdateParams) (*store.Raid, error)
	Delete(ctx context.Context, actor raidmgr.Actor, raidID string) error
	Get(ctx context.Context, raidID string) (*store.Raid, error)
	List(ctx context.Context) ([]store.Raid, error)
	SignUp(ctx context.Context, p raidmgr.SignupParams) (*store.Signup, error)
	RemoveSignup(ctx context.Context, actor raidmgr.Actor, signupID string) error
	PostRoster(ctx context.Context, actor raidmgr.Actor, raidID string) (channelID, messageID string, err error)
}

// CharacterService handles character import and removal. Satisfied by
// *armory.Manager.
type CharacterService interface {
	Import(ctx context.Context, userID, region, realm, name string) (*store.Character, error)
	Remove(ctx context.Context, characterID, callerID string, elevated bool) error
	ListByUser(ctx context.Context, userID string) ([]store.Character, error)
}

// Server is the HTTP API.
type Server struct {
	jwtSecret string
	picks     PickService
	raids     RaidService
	chars     CharacterService
	signups   store.SignupRepository
	users     store.UserRepository
	presets   store.PresetRepository
	logger    *slog.Logger
}

// New returns a Server wired to the given services and repositories.
func New(cfg config.APIConfig, picks PickService, raids RaidService, chars CharacterService, signups store.SignupRepository, users store.UserRepository, presets store.PresetRepository, logger *slog.Logger) *Server {
	return &Server{
		jwtSecret: cfg.JWTSecret,
		picks:     picks,
		raids:     raids,
		chars:     chars,
		signups:   signups,
		users:     users,
		presets:   presets,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes behind the session
// middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Route("/raids", func(r chi.Router) {
			r.Get("/", s.handleListRaids)
			r.Post("/", s.handleCreateRaid)

			r.Route("/{raidID}", func(r chi.Router) {
				r.Get("/", s.handleGetRaid)
				r.Put("/", s.handleUpdateRaid)
				r.Delete("/", s.handleDeleteRaid)

				r.Post("/pick", s.handlePick)
				r.Post("/unpick", s.handleUnpick)
				r.Get("/signups", s.handleListSignups)
				r.Get("/cycle-assignments", s.handleCycleAssignments)
				r.Post("/post-roster", s.handlePostRoster)
				r.Post("/publish", s.handlePostRoster)
				r.Post("/publish-template", s.handlePostRoster)
				r.Post("/signups", s.handleSignUp)
			})
		})

		r.Route("/signups/{signupID}", func(r chi.Router) {
			r.Post("/toggle-picked", s.handleTogglePicked)
			r.Delete("/", s.handleRemoveSignup)
		})

		r.Route("/characters", func(r chi.Router) {
			r.Get("/", s.handleListCharacters)
			r.Post("/", s.handleImportCharacter)
			r.Delete("/{characterID}", s.handleRemoveCharacter)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Post("/", s.handleCreatePreset)
			r.Get("/{presetID}", s.handleGetPreset)
			r.Put("/{presetID}", s.handleUpdatePreset)
			r.Delete("/{presetID}", s.handleDeletePreset)
		})

		r.Get("/users", s.handleListUsers)
	})

	return r
}

// actor converts the request session into a manager actor.
func actor(r *http.Request) raidmgr.Actor {
	session, _ := SessionFromContext(r.Context())
	return raidmgr.Actor{
		UserID:   session.UserID,
		Raidlead: session.Raidlead,
		Elevated: session.Elevated,
	}
}
