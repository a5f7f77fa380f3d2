package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"snake-arena/internal/render"
	"snake-arena/internal/room"
	"snake-arena/internal/stats"
)

// RoomDirectory is the part of room.Directory the HTTP layer uses.
type RoomDirectory interface {
	Create(cfg room.Config) (*room.Room, error)
	Lookup(code string) (*room.Room, error)
	List() []room.Info
}

// StatsSource serves the cross-room leaderboard and match history. It may
// be nil, in which case those endpoints answer 503.
type StatsSource interface {
	Top(n int) []stats.RankedPlayer
	Player(name string) (stats.RankedPlayer, bool)
	Recent(n int) []stats.MatchRecord
}

// RouterConfig wires the REST surface. Only Rooms is required, which keeps
// the router cheap to stand up under httptest.
type RouterConfig struct {
	Rooms RoomDirectory
	Stats StatsSource

	// RateLimiter is shared with the caller when set. Otherwise one is built
	// from RateLimitConfig, falling back to DefaultRateLimitConfig.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to DefaultAllowedOrigins.
	CORSOrigins []string

	DisableLogging bool
}

type routerHandlers struct {
	rooms    RoomDirectory
	stats    StatsSource
	minimaps *render.Cache
}

// NewRouter builds the chi router: logging, panic recovery, request
// metrics, per-IP limiting and CORS, then the room and stats routes.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(requestMetrics)

	limiter := cfg.RateLimiter
	if limiter == nil {
		limits := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			limits = *cfg.RateLimitConfig
		}
		limiter = NewIPRateLimiter(limits)
	}
	r.Use(limiter.Middleware)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = DefaultAllowedOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		rooms:    cfg.Rooms,
		stats:    cfg.Stats,
		minimaps: render.NewCache(render.DefaultMaxImages),
	}

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.handleListRooms)
			r.Post("/", h.handleCreateRoom)
			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", h.handleGetRoom)
				r.Get("/state", h.handleGetRoomState)
				r.Get("/minimap.png", h.handleMinimap)
			})
		})

		r.Get("/leaderboard", h.handleLeaderboard)
		r.Get("/players/{name}", h.handlePlayer)
		r.Get("/matches/recent", h.handleRecentMatches)
	})

	return r
}
