package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// ServerConfig wires the HTTP API and the WebSocket endpoint.
type ServerConfig struct {
	Hub             HubConfig
	RateLimitConfig *RateLimitConfig
	CORSOrigins     []string
	DisableLogging  bool
}

// Server owns the public listener: REST routes plus /ws.
type Server struct {
	router  *chi.Mux
	hub     *WebSocketHub
	limiter *IPRateLimiter

	mu   sync.Mutex
	http *http.Server
}

// NewServer builds the router and the hub. Nothing listens until Start.
// Use NewRouter directly to test the REST routes alone.
func NewServer(rooms RoomDirectory, statsSrc StatsSource, cfg ServerConfig) *Server {
	limits := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		limits = *cfg.RateLimitConfig
	}

	s := &Server{
		hub:     NewWebSocketHub(rooms, cfg.Hub),
		limiter: NewIPRateLimiter(limits),
	}
	s.router = NewRouter(RouterConfig{
		Rooms:          rooms,
		Stats:          statsSrc,
		RateLimiter:    s.limiter,
		CORSOrigins:    cfg.CORSOrigins,
		DisableLogging: cfg.DisableLogging,
	})
	s.router.Get("/ws", s.hub.HandleWebSocket)
	return s
}

// Start blocks serving addr. After Shutdown it returns http.ErrServerClosed.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	log.Printf("🌐 API listening on %s", addr)
	log.Printf("🐍 Join with ws://localhost%s/ws?room=CODE&name=you", addr)
	return srv.ListenAndServe()
}

func (s *Server) Router() http.Handler { return s.router }

// Hub exposes the WebSocket hub, mostly for tests.
func (s *Server) Hub() *WebSocketHub { return s.hub }

// Shutdown drains HTTP, drops every WebSocket session and stops the rate
// limiter sweep.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.hub.CloseAll()
	s.limiter.Stop()
	return err
}
