package api

import (
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snake-arena/internal/metrics"
)

const debugLoopbackAddr = "127.0.0.1:6060"

// ObservabilityConfig describes the operator-only listener.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string
	// AllowExternal keeps a non-loopback ListenAddr as given.
	AllowExternal bool

	BasicAuthUser string
	BasicAuthPass string

	// Rooms, when set, is dumped at /rooms.
	Rooms RoomDirectory
}

func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{Enabled: true, ListenAddr: debugLoopbackAddr}
}

// DebugHandler mounts profiling, Prometheus scraping, a liveness probe and
// an optional room dump.
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	r := chi.NewRouter()
	if cfg.BasicAuthUser != "" {
		r.Use(middleware.BasicAuth("debug", map[string]string{cfg.BasicAuthUser: cfg.BasicAuthPass}))
	}

	r.Mount("/debug", middleware.Profiler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})
	if cfg.Rooms != nil {
		r.Get("/rooms", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, cfg.Rooms.List())
		})
	}
	return r
}

// StartDebugServer listens in the background and returns the server for
// shutdown, or nil when disabled. Non-loopback addresses fall back to
// loopback unless AllowExternal is set.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}
	if !cfg.AllowExternal && !isLoopback(cfg.ListenAddr) {
		log.Printf("⚠️ Debug address %s is not loopback, using %s", cfg.ListenAddr, debugLoopbackAddr)
		cfg.ListenAddr = debugLoopbackAddr
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           DebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("📊 Debug endpoints on http://%s (pprof at /debug/pprof/, metrics at /metrics)", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server stopped: %v", err)
		}
	}()
	return srv
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// requestMetrics records every request under its route pattern so that
// /api/rooms/{code} is one series, not one per room.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordRequest(r.Method, endpoint, status, time.Since(began))
	})
}
