package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"snake-arena/internal/api"
	"snake-arena/internal/config"
	"snake-arena/internal/room"
	"snake-arena/internal/stats"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	} else {
		log.Println("✅ Loaded environment from .env")
	}

	log.Println("🐍 ================================")
	log.Println("🐍  SNAKE ARENA")
	log.Println("🐍 ================================")

	appConfig := config.Load()
	gameCfg := appConfig.Game
	limits := appConfig.Limits

	log.Printf("🎮 Config: %d TPS, %ds countdown, %s reconnect grace",
		gameCfg.TickRate, gameCfg.CountdownSeconds, gameCfg.ReconnectGrace)
	log.Printf("🛡️ Resource limits: %d rooms, %d sockets (%d per IP), %.0f inputs/s",
		limits.MaxRooms, limits.MaxWSConnections, limits.MaxWSPerIP, limits.InputRate)

	statsSvc := stats.NewService(stats.Config{
		JournalPath:  appConfig.Persistence.MatchLogPath,
		RecentLimit:  appConfig.Persistence.RecentLimit,
		ReplayOnLoad: true,
	})
	if err := statsSvc.Start(); err != nil {
		log.Fatalf("❌ Match journal: %v", err)
	}
	if p := appConfig.Persistence.MatchLogPath; p != "" {
		log.Printf("📝 Match journal: %s", p)
	} else {
		log.Println("📝 Match journal in memory only")
	}

	dirCfg := appConfig.DirectoryConfig()
	dirCfg.OnGameOver = statsSvc.OnGameOver
	directory := room.NewDirectory(dirCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go directory.Run(ctx)

	debugSrv := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:       appConfig.Debug.Enabled,
		ListenAddr:    appConfig.Debug.Addr,
		BasicAuthUser: appConfig.Debug.User,
		BasicAuthPass: appConfig.Debug.Password,
		Rooms:         directory,
	})

	serverCfg := appConfig.Server
	server := api.NewServer(directory, statsSvc, api.ServerConfig{
		Hub: api.HubConfig{
			MaxConnections: limits.MaxWSConnections,
			MaxPerIP:       limits.MaxWSPerIP,
			InputRate:      limits.InputRate,
			AllowedOrigins: serverCfg.AllowedOrigins,
			Tokens:         api.NewTokenSigner(serverCfg.SessionSecret, serverCfg.TokenTTL),
		},
		RateLimitConfig: &api.RateLimitConfig{
			RequestsPerSecond: serverCfg.APIRate,
			Burst:             serverCfg.APIBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CORSOrigins: serverCfg.AllowedOrigins,
	})
	if serverCfg.SessionSecret == "" {
		log.Println("⚠️ SESSION_SECRET not set, reconnect tokens will not survive a restart")
	}

	go func() {
		if err := server.Start(serverCfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	if debugSrv != nil {
		debugSrv.Shutdown(shutdownCtx)
	}
	cancel()
	directory.Close()
	statsSvc.Stop()
	log.Println("👋 Goodbye!")
}
