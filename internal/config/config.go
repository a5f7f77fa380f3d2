// Package config provides centralized configuration management.
// Every tunable the server reads from the environment is declared here.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"snake-arena/internal/room"
)

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	AllowedOrigins []string // nil means local development origins only
	APIRate        float64  // HTTP requests per second per IP
	APIBurst       int
	SessionSecret  string // signs reconnect tokens; random per process if empty
	TokenTTL       time.Duration
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:     3000,
		APIRate:  10,
		APIBurst: 20,
		TokenTTL: 24 * time.Hour,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := getEnvList("ALLOWED_ORIGINS"); origins != nil {
		cfg.AllowedOrigins = origins
	}
	if r := getEnvFloat("API_RATE", 0); r > 0 {
		cfg.APIRate = r
		cfg.APIBurst = int(r * 2)
	}
	cfg.SessionSecret = getEnv("SESSION_SECRET", "")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", cfg.TokenTTL)

	return cfg
}

// Addr returns the listen address for Port.
func (c ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// =============================================================================
// GAME CONFIGURATION
// =============================================================================

// GameConfig holds room timings and the defaults for new rooms.
type GameConfig struct {
	TickRate          int
	CountdownSeconds  int
	ReconnectGrace    time.Duration
	RecentEvents      int
	DefaultMaxPlayers int
	TimedDuration     time.Duration
}

// DefaultGame returns the default game configuration.
func DefaultGame() GameConfig {
	return GameConfig{
		TickRate:          30,
		CountdownSeconds:  3,
		ReconnectGrace:    15 * time.Second,
		RecentEvents:      50,
		DefaultMaxPlayers: 10,
		TimedDuration:     3 * time.Minute,
	}
}

// GameFromEnv returns game configuration with environment variable overrides.
func GameFromEnv() GameConfig {
	cfg := DefaultGame()

	if v := getEnvInt("TICK_RATE", 0); v > 0 && v <= 120 {
		cfg.TickRate = v
	}
	if v := getEnvInt("COUNTDOWN_SECONDS", -1); v >= 0 {
		cfg.CountdownSeconds = v
	}
	cfg.ReconnectGrace = getEnvDuration("RECONNECT_GRACE", cfg.ReconnectGrace)
	if v := getEnvInt("RECENT_EVENTS", 0); v > 0 {
		cfg.RecentEvents = v
	}
	if v := getEnvInt("DEFAULT_MAX_PLAYERS", 0); v >= room.MinPlayers && v <= room.MaxPlayersCap {
		cfg.DefaultMaxPlayers = v
	}
	cfg.TimedDuration = getEnvDuration("TIMED_DURATION", cfg.TimedDuration)

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// LimitsConfig controls DoS protection and room housekeeping.
type LimitsConfig struct {
	MaxRooms         int
	MaxWSConnections int
	MaxWSPerIP       int
	InputRate        float64 // steering messages per second per session
	EmptyRoomGrace   time.Duration
	CleanupInterval  time.Duration
	StallTimeout     time.Duration
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxRooms:         200,
		MaxWSConnections: 500,
		MaxWSPerIP:       10,
		InputRate:        60,
		EmptyRoomGrace:   60 * time.Second,
		CleanupInterval:  30 * time.Second,
		StallTimeout:     30 * time.Second,
	}
}

// LimitsFromEnv returns limits with environment variable overrides.
func LimitsFromEnv() LimitsConfig {
	cfg := DefaultLimits()

	if v := getEnvInt("MAX_ROOMS", 0); v > 0 {
		cfg.MaxRooms = v
	}
	if v := getEnvInt("MAX_WS_CONNECTIONS", 0); v > 0 {
		cfg.MaxWSConnections = v
	}
	if v := getEnvInt("MAX_WS_PER_IP", 0); v > 0 {
		cfg.MaxWSPerIP = v
	}
	if v := getEnvFloat("INPUT_RATE", 0); v > 0 {
		cfg.InputRate = v
	}
	cfg.EmptyRoomGrace = getEnvDuration("EMPTY_ROOM_GRACE", cfg.EmptyRoomGrace)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.StallTimeout = getEnvDuration("STALL_TIMEOUT", cfg.StallTimeout)

	return cfg
}

// =============================================================================
// PERSISTENCE CONFIGURATION
// =============================================================================

// PersistenceConfig controls the match journal.
type PersistenceConfig struct {
	MatchLogPath string // empty keeps history in memory only
	RecentLimit  int
}

func DefaultPersistence() PersistenceConfig {
	return PersistenceConfig{
		MatchLogPath: "data/matches.jsonl",
		RecentLimit:  50,
	}
}

func PersistenceFromEnv() PersistenceConfig {
	cfg := DefaultPersistence()
	if v, ok := os.LookupEnv("MATCH_LOG_PATH"); ok {
		cfg.MatchLogPath = strings.TrimSpace(v)
	}
	return cfg
}

// =============================================================================
// DEBUG CONFIGURATION
// =============================================================================

// DebugConfig controls the pprof/metrics server.
type DebugConfig struct {
	Enabled bool
	Addr    string
	// Basic auth is required when User is set.
	User     string
	Password string
}

func DefaultDebug() DebugConfig {
	return DebugConfig{
		Enabled: true,
		Addr:    "127.0.0.1:6060",
	}
}

func DebugFromEnv() DebugConfig {
	cfg := DefaultDebug()
	cfg.Enabled = getEnvBool("DEBUG_ENABLED", cfg.Enabled)
	cfg.Addr = getEnv("DEBUG_ADDR", cfg.Addr)
	cfg.User = getEnv("DEBUG_USER", "")
	cfg.Password = getEnv("DEBUG_PASSWORD", "")
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Server      ServerConfig
	Game        GameConfig
	Limits      LimitsConfig
	Persistence PersistenceConfig
	Debug       DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Server:      ServerFromEnv(),
		Game:        GameFromEnv(),
		Limits:      LimitsFromEnv(),
		Persistence: PersistenceFromEnv(),
		Debug:       DebugFromEnv(),
	}
}

// RoomSettings maps the game section onto room timings.
func (c AppConfig) RoomSettings() room.Settings {
	s := room.DefaultSettings()
	s.TickRate = c.Game.TickRate
	s.CountdownSeconds = c.Game.CountdownSeconds
	s.ReconnectGrace = c.Game.ReconnectGrace
	s.RecentEvents = c.Game.RecentEvents
	s.KeyframeInterval = uint64(c.Game.TickRate)
	return s
}

// DirectoryConfig maps the configuration onto the room directory.
func (c AppConfig) DirectoryConfig() room.DirectoryConfig {
	d := room.DefaultDirectoryConfig()
	d.Settings = c.RoomSettings()
	d.Defaults.MaxPlayers = c.Game.DefaultMaxPlayers
	d.Defaults.Duration = c.Game.TimedDuration
	d.MaxRooms = c.Limits.MaxRooms
	d.EmptyRoomGrace = c.Limits.EmptyRoomGrace
	d.CleanupInterval = c.Limits.CleanupInterval
	d.StallTimeout = c.Limits.StallTimeout
	return d
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
