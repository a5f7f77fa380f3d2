package room

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"snake-arena/internal/metrics"
)

var (
	ErrTooManyRooms = errors.New("too many rooms")
	ErrRoomNotFound = errors.New("room not found")
)

const (
	codeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength = 6
)

// DirectoryConfig holds directory limits and what every room it creates
// shares.
type DirectoryConfig struct {
	Settings        Settings
	Defaults        Config
	MaxRooms        int
	EmptyRoomGrace  time.Duration
	StallTimeout    time.Duration
	CleanupInterval time.Duration
	OnGameOver      GameOverFunc
	NewSimulation   func(worldSize float64) Simulation
}

// DefaultDirectoryConfig returns production limits.
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{
		Settings: DefaultSettings(),
		Defaults: Config{
			Name:       "Arena",
			MaxPlayers: 10,
			Mode:       ModeLastStanding,
			WorldSize:  "medium",
			Duration:   3 * time.Minute,
		},
		MaxRooms:        200,
		EmptyRoomGrace:  60 * time.Second,
		StallTimeout:    30 * time.Second,
		CleanupInterval: 30 * time.Second,
	}
}

// Directory tracks live rooms by code.
type Directory struct {
	cfg DirectoryConfig

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewDirectory(cfg DirectoryConfig) *Directory {
	d := DefaultDirectoryConfig()
	if cfg.MaxRooms <= 0 {
		cfg.MaxRooms = d.MaxRooms
	}
	if cfg.EmptyRoomGrace <= 0 {
		cfg.EmptyRoomGrace = d.EmptyRoomGrace
	}
	if cfg.StallTimeout <= 0 {
		cfg.StallTimeout = d.StallTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = d.CleanupInterval
	}
	if cfg.Defaults.Name == "" {
		cfg.Defaults = d.Defaults
	}
	return &Directory{
		cfg:   cfg,
		rooms: make(map[string]*Room),
	}
}

// Create validates cfg against the directory defaults and starts a room.
func (d *Directory) Create(cfg Config) (*Room, error) {
	cfg, err := cfg.Normalize(d.cfg.Defaults)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.rooms) >= d.cfg.MaxRooms {
		return nil, fmt.Errorf("%w (limit %d)", ErrTooManyRooms, d.cfg.MaxRooms)
	}

	var code string
	for {
		code, err = generateCode(codeLength)
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		if _, exists := d.rooms[code]; !exists {
			break
		}
	}

	r := New(code, cfg, Options{
		Settings:      d.cfg.Settings,
		OnGameOver:    d.cfg.OnGameOver,
		OnEmpty:       d.remove,
		NewSimulation: d.cfg.NewSimulation,
	})
	d.rooms[code] = r
	go r.Run()

	metrics.SetRoomsActive(len(d.rooms))
	log.Printf("🏠 Room %s created: %q mode=%s world=%s max=%d", code, cfg.Name, cfg.Mode, cfg.WorldSize, cfg.MaxPlayers)
	return r, nil
}

// Get returns the room for code, or nil. Codes are case-insensitive.
func (d *Directory) Get(code string) *Room {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rooms[strings.ToUpper(code)]
}

// Lookup is Get with ErrRoomNotFound for a missing room.
func (d *Directory) Lookup(code string) (*Room, error) {
	if r := d.Get(code); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
}

// List returns every room's summary sorted by code.
func (d *Directory) List() []Info {
	d.mu.RLock()
	out := make([]Info, 0, len(d.rooms))
	for _, r := range d.rooms {
		out = append(out, r.Info())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// remove is the rooms' OnEmpty callback.
func (d *Directory) remove(code string) {
	d.mu.Lock()
	r, ok := d.rooms[code]
	if ok {
		delete(d.rooms, code)
	}
	n := len(d.rooms)
	d.mu.Unlock()

	if ok {
		r.Stop()
		metrics.SetRoomsActive(n)
	}
}

// Cleanup stops rooms that have been empty longer than EmptyRoomGrace and
// PLAYING rooms that have not ticked for StallTimeout. It returns how many
// rooms it removed.
func (d *Directory) Cleanup(now time.Time) int {
	var stale []*Room

	d.mu.Lock()
	players := 0
	for code, r := range d.rooms {
		info := r.Info()
		switch {
		case info.Players == 0 && !info.EmptySince.IsZero() && now.Sub(info.EmptySince) > d.cfg.EmptyRoomGrace:
			log.Printf("🧹 Room %s: empty for %s, removing", code, now.Sub(info.EmptySince).Round(time.Second))
		case info.State == StatePlaying && !info.LastTick.IsZero() && now.Sub(info.LastTick) > d.cfg.StallTimeout:
			log.Printf("⚠️ Room %s: no tick for %s, removing", code, now.Sub(info.LastTick).Round(time.Second))
		default:
			players += info.Connected
			continue
		}
		delete(d.rooms, code)
		stale = append(stale, r)
	}
	rooms := len(d.rooms)
	d.mu.Unlock()

	for _, r := range stale {
		r.Stop()
	}
	metrics.SetRoomsActive(rooms)
	metrics.SetPlayersConnected(players)
	return len(stale)
}

// Run cleans up periodically until ctx is done.
func (d *Directory) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := d.Cleanup(now); n > 0 {
				log.Printf("🧹 Cleanup removed %d rooms (%d left)", n, d.Len())
			}
		}
	}
}

// Close stops every room and waits for their goroutines to exit.
func (d *Directory) Close() {
	d.mu.Lock()
	rooms := make([]*Room, 0, len(d.rooms))
	for code, r := range d.rooms {
		rooms = append(rooms, r)
		delete(d.rooms, code)
	}
	d.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
	for _, r := range rooms {
		<-r.Done()
	}
	metrics.SetRoomsActive(0)
	metrics.SetPlayersConnected(0)
}

func generateCode(n int) (string, error) {
	max := big.NewInt(int64(len(codeChars)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = codeChars[idx.Int64()]
	}
	return string(b), nil
}
