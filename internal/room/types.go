package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/protocol"
)

// State is the room lifecycle state.
type State int

const (
	StateWaiting State = iota
	StateCountdown
	StatePlaying
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateCountdown:
		return "countdown"
	case StatePlaying:
		return "playing"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateWaiting; st <= StateEnded; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown room state %q", b)
}

// Mode selects the end-condition policy.
type Mode string

const (
	ModeLastStanding Mode = "last_standing"
	ModeFreePlay     Mode = "free_play"
	ModeTimed        Mode = "timed"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeLastStanding, ModeFreePlay, ModeTimed:
		return true
	}
	return false
}

// EndReason explains why a round ended.
type EndReason string

const (
	ReasonWinner   EndReason = "winner"
	ReasonDraw     EndReason = "draw"
	ReasonGameOver EndReason = "game_over"
	ReasonAllDead  EndReason = "all_dead"
	ReasonTimeUp   EndReason = "time_up"
)

// Rejections returned to callers. The text is shown to users as is.
var (
	ErrRoomFull      = errors.New("room is full")
	ErrNotCreator    = errors.New("only the room creator can start the game")
	ErrInvalidState  = errors.New("game cannot be started right now")
	ErrNoPlayers     = errors.New("no connected players")
	ErrUnknownPlayer = errors.New("player is not in this room")
	ErrAlreadyJoined = errors.New("player already joined")
	ErrRoomClosed    = errors.New("room is closed")
	ErrInvalidConfig = errors.New("invalid room config")
)

// Config is chosen by whoever creates the room.
type Config struct {
	Name       string        `json:"name"`
	MaxPlayers int           `json:"maxPlayers"`
	Mode       Mode          `json:"mode"`
	WorldSize  string        `json:"worldSize"` // "small", "medium" or "large"
	Duration   time.Duration `json:"-"`         // timed mode only
}

// Limits applied to room configs.
const (
	MinPlayers    = 1
	MaxPlayersCap = 50
	maxNameLength = 32
)

// Normalize fills defaults and validates the config.
func (c Config) Normalize(defaults Config) (Config, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = defaults.Name
	}
	if len(c.Name) > maxNameLength {
		c.Name = c.Name[:maxNameLength]
	}
	if c.MaxPlayers == 0 {
		c.MaxPlayers = defaults.MaxPlayers
	}
	if c.Mode == "" {
		c.Mode = defaults.Mode
	}
	if c.WorldSize == "" {
		c.WorldSize = defaults.WorldSize
	}
	if c.Duration == 0 {
		c.Duration = defaults.Duration
	}

	if c.MaxPlayers < MinPlayers || c.MaxPlayers > MaxPlayersCap {
		return c, fmt.Errorf("%w: maxPlayers must be between %d and %d", ErrInvalidConfig, MinPlayers, MaxPlayersCap)
	}
	if !c.Mode.Valid() {
		return c, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	if !game.ValidWorldPreset(c.WorldSize) {
		return c, fmt.Errorf("%w: unknown world size %q", ErrInvalidConfig, c.WorldSize)
	}
	if c.Mode == ModeTimed && c.Duration <= 0 {
		return c, fmt.Errorf("%w: timed mode needs a duration", ErrInvalidConfig)
	}
	return c, nil
}

// Settings are process-wide room timings, usually from config.
type Settings struct {
	TickRate int
	// CountdownSeconds of zero starts play as soon as the creator asks.
	CountdownSeconds int
	CountdownStep    time.Duration // length of one countdown second
	ReconnectGrace   time.Duration
	RecentEvents     int
	KeyframeInterval uint64 // ticks between frames flagged as keyframes
	InboxSize        int
	HookTimeout      time.Duration
}

// DefaultSettings returns production timings
func DefaultSettings() Settings {
	return Settings{
		TickRate:         30,
		CountdownSeconds: 3,
		CountdownStep:    time.Second,
		ReconnectGrace:   15 * time.Second,
		RecentEvents:     50,
		KeyframeInterval: 30,
		InboxSize:        256,
		HookTimeout:      10 * time.Second,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.TickRate <= 0 {
		s.TickRate = d.TickRate
	}
	if s.CountdownSeconds < 0 {
		s.CountdownSeconds = 0
	}
	if s.CountdownStep <= 0 {
		s.CountdownStep = d.CountdownStep
	}
	if s.ReconnectGrace <= 0 {
		s.ReconnectGrace = d.ReconnectGrace
	}
	if s.RecentEvents <= 0 {
		s.RecentEvents = d.RecentEvents
	}
	if s.KeyframeInterval == 0 {
		s.KeyframeInterval = d.KeyframeInterval
	}
	if s.InboxSize <= 0 {
		s.InboxSize = d.InboxSize
	}
	if s.HookTimeout <= 0 {
		s.HookTimeout = d.HookTimeout
	}
	return s
}

// Session is the transport's handle on one client connection. Send must not
// block; a session that cannot keep up returns an error and is expected to
// tear itself down.
type Session interface {
	Codec() protocol.Codec
	Send(frame []byte) error
	Close() error
}

// Simulation is the engine surface a room drives. *game.Engine implements it.
type Simulation interface {
	SpawnSnake(id, name, pattern, color string) game.SnakeView
	RemoveSnake(id string)
	QueueInput(id string, angle float64, boosting bool)
	Update() game.TickResult
	FullState() game.FullSnapshot
	Leaderboard() game.Leaderboard
	Standings() []game.Standing
	AliveCount() int
	Stats(id string) (game.SnakeStats, bool)
}

func newEngine(worldSize float64) Simulation {
	return game.NewEngine(game.EngineConfig{WorldSize: worldSize})
}

// Player is a room member. Alive, Score, Kills and Spectating mirror the
// member's snake while a round runs.
type Player struct {
	ID         string
	Name       string
	Pattern    string
	Color      string
	Connected  bool
	Alive      bool
	Spectating bool
	Score      int
	Kills      int
	JoinedAt   time.Time

	session    Session
	inRound    bool
	graceEpoch uint64
}

func (p *Player) info(creatorID string) protocol.PlayerInfo {
	return protocol.PlayerInfo{
		ID:         p.ID,
		Name:       p.Name,
		Pattern:    p.Pattern,
		Color:      p.Color,
		Connected:  p.Connected,
		Alive:      p.Alive,
		Spectating: p.Spectating,
		Score:      p.Score,
		Kills:      p.Kills,
		IsCreator:  p.ID == creatorID,
	}
}

// Info is the summary a room publishes for listings and health checks.
type Info struct {
	Code       string                `json:"code"`
	Name       string                `json:"name"`
	Mode       Mode                  `json:"mode"`
	WorldSize  string                `json:"worldSize"`
	State      State                 `json:"state"`
	Players    int                   `json:"players"`
	Connected  int                   `json:"connected"`
	MaxPlayers int                   `json:"maxPlayers"`
	Round      int                   `json:"round"`
	CreatorID  string                `json:"creatorId,omitempty"`
	Members    []protocol.PlayerInfo `json:"members"`
	CreatedAt  time.Time             `json:"createdAt"`
	EmptySince time.Time             `json:"-"`
	LastTick   time.Time             `json:"-"`
	LastResult *protocol.GameOver    `json:"lastResult,omitempty"`
}

// MatchSummary is handed to the game-over hook once per finished round.
type MatchSummary struct {
	RoomCode  string          `json:"roomCode"`
	RoomName  string          `json:"roomName"`
	Mode      Mode            `json:"mode"`
	Round     int             `json:"round"`
	Reason    EndReason       `json:"reason"`
	Standings []game.Standing `json:"standings"`
	Winner    *game.Standing  `json:"winner,omitempty"`
	Duration  float64         `json:"duration"` // seconds
	StartedAt time.Time       `json:"startedAt"`
	EndedAt   time.Time       `json:"endedAt"`
}

// GameOverFunc receives finished rounds. Errors and panics are logged and
// never reach the room.
type GameOverFunc func(ctx context.Context, info Info, summary MatchSummary) error

// JoinRequest describes a new member. The transport assigns PlayerID.
type JoinRequest struct {
	PlayerID string
	Name     string
	Pattern  string
	Color    string
	Token    string // echoed back in room_joined
	Session  Session
}

// JoinResult tells the transport how the player was admitted.
type JoinResult struct {
	PlayerID   string
	Spectating bool
	IsCreator  bool
	State      State
}
