// Package protocol defines the messages exchanged with clients and the
// envelope codecs that frame them.
package protocol

import "snake-arena/internal/game"

// Server → client message types.
const (
	MsgRoomJoined         = "room_joined"
	MsgPlayerJoined       = "player_joined"
	MsgPlayerLeft         = "player_left"
	MsgPlayerDisconnected = "player_disconnected"
	MsgPlayerReconnected  = "player_reconnected"
	MsgCreatorChanged     = "room_creator_changed"
	MsgCountdownStart     = "countdown_start"
	MsgCountdownTick      = "countdown_tick"
	MsgGameStarted        = "game_started"
	MsgTick               = "tick"
	MsgGameOver           = "game_over"
	MsgResync             = "resync"
	MsgError              = "error"
	MsgPong               = "pong"
)

// Client → server message types.
const (
	MsgInput = "input"
	MsgStart = "start"
	MsgLeave = "leave"
	MsgPing  = "ping"

	// MsgResyncRequest asks for a resync push, e.g. after dropped frames.
	MsgResyncRequest = "resync"
)

// Input is a steering intent: heading in radians and the boost flag.
type Input struct {
	A float64 `json:"a"`
	B bool    `json:"b,omitempty"`
}

// PlayerInfo describes a room member.
type PlayerInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Pattern    string `json:"pattern,omitempty"`
	Color      string `json:"color,omitempty"`
	Connected  bool   `json:"connected"`
	Alive      bool   `json:"alive"`
	Spectating bool   `json:"spectating"`
	Score      int    `json:"score"`
	Kills      int    `json:"kills"`
	IsCreator  bool   `json:"isCreator"`
}

// GameState is the resync payload for a room mid-round.
type GameState struct {
	State       game.FullSnapshot `json:"state"`
	Leaderboard game.Leaderboard  `json:"leaderboard"`
	Events      []EventView       `json:"events"`
}

type RoomJoined struct {
	RoomCode   string       `json:"roomCode"`
	RoomName   string       `json:"roomName"`
	Mode       string       `json:"mode"`
	State      string       `json:"state"`
	WorldSize  string       `json:"worldSize"`
	MaxPlayers int          `json:"maxPlayers"`
	Round      int          `json:"round"`
	PlayerID   string       `json:"playerId"`
	Token      string       `json:"token,omitempty"`
	CreatorID  string       `json:"creatorId"`
	IsCreator  bool         `json:"isCreator"`
	Spectating bool         `json:"spectating"`
	Players    []PlayerInfo `json:"players"`
	Game       *GameState   `json:"game,omitempty"`
}

type PlayerJoined struct {
	Player      PlayerInfo `json:"player"`
	PlayerCount int        `json:"playerCount"`
}

type PlayerLeft struct {
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
}

// PlayerPresence announces a disconnect or reconnect inside the grace window.
type PlayerPresence struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

type CreatorChanged struct {
	CreatorID string `json:"creatorId"`
	Name      string `json:"name"`
}

type CountdownStart struct {
	Seconds int `json:"seconds"`
	Round   int `json:"round"`
}

type CountdownTick struct {
	Remaining int `json:"remaining"`
}

type GameStarted struct {
	Round    int               `json:"round"`
	Mode     string            `json:"mode"`
	Duration float64           `json:"duration,omitempty"` // seconds, timed mode only
	State    game.FullSnapshot `json:"state"`
}

// Tick is the per-tick broadcast. Every frame is a full snapshot; Keyframe
// only marks the periodic ones for clients that care.
type Tick struct {
	Tick        uint64            `json:"tick"`
	State       game.FullSnapshot `json:"state"`
	Leaderboard game.Leaderboard  `json:"leaderboard"`
	Events      []EventView       `json:"events"`
	Keyframe    bool              `json:"keyframe"`
}

type GameOver struct {
	Reason    string          `json:"reason"`
	Standings []game.Standing `json:"standings"`
	Winner    *game.Standing  `json:"winner"`
	Duration  float64         `json:"duration"`
	Round     int             `json:"round"`
}

type Error struct {
	Message string `json:"message"`
}

type Pong struct {
	Time int64 `json:"time"`
}
