package protocol

import (
	"math"

	"snake-arena/internal/game"
)

// EventView is the flat wire form of a game event. Only the fields that
// belong to Type are set.
type EventView struct {
	Type        string  `json:"type"`
	Tick        uint64  `json:"tick"`
	PlayerID    string  `json:"playerId,omitempty"`
	Name        string  `json:"name,omitempty"`
	FoodType    string  `json:"foodType,omitempty"`
	Value       int     `json:"value,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	Cause       string  `json:"cause,omitempty"`
	KilledBy    string  `json:"killedBy,omitempty"`
	Score       int     `json:"score,omitempty"`
	Length      int     `json:"length,omitempty"`
	KillerID    string  `json:"killerId,omitempty"`
	KillerName  string  `json:"killerName,omitempty"`
	VictimID    string  `json:"victimId,omitempty"`
	VictimName  string  `json:"victimName,omitempty"`
	PowerUpID   string  `json:"powerupId,omitempty"`
	PowerUpType string  `json:"powerupType,omitempty"`
}

// EventViews converts one tick's events, preserving order. The result is
// never nil so it encodes as an empty list.
func EventViews(tick uint64, events []game.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, NewEventView(tick, ev))
	}
	return out
}

// NewEventView maps a single event.
func NewEventView(tick uint64, ev game.Event) EventView {
	v := EventView{Type: ev.Kind().String(), Tick: tick}

	switch e := ev.(type) {
	case game.EatEvent:
		v.PlayerID = e.PlayerID
		v.FoodType = string(e.FoodType)
		v.Value = e.Value
		v.X, v.Y = round1(e.Pos.X), round1(e.Pos.Y)
	case game.DeathEvent:
		v.PlayerID = e.PlayerID
		v.Name = e.Name
		v.Cause = string(e.Cause)
		v.KilledBy = e.KilledBy
		v.Score = e.Score
		v.Length = e.Length
		v.X, v.Y = round1(e.Pos.X), round1(e.Pos.Y)
	case game.KillEvent:
		v.KillerID = e.KillerID
		v.KillerName = e.KillerName
		v.VictimID = e.VictimID
		v.VictimName = e.VictimName
	case game.PowerUpPickupEvent:
		v.PlayerID = e.PlayerID
		v.PowerUpID = e.PowerUpID
		v.PowerUpType = string(e.Type)
		v.X, v.Y = round1(e.Pos.X), round1(e.Pos.Y)
	case game.PowerUpExpiredEvent:
		v.PlayerID = e.PlayerID
		v.PowerUpType = string(e.Type)
	case game.PowerUpDespawnEvent:
		v.PowerUpID = e.PowerUpID
		v.PowerUpType = string(e.Type)
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
