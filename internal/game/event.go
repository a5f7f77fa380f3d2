package game

// EventKind enumerates the gameplay events Update can emit.
type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventEat
	EventDeath
	EventKill
	EventPowerUpPickup
	EventPowerUpExpired
	EventPowerUpDespawn
)

// String returns the wire name of the event kind
func (k EventKind) String() string {
	switch k {
	case EventEat:
		return "eat"
	case EventDeath:
		return "death"
	case EventKill:
		return "kill"
	case EventPowerUpPickup:
		return "powerup_pickup"
	case EventPowerUpExpired:
		return "powerup_expired"
	case EventPowerUpDespawn:
		return "powerup_despawn"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind as its wire name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a closed set: only the types in this file implement it.
type Event interface {
	Kind() EventKind
	sealed()
}

// EatEvent: a snake consumed one piece of food.
type EatEvent struct {
	PlayerID string
	FoodType FoodType
	Value    int
	Pos      Point
}

// DeathEvent carries the final score and length of the dead snake.
type DeathEvent struct {
	PlayerID string
	Name     string
	Cause    DeathCause
	KilledBy string
	Score    int
	Length   int
	Pos      Point
}

// KillEvent credits KillerID with the death of VictimID.
type KillEvent struct {
	KillerID   string
	KillerName string
	VictimID   string
	VictimName string
}

type PowerUpPickupEvent struct {
	PlayerID  string
	PowerUpID string
	Type      PowerUpType
	Pos       Point
}

type PowerUpExpiredEvent struct {
	PlayerID string
	Type     PowerUpType
}

type PowerUpDespawnEvent struct {
	PowerUpID string
	Type      PowerUpType
}

func (EatEvent) Kind() EventKind            { return EventEat }
func (DeathEvent) Kind() EventKind          { return EventDeath }
func (KillEvent) Kind() EventKind           { return EventKill }
func (PowerUpPickupEvent) Kind() EventKind  { return EventPowerUpPickup }
func (PowerUpExpiredEvent) Kind() EventKind { return EventPowerUpExpired }
func (PowerUpDespawnEvent) Kind() EventKind { return EventPowerUpDespawn }

func (EatEvent) sealed()            {}
func (DeathEvent) sealed()          {}
func (KillEvent) sealed()           {}
func (PowerUpPickupEvent) sealed()  {}
func (PowerUpExpiredEvent) sealed() {}
func (PowerUpDespawnEvent) sealed() {}

// TickResult is what one Update call produced.
type TickResult struct {
	Tick   uint64
	Events []Event
}
