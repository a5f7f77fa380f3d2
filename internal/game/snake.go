package game

import "math"

// Point is a position in world coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) dist2(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// FoodType classifies food by value.
type FoodType string

const (
	FoodNormal FoodType = "normal"
	FoodBonus  FoodType = "bonus"
)

// growth returns how much growPending a piece of food adds.
func (t FoodType) growth() int {
	if t == FoodBonus {
		return BonusFoodGrow
	}
	return NormalFoodGrow
}

// Food is purely positional; it has no identity.
type Food struct {
	Pos   Point
	Type  FoodType
	Value int
}

// PowerUpType is the catalog of field power-ups.
type PowerUpType string

const (
	PowerUpSpeed  PowerUpType = "speed"
	PowerUpShield PowerUpType = "shield"
	PowerUpGhost  PowerUpType = "ghost"
)

// powerUpCatalog is ordered; effects are iterated in this order.
var powerUpCatalog = [...]PowerUpType{PowerUpSpeed, PowerUpShield, PowerUpGhost}

// Duration returns the effect length in ticks.
func (t PowerUpType) Duration() int {
	switch t {
	case PowerUpSpeed:
		return 240
	case PowerUpShield:
		return 300
	case PowerUpGhost:
		return 240
	default:
		return 0
	}
}

// PowerUp is a pickable field object.
type PowerUp struct {
	ID        string
	Pos       Point
	Type      PowerUpType
	SpawnTick uint64
}

// DeathCause records what killed a snake.
type DeathCause string

const (
	CauseBoundary DeathCause = "boundary"
	CauseSelf     DeathCause = "self"
	CauseHeadOn   DeathCause = "head_on"
	CauseBody     DeathCause = "body"
)

// Snake is one player's body for one round. Only the owning Engine mutates it.
type Snake struct {
	ID      string
	Name    string
	Pattern string
	Color   string

	Segments    []Point
	Angle       float64
	TargetAngle float64
	Boosting    bool
	Alive       bool

	Score       int
	Kills       int
	Length      int
	GrowPending int

	Effects map[PowerUpType]int

	DeathTick  uint64
	DeathCause DeathCause
	KilledBy   string

	boostTicks int
	prevHead   Point
}

// Head returns segment 0, or the zero point for an empty body.
func (s *Snake) Head() Point {
	if len(s.Segments) == 0 {
		return Point{}
	}
	return s.Segments[0]
}

func (s *Snake) has(t PowerUpType) bool {
	return s.Effects[t] > 0
}

// canBoost requires a body long enough to pay for it.
func (s *Snake) canBoost() bool {
	return s.Length > MinBoostLength
}

// speed for this tick, including boost and the speed effect.
func (s *Snake) speed() float64 {
	v := BaseSpeed
	if s.Boosting && s.canBoost() {
		v = BoostSpeed
	}
	if s.has(PowerUpSpeed) {
		v *= SpeedEffectMultiplier
	}
	return v
}

// steer rotates Angle toward TargetAngle by at most MaxTurnRate along the
// shorter direction.
func (s *Snake) steer() {
	diff := wrapAngle(s.TargetAngle - s.Angle)
	if diff > MaxTurnRate {
		diff = MaxTurnRate
	} else if diff < -MaxTurnRate {
		diff = -MaxTurnRate
	}
	s.Angle = wrapAngle(s.Angle + diff)
}

// selfGrace is the number of leading segments ignored by self collision.
func (s *Snake) selfGrace() int {
	g := int(float64(len(s.Segments)) * SelfGraceFraction)
	if g < SelfGraceMin {
		g = SelfGraceMin
	}
	return g
}

// wrapAngle maps a into [-π, π].
func wrapAngle(a float64) float64 {
	return math.Remainder(a, 2*math.Pi)
}
