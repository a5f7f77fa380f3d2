package game

// Movement
const (
	BaseSpeed             = 3.0
	BoostSpeed            = 6.0
	SpeedEffectMultiplier = 1.4
	MaxTurnRate           = 0.12 // radians per tick
)

// Body
const (
	InitialLength     = 10
	MaxSegments       = 500
	BoostCostInterval = 5 // boosted ticks per unit of length spent
	MinBoostLength    = InitialLength + 3
)

// Radii
const (
	HeadRadius    = 10.0
	BodyRadius    = 8.0
	FoodRadius    = 5.0
	PowerUpRadius = 15.0

	FoodPickupRadius    = HeadRadius + FoodRadius
	PowerUpPickupRadius = HeadRadius + PowerUpRadius
	SelfCollisionRadius = HeadRadius
	BodyCollisionRadius = HeadRadius + BodyRadius
	HeadOnRadius        = 2 * HeadRadius
)

// World
const (
	BoundaryMargin      = 50.0
	SpawnAttempts       = 200
	SpawnMinDistance    = 150.0
	SpawnRadiusFactor   = 0.75
	SpawnFallbackFactor = 0.1
	FoodRadiusFactor    = 0.9
	PowerUpRadiusFactor = 0.75
	GhostWrapMargin     = 5.0
)

// Collision grace windows
const (
	SelfGraceMin      = 8
	SelfGraceFraction = 0.15
	BodyGraceSegments = 3
)

// Food economy
const (
	FoodBase         = 80
	FoodPerSnake     = 15
	BonusFoodChance  = 0.1
	NormalFoodValue  = 1
	NormalFoodGrow   = 1
	BonusFoodValue   = 5
	BonusFoodGrow    = 3
	DeathFoodValue   = 2
	DeathFoodStride  = 3
	DeathFoodJitter  = 5.0
	CrumbFoodValue   = 1
	foodGridCellSize = 100.0
)

// Scoring
const (
	KillScore    = 50
	PowerUpScore = 10
)

// Power-ups
const (
	PowerUpSpawnChance = 0.005
	MaxFieldPowerUps   = 3
	PowerUpLifetime    = 600 // ticks on the field before despawn
)

// World size presets
const (
	WorldSmall  = 2000.0
	WorldMedium = 3000.0
	WorldLarge  = 4000.0
)

// WorldSizeForPreset maps a preset name to a world side length.
// Unknown names fall back to medium.
func WorldSizeForPreset(preset string) float64 {
	switch preset {
	case "small":
		return WorldSmall
	case "large":
		return WorldLarge
	default:
		return WorldMedium
	}
}

// ValidWorldPreset reports whether preset names a known world size.
func ValidWorldPreset(preset string) bool {
	switch preset {
	case "small", "medium", "large":
		return true
	}
	return false
}
