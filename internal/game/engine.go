package game

import (
	"math"
	"math/rand"
	"time"

	"snake-arena/internal/game/spatial"
)

// EngineConfig sizes a new engine.
type EngineConfig struct {
	WorldSize float64
	// Seed for the engine's private RNG. Zero seeds from the clock.
	Seed int64
}

// Engine owns one round's snakes, food and power-ups and advances them one
// tick per Update call.
//
// Engine is not safe for concurrent use. The room that owns it calls every
// method from its own goroutine, which is also the only place the RNG moves.
type Engine struct {
	worldSize      float64
	center         float64
	boundaryRadius float64

	snakes map[string]*Snake
	order  []string // spawn order; every per-snake loop walks this

	food     []Food
	powerUps []PowerUp

	tick        uint64
	nextPowerUp uint64

	rng     *rand.Rand
	rngSeed int64

	// per-tick scratch
	pending  []Event
	foodGrid *spatial.Grid
	eaten    []bool
	sap      *spatial.SweepAndPrune
	bounds   []spatial.Interval
	living   []*Snake
}

// NewEngine creates an empty world of the configured size.
func NewEngine(cfg EngineConfig) *Engine {
	size := cfg.WorldSize
	if size <= 2*BoundaryMargin {
		size = WorldMedium
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Engine{
		worldSize:      size,
		center:         size / 2,
		boundaryRadius: size/2 - BoundaryMargin,
		snakes:         make(map[string]*Snake),
		food:           make([]Food, 0, FoodBase*2),
		rng:            rand.New(rand.NewSource(seed)),
		rngSeed:        seed,
		foodGrid:       spatial.NewGrid(size, size, foodGridCellSize),
		sap:            spatial.NewSweepAndPrune(16),
	}
}

// Tick returns the number of completed Update calls.
func (e *Engine) Tick() uint64 { return e.tick }

// Seed returns the RNG seed, useful for reproducing a round in tests.
func (e *Engine) Seed() int64 { return e.rngSeed }

// WorldSize returns the side of the square world.
func (e *Engine) WorldSize() float64 { return e.worldSize }

// BoundaryRadius returns the radius of the playable circle.
func (e *Engine) BoundaryRadius() float64 { return e.boundaryRadius }

// SpawnSnake places a new snake for id. An existing snake with the same id
// is replaced.
func (e *Engine) SpawnSnake(id, name, pattern, color string) SnakeView {
	if _, ok := e.snakes[id]; ok {
		e.RemoveSnake(id)
	}

	head, _ := e.findSpawnPoint()
	angle := math.Atan2(e.center-head.Y, e.center-head.X)
	dx, dy := math.Cos(angle)*BaseSpeed, math.Sin(angle)*BaseSpeed

	segments := make([]Point, InitialLength, InitialLength+1)
	for i := range segments {
		segments[i] = Point{X: head.X - dx*float64(i), Y: head.Y - dy*float64(i)}
	}

	s := &Snake{
		ID:          id,
		Name:        name,
		Pattern:     pattern,
		Color:       color,
		Segments:    segments,
		Angle:       angle,
		TargetAngle: angle,
		Alive:       true,
		Length:      InitialLength,
		Effects:     make(map[PowerUpType]int),
		prevHead:    head,
	}
	e.snakes[id] = s
	e.order = append(e.order, id)
	return s.view()
}

// findSpawnPoint rejection-samples a head position clear of every living
// head. The bool is false when all attempts failed and the fallback was used.
func (e *Engine) findSpawnPoint() (Point, bool) {
	minDist2 := SpawnMinDistance * SpawnMinDistance
	for attempt := 0; attempt < SpawnAttempts; attempt++ {
		p := e.randomPoint(e.boundaryRadius * SpawnRadiusFactor)
		free := true
		for _, id := range e.order {
			s := e.snakes[id]
			if s.Alive && len(s.Segments) > 0 && p.dist2(s.Head()) <= minDist2 {
				free = false
				break
			}
		}
		if free {
			return p, true
		}
	}
	return e.randomPoint(e.boundaryRadius * SpawnFallbackFactor), false
}

// randomPoint is area-uniform inside a circle of the given radius around
// the world center.
func (e *Engine) randomPoint(radius float64) Point {
	r := radius * math.Sqrt(e.rng.Float64())
	theta := e.rng.Float64() * 2 * math.Pi
	return Point{X: e.center + r*math.Cos(theta), Y: e.center + r*math.Sin(theta)}
}

// RemoveSnake deletes the snake for id. Unknown ids are ignored.
func (e *Engine) RemoveSnake(id string) {
	if _, ok := e.snakes[id]; !ok {
		return
	}
	delete(e.snakes, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// QueueInput records the latest steering intent for a living snake. The
// last call before the next Update wins.
func (e *Engine) QueueInput(id string, angle float64, boosting bool) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return
	}
	s, ok := e.snakes[id]
	if !ok || !s.Alive {
		return
	}
	s.TargetAngle = wrapAngle(angle)
	s.Boosting = boosting
}

// AliveCount returns the number of living snakes.
func (e *Engine) AliveCount() int {
	n := 0
	for _, id := range e.order {
		if e.snakes[id].Alive {
			n++
		}
	}
	return n
}

// AliveIDs returns the living snakes' ids in spawn order.
func (e *Engine) AliveIDs() []string {
	ids := make([]string, 0, len(e.order))
	for _, id := range e.order {
		if e.snakes[id].Alive {
			ids = append(ids, id)
		}
	}
	return ids
}

// SnakeStats is the part of a snake the room mirrors onto its player.
type SnakeStats struct {
	Alive  bool
	Score  int
	Kills  int
	Length int
}

// Stats returns the mirrored fields for id without copying the body.
func (e *Engine) Stats(id string) (SnakeStats, bool) {
	s, ok := e.snakes[id]
	if !ok {
		return SnakeStats{}, false
	}
	return SnakeStats{Alive: s.Alive, Score: s.Score, Kills: s.Kills, Length: s.Length}, true
}

// Snake returns a rounded copy of one snake.
func (e *Engine) Snake(id string) (SnakeView, bool) {
	s, ok := e.snakes[id]
	if !ok {
		return SnakeView{}, false
	}
	return s.view(), true
}
