package game

import (
	"fmt"
	"math"

	"snake-arena/internal/game/spatial"
)

// death is a pending death collected during collision detection.
type death struct {
	snake  *Snake
	cause  DeathCause
	killer string
}

// Update advances the world by one tick and returns the events it produced,
// in emission order. Phases run in a fixed order; later phases see the
// results of earlier ones.
func (e *Engine) Update() TickResult {
	e.tick++
	e.pending = nil

	e.move()
	e.applyDeaths(e.detectCollisions())
	e.consumeFood()
	e.pickUpPowerUps()
	e.countDownEffects()
	e.despawnPowerUps()
	e.maintainFood()
	e.spawnPowerUp()

	events := e.pending
	e.pending = nil
	return TickResult{Tick: e.tick, Events: events}
}

func (e *Engine) emit(ev Event) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) centerPoint() Point {
	return Point{X: e.center, Y: e.center}
}

func (e *Engine) outside(p Point) bool {
	return p.dist2(e.centerPoint()) > e.boundaryRadius*e.boundaryRadius
}

// move steers, advances and grows or shrinks every living snake.
func (e *Engine) move() {
	for _, id := range e.order {
		s := e.snakes[id]
		if !s.Alive || len(s.Segments) == 0 {
			continue
		}

		s.prevHead = s.Head()
		s.steer()
		boosting := s.Boosting && s.canBoost()
		v := s.speed()

		head := Point{
			X: s.prevHead.X + math.Cos(s.Angle)*v,
			Y: s.prevHead.Y + math.Sin(s.Angle)*v,
		}
		if s.has(PowerUpGhost) && e.outside(head) {
			head = e.wrapThroughCenter(head)
		}

		s.Segments = append(s.Segments, Point{})
		copy(s.Segments[1:], s.Segments)
		s.Segments[0] = head

		if s.GrowPending > 0 {
			s.GrowPending--
			s.Length++
		}
		if s.Length >= MaxSegments {
			s.Length = MaxSegments
			s.GrowPending = 0
		}
		if len(s.Segments) > s.Length {
			s.Segments = s.Segments[:s.Length]
		}

		if !boosting {
			s.boostTicks = 0
			continue
		}
		s.boostTicks++
		if s.boostTicks < BoostCostInterval {
			continue
		}
		s.boostTicks = 0
		s.Length--
		if len(s.Segments) > s.Length {
			tail := s.Segments[len(s.Segments)-1]
			s.Segments = s.Segments[:s.Length]
			e.food = append(e.food, Food{Pos: tail, Type: FoodNormal, Value: CrumbFoodValue})
		}
	}
}

// wrapThroughCenter mirrors p through the center to just inside the
// opposite edge of the boundary.
func (e *Engine) wrapThroughCenter(p Point) Point {
	dx := p.X - e.center
	dy := p.Y - e.center
	d := math.Hypot(dx, dy)
	if d == 0 {
		return p
	}
	k := (e.boundaryRadius - GhostWrapMargin) / d
	return Point{X: e.center - dx*k, Y: e.center - dy*k}
}

// detectCollisions collects this tick's deaths without applying them.
// A snake is recorded at most once; a snake already marked dead is skipped
// by every later check.
func (e *Engine) detectCollisions() []death {
	var deaths []death
	dead := make(map[string]bool)
	mark := func(s *Snake, cause DeathCause, killer string) {
		if dead[s.ID] {
			return
		}
		dead[s.ID] = true
		deaths = append(deaths, death{snake: s, cause: cause, killer: killer})
	}

	e.living = e.living[:0]
	for _, id := range e.order {
		if s := e.snakes[id]; s.Alive && len(s.Segments) > 0 {
			e.living = append(e.living, s)
		}
	}

	for _, s := range e.living {
		head := s.Head()
		if !s.has(PowerUpGhost) && e.outside(head) {
			mark(s, CauseBoundary, "")
			continue
		}
		if s.has(PowerUpShield) {
			continue
		}
		r2 := SelfCollisionRadius * SelfCollisionRadius
		for i := s.selfGrace(); i < len(s.Segments); i++ {
			if head.dist2(s.Segments[i]) < r2 {
				mark(s, CauseSelf, "")
				break
			}
		}
	}

	for _, p := range e.candidatePairs() {
		a, b := e.living[p.A], e.living[p.B]
		if dead[a.ID] || dead[b.ID] {
			continue
		}
		ha, hb := a.Head(), b.Head()

		if ha.dist2(hb) < HeadOnRadius*HeadOnRadius {
			// The head closer to the other's previous head ran into it.
			collider, other := a, b
			if hb.dist2(a.prevHead) < ha.dist2(b.prevHead) {
				collider, other = b, a
			}
			if !collider.has(PowerUpShield) {
				mark(collider, CauseHeadOn, other.ID)
			}
			continue
		}

		if vulnerableToBody(a) && hitsBody(ha, b) {
			mark(a, CauseBody, b.ID)
		}
		if !dead[a.ID] && vulnerableToBody(b) && hitsBody(hb, a) {
			mark(b, CauseBody, a.ID)
		}
	}
	return deaths
}

// candidatePairs runs the broad phase over e.living. Pairs are index pairs
// into e.living, ordered so evaluation follows spawn order.
func (e *Engine) candidatePairs() []spatial.Pair {
	e.bounds = e.bounds[:0]
	for _, s := range e.living {
		minX, maxX := s.Segments[0].X, s.Segments[0].X
		for _, p := range s.Segments[1:] {
			minX = math.Min(minX, p.X)
			maxX = math.Max(maxX, p.X)
		}
		e.bounds = append(e.bounds, spatial.Interval{
			Min: minX - BodyCollisionRadius,
			Max: maxX + BodyCollisionRadius,
		})
	}
	return e.sap.Overlaps(e.bounds)
}

func vulnerableToBody(s *Snake) bool {
	return !s.has(PowerUpGhost) && !s.has(PowerUpShield)
}

// hitsBody tests head against other's body past the grace window behind
// other's own head.
func hitsBody(head Point, other *Snake) bool {
	r2 := BodyCollisionRadius * BodyCollisionRadius
	for i := BodyGraceSegments; i < len(other.Segments); i++ {
		if head.dist2(other.Segments[i]) < r2 {
			return true
		}
	}
	return false
}

// applyDeaths kills, scatters corpse food and credits killers.
func (e *Engine) applyDeaths(deaths []death) {
	for _, d := range deaths {
		s := d.snake
		s.Alive = false
		s.Boosting = false
		s.DeathTick = e.tick
		s.DeathCause = d.cause
		s.KilledBy = d.killer

		for i := 0; i < len(s.Segments); i += DeathFoodStride {
			p := Point{
				X: s.Segments[i].X + (e.rng.Float64()*2-1)*DeathFoodJitter,
				Y: s.Segments[i].Y + (e.rng.Float64()*2-1)*DeathFoodJitter,
			}
			if e.outside(p) {
				continue
			}
			e.food = append(e.food, Food{Pos: p, Type: FoodNormal, Value: DeathFoodValue})
		}

		if killer, ok := e.snakes[d.killer]; ok {
			killer.Kills++
			killer.Score += KillScore
			e.emit(KillEvent{
				KillerID:   killer.ID,
				KillerName: killer.Name,
				VictimID:   s.ID,
				VictimName: s.Name,
			})
		}
		e.emit(DeathEvent{
			PlayerID: s.ID,
			Name:     s.Name,
			Cause:    d.cause,
			KilledBy: d.killer,
			Score:    s.Score,
			Length:   s.Length,
			Pos:      s.Head(),
		})
	}
}

// consumeFood lets every living snake eat every food item in reach.
func (e *Engine) consumeFood() {
	if len(e.food) == 0 {
		return
	}

	e.foodGrid.Reset()
	for i, f := range e.food {
		e.foodGrid.Insert(uint32(i), f.Pos.X, f.Pos.Y)
	}
	if cap(e.eaten) < len(e.food) {
		e.eaten = make([]bool, len(e.food))
	}
	e.eaten = e.eaten[:len(e.food)]
	for i := range e.eaten {
		e.eaten[i] = false
	}

	r2 := FoodPickupRadius * FoodPickupRadius
	anyEaten := false
	for _, id := range e.order {
		s := e.snakes[id]
		if !s.Alive || len(s.Segments) == 0 {
			continue
		}
		head := s.Head()
		for _, idx := range e.foodGrid.Query(head.X, head.Y, FoodPickupRadius) {
			if e.eaten[idx] {
				continue
			}
			f := e.food[idx]
			if head.dist2(f.Pos) > r2 {
				continue
			}
			e.eaten[idx] = true
			anyEaten = true
			s.GrowPending += f.Type.growth()
			s.Score += f.Value
			e.emit(EatEvent{PlayerID: s.ID, FoodType: f.Type, Value: f.Value, Pos: f.Pos})
		}
	}

	if !anyEaten {
		return
	}
	kept := e.food[:0]
	for i, f := range e.food {
		if !e.eaten[i] {
			kept = append(kept, f)
		}
	}
	e.food = kept
}

// pickUpPowerUps grants at most one power-up per snake per tick.
func (e *Engine) pickUpPowerUps() {
	r2 := PowerUpPickupRadius * PowerUpPickupRadius
	for _, id := range e.order {
		s := e.snakes[id]
		if !s.Alive || len(s.Segments) == 0 {
			continue
		}
		head := s.Head()
		for i, pu := range e.powerUps {
			if head.dist2(pu.Pos) > r2 {
				continue
			}
			// Picking the same type again restarts the timer.
			s.Effects[pu.Type] = pu.Type.Duration()
			s.Score += PowerUpScore
			e.emit(PowerUpPickupEvent{PlayerID: s.ID, PowerUpID: pu.ID, Type: pu.Type, Pos: pu.Pos})
			e.powerUps = append(e.powerUps[:i], e.powerUps[i+1:]...)
			break
		}
	}
}

func (e *Engine) countDownEffects() {
	for _, id := range e.order {
		s := e.snakes[id]
		if !s.Alive {
			continue
		}
		for _, t := range powerUpCatalog {
			remaining, ok := s.Effects[t]
			if !ok {
				continue
			}
			remaining--
			if remaining > 0 {
				s.Effects[t] = remaining
				continue
			}
			delete(s.Effects, t)
			e.emit(PowerUpExpiredEvent{PlayerID: s.ID, Type: t})
		}
	}
}

func (e *Engine) despawnPowerUps() {
	kept := e.powerUps[:0]
	for _, pu := range e.powerUps {
		if e.tick-pu.SpawnTick > PowerUpLifetime {
			e.emit(PowerUpDespawnEvent{PowerUpID: pu.ID, Type: pu.Type})
			continue
		}
		kept = append(kept, pu)
	}
	e.powerUps = kept
}

// maintainFood tops food up to the target for the current living count.
func (e *Engine) maintainFood() {
	target := FoodBase + FoodPerSnake*e.AliveCount()
	for len(e.food) < target {
		pos := e.randomPoint(e.boundaryRadius * FoodRadiusFactor)
		f := Food{Pos: pos, Type: FoodNormal, Value: NormalFoodValue}
		if e.rng.Float64() < BonusFoodChance {
			f.Type = FoodBonus
			f.Value = BonusFoodValue
		}
		e.food = append(e.food, f)
	}
}

func (e *Engine) spawnPowerUp() {
	if len(e.powerUps) >= MaxFieldPowerUps || e.AliveCount() == 0 {
		return
	}
	if e.rng.Float64() >= PowerUpSpawnChance {
		return
	}
	t := powerUpCatalog[e.rng.Intn(len(powerUpCatalog))]
	e.nextPowerUp++
	e.powerUps = append(e.powerUps, PowerUp{
		ID:        fmt.Sprintf("pu-%d", e.nextPowerUp),
		Pos:       e.randomPoint(e.boundaryRadius * PowerUpRadiusFactor),
		Type:      t,
		SpawnTick: e.tick,
	})
}
