package game

import (
	"math"
	"sort"
)

// SnakeView is a rounded, detached copy of a snake for the wire.
type SnakeView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Pattern    string        `json:"pattern,omitempty"`
	Color      string        `json:"color,omitempty"`
	Segments   []Point       `json:"segments"`
	Angle      float64       `json:"angle"`
	Alive      bool          `json:"alive"`
	Score      int           `json:"score"`
	Kills      int           `json:"kills"`
	Length     int           `json:"length"`
	Boosting   bool          `json:"boosting"`
	Effects    []PowerUpType `json:"effects"`
	DeathTick  uint64        `json:"deathTick,omitempty"`
	DeathCause DeathCause    `json:"deathCause,omitempty"`
	KilledBy   string        `json:"killedBy,omitempty"`
}

type FoodView struct {
	X    float64  `json:"x"`
	Y    float64  `json:"y"`
	Type FoodType `json:"type"`
}

type PowerUpView struct {
	ID   string      `json:"id"`
	X    float64     `json:"x"`
	Y    float64     `json:"y"`
	Type PowerUpType `json:"type"`
}

// FullSnapshot is a complete keyframe of the world.
type FullSnapshot struct {
	Tick           uint64               `json:"tick"`
	WorldSize      float64              `json:"worldSize"`
	BoundaryRadius float64              `json:"boundaryRadius"`
	CenterX        float64              `json:"centerX"`
	CenterY        float64              `json:"centerY"`
	Snakes         map[string]SnakeView `json:"snakes"`
	Food           []FoodView           `json:"food"`
	PowerUps       []PowerUpView        `json:"powerups"`
}

type LeaderboardEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Score     int    `json:"score"`
	Kills     int    `json:"kills"`
	Length    int    `json:"length"`
	Alive     bool   `json:"alive"`
	DeathTick uint64 `json:"deathTick,omitempty"`
}

type Leaderboard struct {
	Alive      []LeaderboardEntry `json:"alive"`
	Dead       []LeaderboardEntry `json:"dead"`
	Total      int                `json:"total"`
	AliveCount int                `json:"aliveCount"`
}

// Standing is one row of the end-of-round placement list.
type Standing struct {
	Rank       int        `json:"rank"`
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Color      string     `json:"color,omitempty"`
	Score      int        `json:"score"`
	Kills      int        `json:"kills"`
	Length     int        `json:"length"`
	Alive      bool       `json:"alive"`
	DeathCause DeathCause `json:"deathCause,omitempty"`
	KilledBy   string     `json:"killedBy,omitempty"`
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func (s *Snake) view() SnakeView {
	segs := make([]Point, len(s.Segments))
	for i, p := range s.Segments {
		segs[i] = Point{X: round1(p.X), Y: round1(p.Y)}
	}
	effects := make([]PowerUpType, 0, len(s.Effects))
	for _, t := range powerUpCatalog {
		if s.Effects[t] > 0 {
			effects = append(effects, t)
		}
	}
	v := SnakeView{
		ID:       s.ID,
		Name:     s.Name,
		Pattern:  s.Pattern,
		Color:    s.Color,
		Segments: segs,
		Angle:    round3(s.Angle),
		Alive:    s.Alive,
		Score:    s.Score,
		Kills:    s.Kills,
		Length:   s.Length,
		Boosting: s.Alive && s.Boosting && s.canBoost(),
		Effects:  effects,
	}
	if !s.Alive {
		v.DeathTick = s.DeathTick
		v.DeathCause = s.DeathCause
		v.KilledBy = s.KilledBy
	}
	return v
}

func (s *Snake) entry() LeaderboardEntry {
	e := LeaderboardEntry{
		ID:     s.ID,
		Name:   s.Name,
		Color:  s.Color,
		Score:  s.Score,
		Kills:  s.Kills,
		Length: s.Length,
		Alive:  s.Alive,
	}
	if !s.Alive {
		e.DeathTick = s.DeathTick
	}
	return e
}

// FullState returns a rounded snapshot of everything in the world.
func (e *Engine) FullState() FullSnapshot {
	snap := FullSnapshot{
		Tick:           e.tick,
		WorldSize:      e.worldSize,
		BoundaryRadius: e.boundaryRadius,
		CenterX:        e.center,
		CenterY:        e.center,
		Snakes:         make(map[string]SnakeView, len(e.snakes)),
		Food:           make([]FoodView, len(e.food)),
		PowerUps:       make([]PowerUpView, len(e.powerUps)),
	}
	for _, id := range e.order {
		snap.Snakes[id] = e.snakes[id].view()
	}
	for i, f := range e.food {
		snap.Food[i] = FoodView{X: round1(f.Pos.X), Y: round1(f.Pos.Y), Type: f.Type}
	}
	for i, pu := range e.powerUps {
		snap.PowerUps[i] = PowerUpView{ID: pu.ID, X: round1(pu.Pos.X), Y: round1(pu.Pos.Y), Type: pu.Type}
	}
	return snap
}

// Leaderboard ranks living snakes by score then length, followed by dead
// snakes with the most recent death first.
func (e *Engine) Leaderboard() Leaderboard {
	lb := Leaderboard{
		Alive: make([]LeaderboardEntry, 0, len(e.order)),
		Dead:  make([]LeaderboardEntry, 0),
		Total: len(e.order),
	}
	for _, id := range e.order {
		s := e.snakes[id]
		if s.Alive {
			lb.Alive = append(lb.Alive, s.entry())
		} else {
			lb.Dead = append(lb.Dead, s.entry())
		}
	}

	sort.SliceStable(lb.Alive, func(i, j int) bool {
		a, b := lb.Alive[i], lb.Alive[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		return a.ID < b.ID
	})
	sort.SliceStable(lb.Dead, func(i, j int) bool {
		a, b := lb.Dead[i], lb.Dead[j]
		if a.DeathTick != b.DeathTick {
			return a.DeathTick > b.DeathTick
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})
	lb.AliveCount = len(lb.Alive)
	return lb
}

// Standings is the final placement: alive before dead, then score, then
// length.
func (e *Engine) Standings() []Standing {
	out := make([]Standing, 0, len(e.order))
	for _, id := range e.order {
		s := e.snakes[id]
		st := Standing{
			ID:     s.ID,
			Name:   s.Name,
			Color:  s.Color,
			Score:  s.Score,
			Kills:  s.Kills,
			Length: s.Length,
			Alive:  s.Alive,
		}
		if !s.Alive {
			st.DeathCause = s.DeathCause
			st.KilledBy = s.KilledBy
		}
		out = append(out, st)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Alive != b.Alive {
			return a.Alive
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		return a.ID < b.ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
