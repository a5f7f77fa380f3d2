package room

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/protocol"
)

// fakeSession records every frame a room sends.
type fakeSession struct {
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{frames: make(chan []byte, 4096)}
}

func (s *fakeSession) Codec() protocol.Codec { return protocol.JSONCodec{} }

func (s *fakeSession) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session closed")
	}
	select {
	case s.frames <- frame:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// drain returns every frame received so far.
func (s *fakeSession) drain(t *testing.T) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case b := <-s.frames:
			env, err := protocol.JSONCodec{}.Decode(b)
			if err != nil {
				t.Fatalf("Bad frame %s: %v", b, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

// await reads frames until one of type typ arrives.
func (s *fakeSession) await(t *testing.T, typ string, timeout time.Duration) protocol.Envelope {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case b := <-s.frames:
			env, err := protocol.JSONCodec{}.Decode(b)
			if err != nil {
				t.Fatalf("Bad frame %s: %v", b, err)
			}
			if env.T == typ {
				return env
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %q", typ)
			return protocol.Envelope{}
		}
	}
}

func types(envs []protocol.Envelope) []string {
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.T
	}
	return out
}

func find(envs []protocol.Envelope, typ string) (protocol.Envelope, bool) {
	for _, e := range envs {
		if e.T == typ {
			return e, true
		}
	}
	return protocol.Envelope{}, false
}

func decode[T any](t *testing.T, env protocol.Envelope) T {
	t.Helper()
	v, err := protocol.DecodePayload[T](protocol.JSONCodec{}, env)
	if err != nil {
		t.Fatalf("Decode %s: %v", env.T, err)
	}
	return v
}

type fakeSnake struct {
	name  string
	alive bool
	score int
}

type fakeInput struct {
	angle    float64
	boosting bool
}

// fakeSim is a scripted Simulation: every live snake scores one point per
// tick and dies on the tick named in killAt.
type fakeSim struct {
	mu      sync.Mutex
	tick    uint64
	order   []string
	snakes  map[string]*fakeSnake
	killAt  map[string]uint64
	inputs  map[string]fakeInput
	removed []string
}

func newFakeSim(killAt map[string]uint64) *fakeSim {
	if killAt == nil {
		killAt = map[string]uint64{}
	}
	return &fakeSim{
		snakes: make(map[string]*fakeSnake),
		killAt: killAt,
		inputs: make(map[string]fakeInput),
	}
}

func (f *fakeSim) SpawnSnake(id, name, pattern, color string) game.SnakeView {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snakes[id]; !ok {
		f.order = append(f.order, id)
	}
	f.snakes[id] = &fakeSnake{name: name, alive: true}
	return game.SnakeView{ID: id, Name: name, Alive: true}
}

func (f *fakeSim) RemoveSnake(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.snakes[id]; !ok {
		return
	}
	delete(f.snakes, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	f.removed = append(f.removed, id)
}

func (f *fakeSim) QueueInput(id string, angle float64, boosting bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[id] = fakeInput{angle: angle, boosting: boosting}
}

func (f *fakeSim) Update() game.TickResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tick++
	res := game.TickResult{Tick: f.tick}
	for _, id := range f.order {
		s := f.snakes[id]
		if !s.alive {
			continue
		}
		if at, ok := f.killAt[id]; ok && at == f.tick {
			s.alive = false
			res.Events = append(res.Events, game.DeathEvent{
				PlayerID: id,
				Name:     s.name,
				Cause:    game.CauseBoundary,
				Score:    s.score,
			})
			continue
		}
		s.score++
	}
	return res
}

func (f *fakeSim) FullState() game.FullSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	snakes := make(map[string]game.SnakeView, len(f.snakes))
	for id, s := range f.snakes {
		snakes[id] = game.SnakeView{ID: id, Name: s.name, Alive: s.alive, Score: s.score}
	}
	return game.FullSnapshot{Tick: f.tick, WorldSize: game.WorldSmall, Snakes: snakes}
}

func (f *fakeSim) Leaderboard() game.Leaderboard {
	f.mu.Lock()
	defer f.mu.Unlock()
	lb := game.Leaderboard{Total: len(f.snakes)}
	for _, id := range f.order {
		s := f.snakes[id]
		e := game.LeaderboardEntry{ID: id, Name: s.name, Score: s.score, Alive: s.alive}
		if s.alive {
			lb.Alive = append(lb.Alive, e)
			lb.AliveCount++
		} else {
			lb.Dead = append(lb.Dead, e)
		}
	}
	return lb
}

func (f *fakeSim) Standings() []game.Standing {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]game.Standing, 0, len(f.order))
	for _, id := range f.order {
		s := f.snakes[id]
		out = append(out, game.Standing{ID: id, Name: s.name, Score: s.score, Alive: s.alive})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Alive != out[j].Alive {
			return out[i].Alive
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (f *fakeSim) AliveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.snakes {
		if s.alive {
			n++
		}
	}
	return n
}

func (f *fakeSim) Stats(id string) (game.SnakeStats, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snakes[id]
	if !ok {
		return game.SnakeStats{}, false
	}
	return game.SnakeStats{Alive: s.alive, Score: s.score}, true
}

func (f *fakeSim) removedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeSim) input(id string) (fakeInput, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.inputs[id]
	return in, ok
}

// simFactory hands out fakeSims sharing one kill script and remembers them.
type simFactory struct {
	mu     sync.Mutex
	killAt map[string]uint64
	sims   []*fakeSim
}

func (f *simFactory) build(float64) Simulation {
	f.mu.Lock()
	defer f.mu.Unlock()
	script := make(map[string]uint64, len(f.killAt))
	for k, v := range f.killAt {
		script[k] = v
	}
	sim := newFakeSim(script)
	f.sims = append(f.sims, sim)
	return sim
}

func (f *simFactory) last() *fakeSim {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sims) == 0 {
		return nil
	}
	return f.sims[len(f.sims)-1]
}

func (f *simFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sims)
}
