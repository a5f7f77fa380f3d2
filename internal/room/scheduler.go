package room

import "time"

type timerKind uint8

const (
	timerCountdown timerKind = iota + 1
	timerDeadline
	timerGrace
)

type timerKey struct {
	kind     timerKind
	playerID string // grace timers only
}

// timerFired is posted to the room inbox when a deferred action is due.
// gen is the room generation at scheduling time; for grace timers epoch is
// the player's grace epoch. A firing whose tags no longer match is stale.
type timerFired struct {
	key   timerKey
	gen   uint64
	epoch uint64
}

// scheduler owns the room's deferred actions. Only the room goroutine calls
// its methods; the timers themselves just post back into the inbox.
type scheduler struct {
	timers map[timerKey]*time.Timer
	post   func(timerFired)
}

func newScheduler(post func(timerFired)) *scheduler {
	return &scheduler{
		timers: make(map[timerKey]*time.Timer),
		post:   post,
	}
}

// schedule replaces any pending timer under key.
func (s *scheduler) schedule(key timerKey, d time.Duration, gen, epoch uint64) {
	s.cancel(key)
	msg := timerFired{key: key, gen: gen, epoch: epoch}
	s.timers[key] = time.AfterFunc(d, func() { s.post(msg) })
}

func (s *scheduler) cancel(key timerKey) {
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// done forgets a timer that fired and was acted on.
func (s *scheduler) done(key timerKey) {
	delete(s.timers, key)
}

func (s *scheduler) pending(key timerKey) bool {
	_, ok := s.timers[key]
	return ok
}

func (s *scheduler) stopAll() {
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
