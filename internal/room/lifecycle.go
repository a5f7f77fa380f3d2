package room

import (
	"context"
	"fmt"
	"log"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/metrics"
	"snake-arena/internal/protocol"
)

func (r *Room) handleStart(playerID string) error {
	if playerID != r.creatorID {
		return ErrNotCreator
	}
	if r.state != StateWaiting && r.state != StateEnded {
		return ErrInvalidState
	}
	if r.connectedCount() == 0 {
		return ErrNoPlayers
	}
	r.startCountdown()
	return nil
}

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// startCountdown enters COUNTDOWN and opens a new round. Anything left
// from the previous round is discarded here.
func (r *Room) startCountdown() {
	r.generation++
	r.round++
	r.state = StateCountdown
	r.engine = nil
	r.countdown = r.settings.CountdownSeconds

	log.Printf("⏱️ Room %s: round %d starts in %ds", r.code, r.round, r.countdown)
	r.broadcast(protocol.MsgCountdownStart, protocol.CountdownStart{
		Seconds: r.countdown,
		Round:   r.round,
	}, "")

	if r.countdown <= 0 {
		r.startPlaying()
		return
	}
	r.sched.schedule(timerKey{kind: timerCountdown}, r.settings.CountdownStep, r.generation, 0)
}

func (r *Room) countdownStep() {
	r.countdown--
	r.broadcast(protocol.MsgCountdownTick, protocol.CountdownTick{Remaining: r.countdown}, "")
	if r.countdown > 0 {
		r.sched.schedule(timerKey{kind: timerCountdown}, r.settings.CountdownStep, r.generation, 0)
		return
	}
	r.startPlaying()
}

// startPlaying builds a fresh engine and spawns every connected participant.
func (r *Room) startPlaying() {
	engine := r.newSimulation(r.worldSize())
	spawned := 0
	for _, id := range r.order {
		p := r.players[id]
		if !p.Connected || p.Spectating {
			continue
		}
		engine.SpawnSnake(p.ID, p.Name, p.Pattern, p.Color)
		p.inRound = true
		p.Alive = true
		p.Score = 0
		p.Kills = 0
		spawned++
	}

	if spawned == 0 {
		log.Printf("⚠️ Room %s: nobody left to play round %d, back to waiting", r.code, r.round)
		r.generation++
		r.state = StateWaiting
		r.broadcast(protocol.MsgError, protocol.Error{Message: ErrNoPlayers.Error()}, "")
		return
	}

	r.generation++
	r.state = StatePlaying
	r.engine = engine
	r.spawned = spawned
	r.roundStart = time.Now()
	r.recent.reset()

	started := protocol.GameStarted{
		Round: r.round,
		Mode:  string(r.cfg.Mode),
		State: engine.FullState(),
	}
	if r.cfg.Mode == ModeTimed {
		started.Duration = r.cfg.Duration.Seconds()
		r.sched.schedule(timerKey{kind: timerDeadline}, r.cfg.Duration, r.generation, 0)
	}
	log.Printf("🐍 Room %s: round %d started with %d snakes", r.code, r.round, spawned)
	r.broadcast(protocol.MsgGameStarted, started, "")

	r.ticker = time.NewTicker(time.Second / time.Duration(r.settings.TickRate))
	r.tickC = r.ticker.C
}

func (r *Room) stopTicker() {
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
	r.tickC = nil
}

// tick advances the engine one step and fans the result out.
func (r *Room) tick() {
	if r.state != StatePlaying || r.engine == nil {
		return
	}
	start := time.Now()

	res := r.engine.Update()
	r.mirrorPlayers()

	events := protocol.EventViews(res.Tick, res.Events)
	r.recent.push(events...)

	r.broadcast(protocol.MsgTick, protocol.Tick{
		Tick:        res.Tick,
		State:       r.engine.FullState(),
		Leaderboard: r.engine.Leaderboard(),
		Events:      events,
		Keyframe:    res.Tick%r.settings.KeyframeInterval == 0,
	}, "")

	r.checkGameEnd()
	if r.state == StatePlaying && res.Tick%r.settings.KeyframeInterval == 0 {
		r.publish()
	}
	r.markTick()
	metrics.RecordTick(time.Since(start))
}

// mirrorPlayers copies snake state onto members. A dead snake's owner
// becomes a spectator.
func (r *Room) mirrorPlayers() {
	for _, id := range r.order {
		p := r.players[id]
		if !p.inRound {
			continue
		}
		st, ok := r.engine.Stats(id)
		if !ok {
			continue
		}
		p.Alive = st.Alive
		p.Score = st.Score
		p.Kills = st.Kills
		if !st.Alive {
			p.Spectating = true
		}
	}
}

// checkGameEnd applies the mode's end-condition policy.
func (r *Room) checkGameEnd() {
	if r.state != StatePlaying || r.engine == nil {
		return
	}
	if reason, over := r.endReason(r.engine.AliveCount()); over {
		r.endGame(reason)
	}
}

// connectedAlive counts connected round participants whose snake lives.
func (r *Room) connectedAlive() int {
	n := 0
	for _, id := range r.order {
		p := r.players[id]
		if !p.inRound || !p.Connected || p.Spectating {
			continue
		}
		if st, ok := r.engine.Stats(id); ok && st.Alive {
			n++
		}
	}
	return n
}

func (r *Room) endReason(alive int) (EndReason, bool) {
	switch r.cfg.Mode {
	case ModeLastStanding:
		if r.spawned >= 2 && alive <= 1 {
			if alive == 1 {
				return ReasonWinner, true
			}
			return ReasonDraw, true
		}
		if r.spawned == 1 && alive == 0 {
			return ReasonGameOver, true
		}
	case ModeFreePlay:
		// Snakes coasting through a reconnect grace do not hold the round open.
		if r.spawned >= 1 && r.connectedAlive() == 0 {
			return ReasonAllDead, true
		}
	case ModeTimed:
		if r.spawned >= 2 && alive <= 1 {
			if alive == 1 {
				return ReasonWinner, true
			}
			return ReasonAllDead, true
		}
		if r.spawned == 1 && alive == 0 {
			return ReasonAllDead, true
		}
	}
	return "", false
}

// endGame closes the round: PLAYING → ENDED.
func (r *Room) endGame(reason EndReason) {
	if r.state != StatePlaying || r.engine == nil {
		return
	}
	r.generation++
	r.stopTicker()
	r.sched.cancel(timerKey{kind: timerDeadline})
	r.sched.cancel(timerKey{kind: timerCountdown})

	standings := r.engine.Standings()
	var winner *game.Standing
	if reason == ReasonWinner && len(standings) > 0 {
		w := standings[0]
		winner = &w
	}
	ended := time.Now()
	duration := ended.Sub(r.roundStart).Seconds()

	over := protocol.GameOver{
		Reason:    string(reason),
		Standings: standings,
		Winner:    winner,
		Duration:  duration,
		Round:     r.round,
	}
	r.state = StateEnded
	r.engine = nil
	r.lastResult = &over

	log.Printf("🏁 Room %s: round %d over (%s) after %.1fs", r.code, r.round, reason, duration)
	metrics.RecordMatchEnd(string(r.cfg.Mode), string(reason))
	r.broadcast(protocol.MsgGameOver, over, "")

	for _, p := range r.players {
		p.Alive = false
		p.Spectating = false
		p.inRound = false
	}
	r.publish()

	if r.onGameOver != nil {
		summary := MatchSummary{
			RoomCode:  r.code,
			RoomName:  r.cfg.Name,
			Mode:      r.cfg.Mode,
			Round:     r.round,
			Reason:    reason,
			Standings: standings,
			Winner:    winner,
			Duration:  duration,
			StartedAt: r.roundStart,
			EndedAt:   ended,
		}
		go r.runGameOverHook(r.Info(), summary)
	}
}

// runGameOverHook isolates the room from hook failures.
func (r *Room) runGameOverHook(info Info, summary MatchSummary) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("⚠️ Room %s: game-over hook panicked: %v", r.code, rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.settings.HookTimeout)
	defer cancel()

	if err := r.onGameOver(ctx, info, summary); err != nil {
		log.Printf("⚠️ Room %s: game-over hook failed: %v", r.code, fmt.Errorf("round %d: %w", summary.Round, err))
	}
}
