// Package room runs matches. Each Room is an actor: one goroutine owns the
// members, the engine and every timer, and all outside calls arrive as
// commands on its inbox.
package room

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"snake-arena/internal/game"
	"snake-arena/internal/metrics"
	"snake-arena/internal/protocol"
)

// Options wires a room into its surroundings.
type Options struct {
	Settings   Settings
	OnGameOver GameOverFunc
	// OnEmpty is called from the room goroutine when the last member leaves.
	OnEmpty func(code string)
	// NewSimulation builds the engine for a round. Nil uses game.NewEngine.
	NewSimulation func(worldSize float64) Simulation
}

// Room owns one match lifecycle.
type Room struct {
	code     string
	cfg      Config
	settings Settings

	inbox    chan any
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// Owned by the room goroutine.
	state      State
	players    map[string]*Player
	order      []string // join order
	creatorID  string
	round      int
	generation uint64
	engine     Simulation
	spawned    int
	roundStart time.Time
	countdown  int
	recent     *eventRing
	ticker     *time.Ticker
	tickC      <-chan time.Time
	sched      *scheduler
	lastResult *protocol.GameOver
	closed     bool
	createdAt  time.Time

	onGameOver    GameOverFunc
	onEmpty       func(code string)
	newSimulation func(worldSize float64) Simulation

	pubMu sync.RWMutex
	pub   Info
}

// New creates a room. Call Run to start it.
func New(code string, cfg Config, opts Options) *Room {
	settings := opts.Settings.withDefaults()
	newSim := opts.NewSimulation
	if newSim == nil {
		newSim = newEngine
	}

	r := &Room{
		code:          code,
		cfg:           cfg,
		settings:      settings,
		inbox:         make(chan any, settings.InboxSize),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		state:         StateWaiting,
		players:       make(map[string]*Player),
		recent:        newEventRing(settings.RecentEvents),
		onGameOver:    opts.OnGameOver,
		onEmpty:       opts.OnEmpty,
		newSimulation: newSim,
		createdAt:     time.Now(),
	}
	r.sched = newScheduler(r.postTimer)
	r.publish()
	return r
}

// Code returns the room's short code.
func (r *Room) Code() string { return r.code }

// Config returns the room's configuration.
func (r *Room) Config() Config { return r.cfg }

// Run processes commands and ticks until Stop.
func (r *Room) Run() {
	defer close(r.done)
	defer r.shutdown()

	for {
		select {
		case <-r.quit:
			return
		case cmd := <-r.inbox:
			r.handle(cmd)
		case <-r.tickC:
			r.tick()
		}
	}
}

// Stop ends the room goroutine. Safe to call more than once and from the
// room goroutine itself.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}

// Done is closed once the room goroutine has exited.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) shutdown() {
	r.closed = true
	r.generation++
	r.stopTicker()
	r.sched.stopAll()
	r.engine = nil
	for _, p := range r.players {
		if p.session != nil {
			_ = p.session.Close()
		}
	}
	r.publish()
}

// postTimer delivers a timer firing unless the room is gone.
func (r *Room) postTimer(msg timerFired) {
	select {
	case r.inbox <- msg:
	case <-r.quit:
	}
}

// call posts a command and waits for its reply.
func call[T any](ctx context.Context, r *Room, build func(reply chan T) any) (T, error) {
	var zero T
	reply := make(chan T, 1)
	select {
	case r.inbox <- build(reply):
	case <-r.done:
		return zero, ErrRoomClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		// The reply may have been sent just before the room stopped.
		select {
		case v := <-reply:
			return v, nil
		default:
		}
		return zero, ErrRoomClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Join admits a player, as a participant while the room is between rounds
// and as a spectator while a round is counting down or running.
func (r *Room) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	rep, err := call(ctx, r, func(reply chan joinReply) any { return joinCmd{req: req, reply: reply} })
	if err != nil {
		return JoinResult{}, err
	}
	return rep.res, rep.err
}

// Leave removes a player right away.
func (r *Room) Leave(ctx context.Context, playerID string) error {
	rep, err := call(ctx, r, func(reply chan error) any { return leaveCmd{playerID: playerID, reply: reply} })
	if err != nil {
		return err
	}
	return rep
}

// Reconnect reattaches a session to a member inside the grace window.
func (r *Room) Reconnect(ctx context.Context, playerID, token string, s Session) error {
	rep, err := call(ctx, r, func(reply chan error) any {
		return reconnectCmd{playerID: playerID, token: token, session: s, reply: reply}
	})
	if err != nil {
		return err
	}
	return rep
}

// StartCountdown begins a round on behalf of playerID.
func (r *Room) StartCountdown(ctx context.Context, playerID string) error {
	rep, err := call(ctx, r, func(reply chan error) any { return startCmd{playerID: playerID, reply: reply} })
	if err != nil {
		return err
	}
	return rep
}

// FullGameState returns the resync payload while a round is running.
func (r *Room) FullGameState(ctx context.Context) (protocol.GameState, bool) {
	rep, err := call(ctx, r, func(reply chan stateReply) any { return stateQuery{reply: reply} })
	if err != nil {
		return protocol.GameState{}, false
	}
	return rep.state, rep.ok
}

// Disconnect reports that s, the session of playerID, went away. Reports
// for a session the player no longer uses are ignored.
func (r *Room) Disconnect(playerID string, s Session) {
	r.post(disconnectCmd{playerID: playerID, session: s})
}

// HandleInput forwards a steering intent. It never blocks; input is dropped
// when the angle is not finite or the inbox is full.
func (r *Room) HandleInput(playerID string, angle float64, boosting bool) {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return
	}
	select {
	case r.inbox <- inputCmd{playerID: playerID, angle: angle, boosting: boosting}:
	default:
		metrics.RecordDroppedInput()
	}
}

// RequestResync asks for a fresh full-state push to playerID.
func (r *Room) RequestResync(playerID string) {
	select {
	case r.inbox <- resyncCmd{playerID: playerID}:
	default:
	}
}

// post delivers a fire-and-forget command that must not be lost.
func (r *Room) post(cmd any) {
	select {
	case r.inbox <- cmd:
	case <-r.done:
	}
}

// Info returns the latest published summary.
func (r *Room) Info() Info {
	r.pubMu.RLock()
	defer r.pubMu.RUnlock()
	return r.pub
}

func (r *Room) handle(cmd any) {
	switch c := cmd.(type) {
	case joinCmd:
		res, err := r.handleJoin(c.req)
		c.reply <- joinReply{res: res, err: err}
	case leaveCmd:
		c.reply <- r.handleLeave(c.playerID)
	case disconnectCmd:
		r.handleDisconnect(c.playerID, c.session)
	case reconnectCmd:
		c.reply <- r.handleReconnect(c.playerID, c.token, c.session)
	case startCmd:
		c.reply <- r.handleStart(c.playerID)
	case inputCmd:
		r.handleInput(c.playerID, c.angle, c.boosting)
		return
	case resyncCmd:
		r.handleResync(c.playerID)
		return
	case stateQuery:
		state, ok := r.fullGameState()
		c.reply <- stateReply{state: state, ok: ok}
		return
	case timerFired:
		r.handleTimer(c)
	default:
		log.Printf("⚠️ Room %s: unknown command %T", r.code, cmd)
		return
	}
	r.publish()
}

func (r *Room) handleInput(playerID string, angle float64, boosting bool) {
	if r.state != StatePlaying || r.engine == nil {
		return
	}
	p, ok := r.players[playerID]
	if !ok || !p.Connected {
		return
	}
	r.engine.QueueInput(playerID, angle, boosting)
}

func (r *Room) handleResync(playerID string) {
	p, ok := r.players[playerID]
	if !ok || p.session == nil {
		return
	}
	if state, ok := r.fullGameState(); ok {
		r.sendTo(p, protocol.MsgResync, state)
	}
}

// fullGameState is only available mid-round.
func (r *Room) fullGameState() (protocol.GameState, bool) {
	if r.state != StatePlaying || r.engine == nil {
		return protocol.GameState{}, false
	}
	return protocol.GameState{
		State:       r.engine.FullState(),
		Leaderboard: r.engine.Leaderboard(),
		Events:      r.recent.items(),
	}, true
}

func (r *Room) handleTimer(t timerFired) {
	switch t.key.kind {
	case timerCountdown:
		if t.gen != r.generation || r.state != StateCountdown {
			return
		}
		r.sched.done(t.key)
		r.countdownStep()
	case timerDeadline:
		if t.gen != r.generation || r.state != StatePlaying {
			return
		}
		r.sched.done(t.key)
		r.endGame(ReasonTimeUp)
	case timerGrace:
		p, ok := r.players[t.key.playerID]
		if !ok || p.Connected || p.graceEpoch != t.epoch {
			return
		}
		r.sched.done(t.key)
		log.Printf("⌛ Room %s: %s did not return in time", r.code, p.Name)
		r.removePlayer(p.ID)
	}
}

// publish copies the summary other goroutines may read.
func (r *Room) publish() {
	info := Info{
		Code:       r.code,
		Name:       r.cfg.Name,
		Mode:       r.cfg.Mode,
		WorldSize:  r.cfg.WorldSize,
		State:      r.state,
		Players:    len(r.players),
		MaxPlayers: r.cfg.MaxPlayers,
		Round:      r.round,
		CreatorID:  r.creatorID,
		Members:    r.memberInfos(),
		CreatedAt:  r.createdAt,
		LastResult: r.lastResult,
	}
	for _, p := range r.players {
		if p.Connected {
			info.Connected++
		}
	}
	if len(r.players) == 0 {
		info.EmptySince = r.createdAt
	}

	r.pubMu.Lock()
	info.LastTick = r.pub.LastTick
	r.pub = info
	r.pubMu.Unlock()
}

func (r *Room) markTick() {
	now := time.Now()
	r.pubMu.Lock()
	r.pub.LastTick = now
	r.pubMu.Unlock()
}

func (r *Room) memberInfos() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.players[id].info(r.creatorID))
	}
	return out
}

// broadcast sends one message to every connected member except skip.
// Each encoding is marshalled once.
func (r *Room) broadcast(t string, payload any, skip string) {
	frames := make(map[protocol.Encoding][]byte, 2)
	for _, id := range r.order {
		if id == skip {
			continue
		}
		r.deliver(r.players[id], t, payload, frames)
	}
}

func (r *Room) sendTo(p *Player, t string, payload any) {
	r.deliver(p, t, payload, nil)
}

func (r *Room) deliver(p *Player, t string, payload any, frames map[protocol.Encoding][]byte) {
	if p == nil || p.session == nil {
		return
	}
	codec := p.session.Codec()
	frame, ok := frames[codec.Encoding()]
	if !ok {
		b, err := codec.Encode(t, payload)
		if err != nil {
			log.Printf("⚠️ Room %s: encode %s failed: %v", r.code, t, err)
			return
		}
		frame = b
		if frames != nil {
			frames[codec.Encoding()] = frame
		}
	}
	if err := p.session.Send(frame); err != nil {
		metrics.RecordDroppedMessage()
		log.Printf("⚠️ Room %s: send %s to %s failed: %v", r.code, t, p.ID, err)
	}
}

func (r *Room) worldSize() float64 {
	return game.WorldSizeForPreset(r.cfg.WorldSize)
}
