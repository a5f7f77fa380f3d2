package room

import (
	"log"
	"time"

	"snake-arena/internal/protocol"
)

func (r *Room) handleJoin(req JoinRequest) (JoinResult, error) {
	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}
	if _, exists := r.players[req.PlayerID]; exists {
		return JoinResult{}, ErrAlreadyJoined
	}

	spectating := r.state == StateCountdown || r.state == StatePlaying
	if !spectating && len(r.players) >= r.cfg.MaxPlayers {
		return JoinResult{}, ErrRoomFull
	}

	p := &Player{
		ID:         req.PlayerID,
		Name:       req.Name,
		Pattern:    req.Pattern,
		Color:      req.Color,
		Connected:  true,
		Spectating: spectating,
		JoinedAt:   time.Now(),
		session:    req.Session,
	}
	r.players[p.ID] = p
	r.order = append(r.order, p.ID)
	if r.creatorID == "" {
		r.creatorID = p.ID
	}

	log.Printf("👤 Room %s: %s joined (%d/%d, spectating=%v)", r.code, p.Name, len(r.players), r.cfg.MaxPlayers, spectating)

	r.sendTo(p, protocol.MsgRoomJoined, r.roomJoined(p, req.Token))
	r.broadcast(protocol.MsgPlayerJoined, protocol.PlayerJoined{
		Player:      p.info(r.creatorID),
		PlayerCount: len(r.players),
	}, p.ID)

	return JoinResult{
		PlayerID:   p.ID,
		Spectating: spectating,
		IsCreator:  p.ID == r.creatorID,
		State:      r.state,
	}, nil
}

// roomJoined is the welcome message; mid-round it carries the full state.
func (r *Room) roomJoined(p *Player, token string) protocol.RoomJoined {
	msg := protocol.RoomJoined{
		RoomCode:   r.code,
		RoomName:   r.cfg.Name,
		Mode:       string(r.cfg.Mode),
		State:      r.state.String(),
		WorldSize:  r.cfg.WorldSize,
		MaxPlayers: r.cfg.MaxPlayers,
		Round:      r.round,
		PlayerID:   p.ID,
		Token:      token,
		CreatorID:  r.creatorID,
		IsCreator:  p.ID == r.creatorID,
		Spectating: p.Spectating,
		Players:    r.memberInfos(),
	}
	if state, ok := r.fullGameState(); ok {
		msg.Game = &state
	}
	return msg
}

func (r *Room) handleLeave(playerID string) error {
	if _, ok := r.players[playerID]; !ok {
		return ErrUnknownPlayer
	}
	r.removePlayer(playerID)
	return nil
}

// removePlayer is the single removal path for leaves, grace expiry and
// disconnects between rounds.
func (r *Room) removePlayer(playerID string) {
	p, ok := r.players[playerID]
	if !ok {
		return
	}

	delete(r.players, playerID)
	for i, id := range r.order {
		if id == playerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.sched.cancel(timerKey{kind: timerGrace, playerID: playerID})
	if r.engine != nil {
		r.engine.RemoveSnake(playerID)
	}

	log.Printf("👋 Room %s: %s left (%d remaining)", r.code, p.Name, len(r.players))

	r.broadcast(protocol.MsgPlayerLeft, protocol.PlayerLeft{
		PlayerID:    p.ID,
		Name:        p.Name,
		PlayerCount: len(r.players),
	}, "")

	if len(r.players) == 0 {
		r.destroy()
		return
	}

	if playerID == r.creatorID {
		next := r.players[r.order[0]]
		r.creatorID = next.ID
		log.Printf("👑 Room %s: creator is now %s", r.code, next.Name)
		r.broadcast(protocol.MsgCreatorChanged, protocol.CreatorChanged{
			CreatorID: next.ID,
			Name:      next.Name,
		}, "")
	}

	if r.state == StatePlaying {
		r.checkGameEnd()
	}
}

// destroy tears the room down once it is empty.
func (r *Room) destroy() {
	if r.closed {
		return
	}
	log.Printf("🗑️ Room %s: empty, closing", r.code)
	r.closed = true
	r.generation++
	r.stopTicker()
	r.sched.stopAll()
	r.engine = nil
	if r.onEmpty != nil {
		r.onEmpty(r.code)
	}
	r.Stop()
}

func (r *Room) handleDisconnect(playerID string, s Session) {
	p, ok := r.players[playerID]
	if !ok || p.session != s {
		return
	}

	if r.state == StateWaiting || r.state == StateEnded {
		r.removePlayer(playerID)
		return
	}

	p.Connected = false
	p.session = nil
	p.graceEpoch++
	r.sched.schedule(timerKey{kind: timerGrace, playerID: playerID}, r.settings.ReconnectGrace, r.generation, p.graceEpoch)

	log.Printf("📴 Room %s: %s disconnected, holding for %s", r.code, p.Name, r.settings.ReconnectGrace)
	r.broadcast(protocol.MsgPlayerDisconnected, protocol.PlayerPresence{PlayerID: p.ID, Name: p.Name}, "")
	r.checkGameEnd()
}

func (r *Room) handleReconnect(playerID, token string, s Session) error {
	p, ok := r.players[playerID]
	if !ok {
		return ErrUnknownPlayer
	}

	r.sched.cancel(timerKey{kind: timerGrace, playerID: playerID})
	p.graceEpoch++
	if p.session != nil && p.session != s {
		_ = p.session.Close()
	}
	wasConnected := p.Connected
	p.session = s
	p.Connected = true

	log.Printf("🔌 Room %s: %s reconnected", r.code, p.Name)

	r.sendTo(p, protocol.MsgRoomJoined, r.roomJoined(p, token))
	if !wasConnected {
		r.broadcast(protocol.MsgPlayerReconnected, protocol.PlayerPresence{PlayerID: p.ID, Name: p.Name}, p.ID)
	}
	return nil
}
