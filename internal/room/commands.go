package room

import "snake-arena/internal/protocol"

// Commands posted to a room's inbox. Each reply channel is buffered so the
// room goroutine never blocks answering.

type joinCmd struct {
	req   JoinRequest
	reply chan joinReply
}

type joinReply struct {
	res JoinResult
	err error
}

type leaveCmd struct {
	playerID string
	reply    chan error
}

type disconnectCmd struct {
	playerID string
	session  Session
}

type reconnectCmd struct {
	playerID string
	token    string
	session  Session
	reply    chan error
}

type startCmd struct {
	playerID string
	reply    chan error
}

type inputCmd struct {
	playerID string
	angle    float64
	boosting bool
}

type resyncCmd struct {
	playerID string
}

type stateQuery struct {
	reply chan stateReply
}

type stateReply struct {
	state protocol.GameState
	ok    bool
}
