package room

import "snake-arena/internal/protocol"

// eventRing keeps the most recent gameplay events for resync. Oldest
// entries are overwritten once full.
type eventRing struct {
	buf   []protocol.EventView
	head  int // next write position
	count int
}

func newEventRing(capacity int) *eventRing {
	return &eventRing{buf: make([]protocol.EventView, capacity)}
}

func (r *eventRing) push(events ...protocol.EventView) {
	for _, ev := range events {
		r.buf[r.head] = ev
		r.head = (r.head + 1) % len(r.buf)
		if r.count < len(r.buf) {
			r.count++
		}
	}
}

// items returns the buffered events oldest first.
func (r *eventRing) items() []protocol.EventView {
	out := make([]protocol.EventView, r.count)
	start := (r.head - r.count + len(r.buf)) % len(r.buf)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *eventRing) reset() {
	r.head = 0
	r.count = 0
}
