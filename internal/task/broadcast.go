package task

import (
	"sync"

	"github.com/taskpilot/taskpilot/internal/domain"
)

// streamBuffer is the per-subscriber channel depth. A subscriber that falls
// behind loses its oldest snapshots, never the producer's time.
const streamBuffer = 16

// broadcaster fans aggregate progress snapshots out to any number of
// subscribers. Publishing is fire-and-forget: it never blocks, and a slow
// subscriber only affects its own buffer.
type broadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan domain.Progress
	nextID  int
	last    domain.Progress
	hasLast bool
	closed  bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan domain.Progress)}
}

// subscribe registers a new stream. The current snapshot, if any, is
// pre-loaded so a late subscriber does not start blind. The returned stop
// function detaches the stream; after the broadcaster closes, the channel
// is closed and stop becomes a no-op.
func (b *broadcaster) subscribe() (<-chan domain.Progress, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Progress, streamBuffer)
	if b.hasLast {
		ch <- b.last
	}

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	stop := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, stop
}

// publish delivers a snapshot to every subscriber without blocking. When a
// subscriber's buffer is full, its oldest snapshot is dropped to make room,
// so each stream always ends on the most recent value it kept up with.
func (b *broadcaster) publish(p domain.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.last = p
	b.hasLast = true

	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

// close ends every stream. Idempotent.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
