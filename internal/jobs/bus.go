package jobs

import "sync"

// subscriberBuffer is the per-subscriber channel depth. A reader that
// falls further behind than this loses its oldest buffered snapshots;
// only the latest one matters for correctness since the store always
// holds the current state.
const subscriberBuffer = 8

// topic is the per-job fan-out of progress snapshots. A topic is
// created with its job record and released when the job is discarded
// or after the terminal snapshot has been delivered.
type topic struct {
	mu     sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	closed bool
}

func newTopic() *topic {
	return &topic{subs: make(map[int]chan Snapshot)}
}

// subscribe registers a listener. The current snapshot is delivered
// first, so a late subscriber never waits for a transition that has
// already happened. If the topic is already closed (the job reached a
// terminal state), the listener still receives that final snapshot
// and its stream ends immediately.
func (t *topic) subscribe(current Snapshot) (<-chan Snapshot, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan Snapshot, subscriberBuffer)
	ch <- current

	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if sub, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers snap to every subscriber without ever blocking the
// caller: a subscriber with a full buffer loses its oldest snapshot
// instead of stalling the worker. A terminal snapshot closes the
// topic after delivery, ending every stream exactly once.
func (t *topic) publish(snap Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			// Full buffer: evict the oldest entry and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	if snap.Status.Terminal() {
		t.closeLocked()
	}
}

// shutdown ends all subscriber streams without a terminal snapshot.
// Used when the job is discarded underneath its listeners.
func (t *topic) shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closeLocked()
	}
}

func (t *topic) closeLocked() {
	t.closed = true
	for id, ch := range t.subs {
		delete(t.subs, id)
		close(ch)
	}
}
