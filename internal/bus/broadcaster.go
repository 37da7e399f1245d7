package bus

import "sync"

// Broadcaster fans turn events out to any number of subscribers.
// Subscribers receive on buffered channels; events are dropped for a
// subscriber whose buffer is full so one slow consumer never stalls a turn.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan TurnEvent
	next int
	buf  int
}

// NewBroadcaster creates a Broadcaster whose subscriber channels hold up to
// bufSize pending events each.
func NewBroadcaster(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Broadcaster{subs: make(map[int]chan TurnEvent), buf: bufSize}
}

// Emit implements Emitter.
func (b *Broadcaster) Emit(ev TurnEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel together with
// a cancel function that unregisters and closes it.
func (b *Broadcaster) Subscribe() (<-chan TurnEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan TurnEvent, b.buf)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}
