package events

import (
	"sync"
)

// Bus fans events out to subscribers. Publish never blocks: each subscriber
// has a bounded buffer and events beyond it are dropped, counted per
// subscriber. That keeps publishers (watch loops, supervisor ticks) immune
// to slow consumers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]*subscription
	nextID  int
	closed  bool
	bufSize int
}

type subscription struct {
	ch      chan Event
	dropped int
}

// DefaultBufferSize bounds each subscriber's queue.
const DefaultBufferSize = 256

// NewBus creates a bus. bufSize <= 0 selects DefaultBufferSize.
func NewBus(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Bus{
		subs:    make(map[int]*subscription),
		bufSize: bufSize,
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes its channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscription{ch: make(chan Event, b.bufSize)}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers the event to every subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
		}
	}
}

// Close shuts the bus down and closes all subscriber channels. Publish after
// Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
