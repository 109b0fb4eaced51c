// Package stream fans captured records out to live viewers.
package stream

import (
	"sync"

	"gosniff/internal/models"
)

// DefaultBuffer is the per-subscriber channel depth used when none is
// configured.
const DefaultBuffer = 256

// Broadcaster delivers each published record to every subscriber on its own
// buffered channel. Publishing never blocks: a subscriber whose buffer is
// full simply misses that record. The history store is a separate sink, so a
// slow viewer cannot cause stored-record loss.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan models.PacketRecord
	nextID int
	buffer int
	closed bool
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer
// depth. A non-positive depth falls back to DefaultBuffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		subs:   make(map[int]chan models.PacketRecord),
		buffer: buffer,
	}
}

// Subscribe registers a new viewer and returns its receive channel plus a
// cancel function. Cancel is idempotent and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan models.PacketRecord, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.PacketRecord, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish offers rec to every subscriber without blocking.
func (b *Broadcaster) Publish(rec models.PacketRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- rec:
		default:
			// Subscriber buffer full; drop for this viewer only.
		}
	}
}

// Close terminates all subscriber channels. Publish and Subscribe after
// Close are no-ops.
func (b *Broadcaster) Close() {
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

// Subscribers returns the current viewer count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
