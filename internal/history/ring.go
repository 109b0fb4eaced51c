// Package history provides the bounded in-memory packet store.
package history

import (
	"sync"

	"gosniff/internal/models"
)

// DefaultCapacity is the number of records kept when no explicit capacity is
// configured.
const DefaultCapacity = 1000

// Ring is a fixed-capacity FIFO of packet records. When full, appending
// evicts the oldest record. All methods are safe for concurrent use; readers
// receive copies, never aliases into the internal buffer.
type Ring struct {
	mu   sync.RWMutex
	buf  []models.PacketRecord
	head int // index of the oldest record
	size int
}

// NewRing creates a ring holding at most capacity records. A non-positive
// capacity falls back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]models.PacketRecord, capacity)}
}

// Append adds a record at the tail, evicting the oldest record when the ring
// is at capacity.
func (r *Ring) Append(rec models.PacketRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tail := (r.head + r.size) % len(r.buf)
	r.buf[tail] = rec
	if r.size == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.size++
	}
}

// Recent returns the last min(n, size) records in insertion order, oldest
// first. A non-positive n or an empty ring yields an empty slice.
func (r *Ring) Recent(n int) []models.PacketRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.size == 0 {
		return []models.PacketRecord{}
	}
	if n > r.size {
		n = r.size
	}
	out := make([]models.PacketRecord, n)
	start := r.head + r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

// Snapshot returns a copy of everything currently stored, oldest first.
func (r *Ring) Snapshot() []models.PacketRecord {
	return r.Recent(r.Capacity())
}

// Clear empties the ring. Capacity is unchanged.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.size = 0
}

// Size returns the current number of stored records.
func (r *Ring) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the fixed maximum number of records.
func (r *Ring) Capacity() int {
	return len(r.buf)
}
