// Package capture implements the live packet pipeline: the source boundary,
// frame classification, and the session state machine tying source, history,
// and fan-out together.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"gosniff/internal/analysis"
	"gosniff/internal/history"
	"gosniff/internal/models"
	"gosniff/internal/stream"
)

// ErrAlreadyCapturing is returned by Start while a capture is running.
var ErrAlreadyCapturing = errors.New("capture already in progress")

// SourceOpenError reports a packet source that could not be opened (bad
// interface name, missing privilege, invalid filter). The session stays Idle.
type SourceOpenError struct {
	Interface string
	Err       error
}

func (e *SourceOpenError) Error() string {
	return fmt.Sprintf("open capture source on %q: %v", e.Interface, e.Err)
}

func (e *SourceOpenError) Unwrap() error { return e.Err }

// stopJoinTimeout bounds how long Stop waits for the capture loop to exit.
// If the source cannot be interrupted in time the loop is abandoned; this is
// best-effort by design of the source boundary.
const stopJoinTimeout = time.Second

// Status is a point-in-time view of the session.
type Status struct {
	IsCapturing bool   `json:"is_capturing"`
	Interface   string `json:"interface"`
	Filter      string `json:"filter"`
	PacketCount uint64 `json:"packet_count"`
}

// SessionConfig sizes the session's history and fan-out buffers.
type SessionConfig struct {
	// Capacity is the bounded history size; <=0 means history.DefaultCapacity.
	Capacity int
	// StreamBuffer is the per-viewer fan-out depth; <=0 means stream.DefaultBuffer.
	StreamBuffer int
}

// Session owns one capture pipeline. It is Idle until Start succeeds, runs a
// single producer goroutine while Capturing, and returns to Idle on Stop or
// on a source failure. All read accessors are safe to call concurrently with
// the producer and never block it.
type Session struct {
	source    PacketSource
	history   *history.Ring
	broadcast *stream.Broadcaster
	logger    *zap.Logger

	packetCount atomic.Uint64

	mu        sync.Mutex
	capturing bool
	iface     string
	filter    string
	done      chan struct{} // signals the producer to exit
	finished  chan struct{} // closed by the producer on exit
}

// NewSession creates an idle session around the given source.
func NewSession(source PacketSource, cfg SessionConfig, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		source:    source,
		history:   history.NewRing(cfg.Capacity),
		broadcast: stream.NewBroadcaster(cfg.StreamBuffer),
		logger:    logger,
	}
}

// Start opens the source and spawns the producer loop. It returns
// ErrAlreadyCapturing when a capture is running, or a *SourceOpenError when
// the source cannot be opened; in both cases session state is unchanged.
// On success it returns immediately, without waiting for the first packet.
func (s *Session) Start(iface, filter string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capturing {
		return ErrAlreadyCapturing
	}
	if err := s.source.Open(iface, filter); err != nil {
		return &SourceOpenError{Interface: iface, Err: err}
	}

	s.iface = iface
	s.filter = filter
	s.packetCount.Store(0)
	s.capturing = true
	s.done = make(chan struct{})
	s.finished = make(chan struct{})
	go s.run(s.done, s.finished)

	s.logger.Info("capture started",
		zap.String("interface", iface),
		zap.String("filter", filter),
	)
	return nil
}

// run is the producer loop: classify each frame, append it to history, offer
// it to live viewers, bump the counter. Exits on cancellation or on a
// terminal source error.
func (s *Session) run(done, finished chan struct{}) {
	defer close(finished)

	for {
		select {
		case <-done:
			return
		default:
		}

		pkt, err := s.source.ReadPacket()
		if err != nil {
			if errors.Is(err, ErrReadTimeout) {
				continue
			}
			select {
			case <-done:
				// Stop closed the source under us; clean exit.
			default:
				s.logger.Warn("capture source failed", zap.Error(err))
				s.failed()
			}
			return
		}
		if pkt == nil {
			continue
		}

		rec := Classify(pkt)
		s.history.Append(rec)
		s.broadcast.Publish(rec)
		s.packetCount.Add(1)
	}
}

// failed transitions to Idle after a mid-capture source error. No retry; the
// caller may Start again.
func (s *Session) failed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.capturing {
		return
	}
	s.capturing = false
	s.source.Close()
}

// Stop signals the producer and waits up to stopJoinTimeout for it to exit.
// The session is Idle when Stop returns, even if the loop did not acknowledge
// in time. Safe to call repeatedly and concurrently with Start: the whole
// teardown, including closing the source, happens under the session lock, so
// a concurrent Start cannot reopen the source only to have it closed under it.
// Only the join happens unlocked.
func (s *Session) Stop() {
	s.mu.Lock()
	done, finished := s.done, s.finished
	s.done, s.finished = nil, nil
	s.capturing = false
	if done != nil {
		close(done)
		s.source.Close()
	}
	s.mu.Unlock()

	if done == nil {
		return
	}

	select {
	case <-finished:
		s.logger.Info("capture stopped")
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("capture loop did not exit in time, abandoning it")
	}
}

// Clear empties the history and resets the packet counter. Valid in either
// state; capture continues if running.
func (s *Session) Clear() {
	s.history.Clear()
	s.packetCount.Store(0)
}

// RecentRecords returns the last min(n, stored) records, oldest first.
func (s *Session) RecentRecords(n int) []models.PacketRecord {
	return s.history.Recent(n)
}

// Stats aggregates over a snapshot of the current history.
func (s *Session) Stats() analysis.Stats {
	return analysis.Aggregate(s.history.Snapshot())
}

// Export returns a complete, stable snapshot of the current history.
func (s *Session) Export() []models.PacketRecord {
	return s.history.Snapshot()
}

// Subscribe attaches a live viewer to the fan-out. The returned cancel must
// be called when the viewer goes away.
func (s *Session) Subscribe() (<-chan models.PacketRecord, func()) {
	return s.broadcast.Subscribe()
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		IsCapturing: s.capturing,
		Interface:   s.iface,
		Filter:      s.filter,
		PacketCount: s.packetCount.Load(),
	}
}

// IsCapturing reports whether a producer loop is active.
func (s *Session) IsCapturing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturing
}
