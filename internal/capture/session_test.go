package capture

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosniff/internal/models"
)

// fakeSource is a scripted PacketSource: frames pushed into the channel are
// delivered in order; closing the channel simulates a mid-capture failure.
type fakeSource struct {
	frames  chan gopacket.Packet
	openErr error

	mu     sync.Mutex
	done   chan struct{}
	opened bool
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{frames: make(chan gopacket.Packet, buffer)}
}

func (f *fakeSource) Open(iface, filter string) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = make(chan struct{})
	f.opened = true
	return nil
}

func (f *fakeSource) ReadPacket() (gopacket.Packet, error) {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
		return nil, io.EOF
	case pkt, ok := <-f.frames:
		if !ok {
			return nil, errors.New("device vanished")
		}
		return pkt, nil
	}
}

func (f *fakeSource) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened {
		f.opened = false
		close(f.done)
	}
}

func newTestSession(src PacketSource) *Session {
	return NewSession(src, SessionConfig{Capacity: 100, StreamBuffer: 16}, nil)
}

func TestStartStopTransitions(t *testing.T) {
	src := newFakeSource(4)
	s := newTestSession(src)

	require.False(t, s.IsCapturing())

	// Start returns synchronously, without waiting for any packet.
	require.NoError(t, s.Start("eth0", "tcp port 80"))
	st := s.Status()
	assert.True(t, st.IsCapturing)
	assert.Equal(t, "eth0", st.Interface)
	assert.Equal(t, "tcp port 80", st.Filter)
	assert.Equal(t, uint64(0), st.PacketCount)

	s.Stop()
	assert.False(t, s.Status().IsCapturing)
}

func TestStartWhileCapturing(t *testing.T) {
	src := newFakeSource(4)
	s := newTestSession(src)
	require.NoError(t, s.Start("eth0", ""))
	defer s.Stop()

	src.frames <- tcpSynPacket(t)
	require.Eventually(t, func() bool {
		return s.Status().PacketCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	err := s.Start("wlan0", "")
	require.ErrorIs(t, err, ErrAlreadyCapturing)

	// The running capture is untouched.
	st := s.Status()
	assert.Equal(t, "eth0", st.Interface)
	assert.Equal(t, uint64(1), st.PacketCount)
}

func TestStartSourceOpenFailed(t *testing.T) {
	src := newFakeSource(0)
	src.openErr = errors.New("permission denied")
	s := newTestSession(src)

	err := s.Start("eth0", "")
	require.Error(t, err)

	var openErr *SourceOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "eth0", openErr.Interface)
	assert.ErrorContains(t, err, "permission denied")

	assert.False(t, s.IsCapturing(), "failed start leaves the session idle")
}

func TestProducerPipeline(t *testing.T) {
	src := newFakeSource(8)
	s := newTestSession(src)
	require.NoError(t, s.Start("eth0", ""))
	defer s.Stop()

	live, cancel := s.Subscribe()
	defer cancel()

	src.frames <- tcpSynPacket(t)
	src.frames <- tcpSynPacket(t)
	src.frames <- tcpSynPacket(t)

	require.Eventually(t, func() bool {
		return s.Status().PacketCount == 3
	}, 2*time.Second, 10*time.Millisecond)

	recent := s.RecentRecords(10)
	require.Len(t, recent, 3)
	assert.Equal(t, models.ProtocolTCP, recent[0].Protocol)

	stats := s.Stats()
	assert.Equal(t, 3, stats.TotalPackets)
	assert.Equal(t, 3, stats.ProtocolCounts[models.ProtocolTCP])

	// Fan-out delivered the same records independently of the store.
	for i := 0; i < 3; i++ {
		select {
		case rec := <-live:
			assert.Equal(t, models.ProtocolTCP, rec.Protocol)
		case <-time.After(time.Second):
			t.Fatal("live subscriber did not receive record")
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	src := newFakeSource(0)
	s := newTestSession(src)

	s.Stop() // never started: no-op
	assert.False(t, s.IsCapturing())

	require.NoError(t, s.Start("eth0", ""))
	s.Stop()
	s.Stop()
	assert.False(t, s.IsCapturing())

	// A fresh Start works after Stop and resets the counter.
	require.NoError(t, s.Start("eth0", ""))
	assert.Equal(t, uint64(0), s.Status().PacketCount)
	s.Stop()
}

func TestClearPreservesCaptureState(t *testing.T) {
	src := newFakeSource(8)
	s := newTestSession(src)
	require.NoError(t, s.Start("eth0", ""))
	defer s.Stop()

	src.frames <- tcpSynPacket(t)
	require.Eventually(t, func() bool {
		return s.Status().PacketCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.Clear()
	assert.Equal(t, uint64(0), s.Status().PacketCount)
	assert.Empty(t, s.RecentRecords(10))
	assert.True(t, s.IsCapturing(), "clear must not stop the capture")

	// Clear while idle is valid too.
	s.Stop()
	s.Clear()
	assert.False(t, s.IsCapturing())
}

func TestStopRacingStartKeepsSuccessfulStartCapturing(t *testing.T) {
	// Stop and Start race from different goroutines. Whenever Start wins the
	// race (returns nil), Stop must have fully torn down the previous capture
	// first, so the new capture owns the source and must stay alive.
	for i := 0; i < 50; i++ {
		src := newFakeSource(8)
		s := newTestSession(src)
		require.NoError(t, s.Start("eth0", ""))

		var wg sync.WaitGroup
		var startErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
		go func() {
			defer wg.Done()
			startErr = s.Start("eth0", "")
		}()
		wg.Wait()

		if startErr != nil {
			// Start linearized before Stop and saw the running capture.
			require.ErrorIs(t, startErr, ErrAlreadyCapturing)
			s.Stop()
			continue
		}

		require.True(t, s.IsCapturing(), "iteration %d: successful Start must leave the session capturing", i)

		// The restarted producer still reads from an open source.
		src.frames <- tcpSynPacket(t)
		require.Eventually(t, func() bool {
			return s.Status().PacketCount >= 1
		}, 2*time.Second, 5*time.Millisecond, "iteration %d: restarted capture is dead", i)
		s.Stop()
	}
}

func TestMidCaptureFailureGoesIdle(t *testing.T) {
	src := newFakeSource(4)
	s := newTestSession(src)
	require.NoError(t, s.Start("eth0", ""))

	close(src.frames) // interface disappears

	require.Eventually(t, func() bool {
		return !s.IsCapturing()
	}, 2*time.Second, 10*time.Millisecond)

	// History survives the failure and the session can be restarted.
	src2 := newFakeSource(4)
	s2 := newTestSession(src2)
	require.NoError(t, s2.Start("eth0", ""))
	s2.Stop()
}

func TestExportSnapshotStable(t *testing.T) {
	src := newFakeSource(8)
	s := newTestSession(src)
	require.NoError(t, s.Start("eth0", ""))
	defer s.Stop()

	src.frames <- tcpSynPacket(t)
	src.frames <- tcpSynPacket(t)
	require.Eventually(t, func() bool {
		return s.Status().PacketCount == 2
	}, 2*time.Second, 10*time.Millisecond)

	snap := s.Export()
	require.Len(t, snap, 2)

	// Later appends do not mutate an already-taken snapshot.
	src.frames <- tcpSynPacket(t)
	require.Eventually(t, func() bool {
		return s.Status().PacketCount == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, snap, 2)
}
