// Package canbus provides the CAN transport collaborator the scheiber
// package treats as external: a raw-socket SocketCAN implementation for
// production use, and a loopback double for tests and dry runs.
package canbus

import (
	"sync"
	"time"

	"github.com/eburi/scheiber-bridge/internal/scheiber"
)

// Frame is a CAN frame: a 29-bit extended arbitration ID and 0-8 bytes of
// payload. It's an alias of scheiber.Frame so a Conn satisfies
// scheiber.Transport directly, with no boundary conversion.
type Frame = scheiber.Frame

// Stats are the bus-level counters the original ScheiberCanBus tracked:
// messages sent/received, distinct arbitration IDs seen, and uptime.
type Stats struct {
	MessagesReceived uint64
	MessagesSent     uint64
	UniqueIDs        int
	StartedAt        time.Time
}

// Conn is the transport surface internal/scheiber.System depends on.
// SocketCANConn and NullConn both implement it.
type Conn interface {
	Send(frame Frame) error
	SetOnFrame(func(Frame))
	Close() error
	IsOpen() bool
	Stats() Stats
}

// statsTracker is the mutex-guarded counter block shared by both Conn
// implementations, grounded on can_bus.py's stats_lock-protected dict.
type statsTracker struct {
	mu        sync.Mutex
	received  uint64
	sent      uint64
	uniqueIDs map[uint32]struct{}
	startedAt time.Time
}

func newStatsTracker() *statsTracker {
	return &statsTracker{uniqueIDs: make(map[uint32]struct{})}
}

func (s *statsTracker) recordSend() {
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
}

func (s *statsTracker) recordReceive(id uint32) {
	s.mu.Lock()
	s.received++
	s.uniqueIDs[id] = struct{}{}
	s.mu.Unlock()
}

func (s *statsTracker) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		MessagesReceived: s.received,
		MessagesSent:     s.sent,
		UniqueIDs:        len(s.uniqueIDs),
		StartedAt:        s.startedAt,
	}
}
