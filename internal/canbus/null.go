package canbus

import "time"

// NullConn is a loopback double: Send succeeds and, if Loopback is true,
// immediately redelivers the frame to the registered callback. It's used
// by cmd/scheiberd in -dry-run mode and by tests that don't need a real
// bus.
type NullConn struct {
	Loopback bool
	ReadOnly bool

	stats   *statsTracker
	onFrame func(Frame)
	open    bool
}

// NewNullConn returns an open NullConn ready for use.
func NewNullConn(loopback bool) *NullConn {
	s := newStatsTracker()
	s.startedAt = time.Now()
	return &NullConn{
		Loopback: loopback,
		stats:    s,
		open:     true,
	}
}

func (c *NullConn) Send(frame Frame) error {
	if !c.open {
		return ErrNotOpen
	}
	if c.ReadOnly {
		return ErrReadOnly
	}
	c.stats.recordSend()
	if c.Loopback && c.onFrame != nil {
		c.stats.recordReceive(frame.ID)
		c.onFrame(frame)
	}
	return nil
}

func (c *NullConn) SetOnFrame(cb func(Frame)) { c.onFrame = cb }

func (c *NullConn) Close() error {
	c.open = false
	return nil
}

func (c *NullConn) IsOpen() bool { return c.open }

func (c *NullConn) Stats() Stats {
	return c.stats.snapshot()
}

// Deliver injects a frame as if it arrived from the bus, for tests driving
// a NullConn directly without Loopback.
func (c *NullConn) Deliver(frame Frame) {
	c.stats.recordReceive(frame.ID)
	if c.onFrame != nil {
		c.onFrame(frame)
	}
}
