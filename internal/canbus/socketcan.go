package canbus

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// canFrameSize is the classic (non-FD) SocketCAN frame layout: 4-byte
	// ID, 1-byte DLC, 3 bytes padding, 8 bytes data.
	canFrameSize = 16
	canMaxDLen   = 8

	// canEFFFlag marks a 29-bit extended arbitration ID in can_id.
	canEFFFlag uint32 = 0x80000000
	canEFFMask uint32 = 0x1FFFFFFF

	callbackQueueSize   = 100
	callbackWorkerCount = 4
)

// SocketCANConn is a real Linux SocketCAN raw-socket connection, bound to a
// named interface such as "can0". A background reader goroutine parses
// frames and dispatches them to the registered callback through a bounded
// worker pool, the same shape as the teacher's knxd client callback queue;
// sends are serialized through a single mutex-guarded write path.
type SocketCANConn struct {
	iface    string
	fd       int
	readOnly bool

	writeMu sync.Mutex

	callbackMu    sync.RWMutex
	onFrame       func(Frame)
	callbackQueue chan Frame

	done chan struct{}
	wg   sync.WaitGroup

	stats *statsTracker

	openMu sync.Mutex
	open   bool
}

// OpenSocketCAN opens a raw CAN_RAW socket bound to iface and starts the
// reader loop and callback worker pool. readOnly mirrors can_bus.py's
// read_only flag: Send is refused (ErrReadOnly) but frames still arrive
// through the reader loop.
func OpenSocketCAN(iface string, readOnly bool) (*SocketCANConn, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: open socket: %w", err)
	}

	ifi, err := unix.IfNameIndex()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: list interfaces: %w", err)
	}
	var ifIndex int
	for _, e := range ifi {
		if e.Name == iface {
			ifIndex = int(e.Index)
			break
		}
	}
	if ifIndex == 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: interface %q not found", iface)
	}

	addr := &unix.SockaddrCAN{Ifindex: ifIndex}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %q: %w", iface, err)
	}

	stats := newStatsTracker()
	stats.startedAt = time.Now()

	c := &SocketCANConn{
		iface:         iface,
		fd:            fd,
		readOnly:      readOnly,
		callbackQueue: make(chan Frame, callbackQueueSize),
		done:          make(chan struct{}),
		stats:         stats,
		open:          true,
	}

	for range callbackWorkerCount {
		c.wg.Add(1)
		go c.callbackWorker()
	}
	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// Send encodes frame into the classic 16-byte can_frame layout and writes
// it to the socket.
func (c *SocketCANConn) Send(frame Frame) error {
	if !c.IsOpen() {
		return ErrNotOpen
	}
	if c.readOnly {
		return ErrReadOnly
	}
	if len(frame.Data) > canMaxDLen {
		return fmt.Errorf("canbus: payload too long: %d bytes", len(frame.Data))
	}

	buf := make([]byte, canFrameSize)
	binary.LittleEndian.PutUint32(buf[0:4], (frame.ID&canEFFMask)|canEFFFlag)
	buf[4] = byte(len(frame.Data))
	copy(buf[8:8+len(frame.Data)], frame.Data)

	c.writeMu.Lock()
	_, err := unix.Write(c.fd, buf)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("canbus: write: %w", err)
	}
	c.stats.recordSend()
	return nil
}

func (c *SocketCANConn) SetOnFrame(cb func(Frame)) {
	c.callbackMu.Lock()
	c.onFrame = cb
	c.callbackMu.Unlock()
}

func (c *SocketCANConn) IsOpen() bool {
	c.openMu.Lock()
	defer c.openMu.Unlock()
	return c.open
}

func (c *SocketCANConn) Stats() Stats {
	return c.stats.snapshot()
}

// Close stops the reader loop and worker pool and closes the socket.
func (c *SocketCANConn) Close() error {
	c.openMu.Lock()
	if !c.open {
		c.openMu.Unlock()
		return nil
	}
	c.open = false
	c.openMu.Unlock()

	close(c.done)
	unix.Close(c.fd)
	c.wg.Wait()
	return nil
}

func (c *SocketCANConn) readLoop() {
	defer c.wg.Done()
	buf := make([]byte, canFrameSize)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		n, err := unix.Read(c.fd, buf)
		if err != nil {
			if c.IsOpen() {
				continue
			}
			return
		}
		if n < canFrameSize {
			continue
		}

		rawID := binary.LittleEndian.Uint32(buf[0:4])
		id := rawID & canEFFMask
		dlc := int(buf[4])
		if dlc > canMaxDLen {
			dlc = canMaxDLen
		}
		data := make([]byte, dlc)
		copy(data, buf[8:8+dlc])

		c.stats.recordReceive(id)
		c.enqueue(Frame{ID: id, Data: data})
	}
}

func (c *SocketCANConn) enqueue(f Frame) {
	c.callbackMu.RLock()
	has := c.onFrame != nil
	c.callbackMu.RUnlock()
	if !has {
		return
	}

	select {
	case c.callbackQueue <- f:
	default:
		// Queue full; drop rather than block the reader and exhaust memory.
	}
}

func (c *SocketCANConn) callbackWorker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case f := <-c.callbackQueue:
			c.callbackMu.RLock()
			cb := c.onFrame
			c.callbackMu.RUnlock()
			if cb != nil {
				c.dispatch(cb, f)
			}
		}
	}
}

func (c *SocketCANConn) dispatch(cb func(Frame), f Frame) {
	defer func() { recover() }()
	cb(f)
}
