package scheiber

import (
	"fmt"
	"sync"
	"time"
)

// Transport is the subset of internal/canbus.Conn the System needs. Defined
// here, not imported, so scheiber stays independent of the transport
// package; any Conn implementation satisfies this structurally.
type Transport interface {
	Send(frame Frame) error
	SetOnFrame(func(Frame))
	Close() error
}

const flushInterval = 30 * time.Second

// System owns the device set, the flattened CAN dispatch table, and
// persistence. It's the Go counterpart of system.py's ScheiberSystem:
// every incoming frame is checked against every device's matchers (not just
// the first match), unknown arbitration IDs are logged once, and state is
// flushed to disk every 30s plus once more on shutdown.
type System struct {
	transport Transport
	statePath string
	logger    Logger

	devices []Device
	entries []DeviceMatcher

	mu      sync.Mutex
	dirty   bool
	known   map[uint32]bool // arbitration IDs already seen, matched or not
	unknown map[uint32]bool // logged-once unknown IDs

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSystem builds devices from cfg and wires their matchers into a single
// dispatch table. It returns ErrDuplicateDevice if two configured devices
// share a (type, bus_id) key.
func NewSystem(cfg Configuration, transport Transport, statePath string, logger Logger) (*System, error) {
	if logger == nil {
		logger = NopLogger{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{
		transport: transport,
		statePath: statePath,
		logger:    logger,
		known:     make(map[uint32]bool),
		unknown:   make(map[uint32]bool),
		stopCh:    make(chan struct{}),
	}

	seen := make(map[string]bool)
	for _, dc := range cfg.Devices {
		var dev Device
		switch dc.Type {
		case "bloc9":
			sender := func(id uint32, data []byte) error { return transport.Send(Frame{ID: id, Data: data}) }
			d, err := NewBloc9(dc.BusID, dc, sender, logger)
			if err != nil {
				return nil, err
			}
			dev = d
		case "bloc7":
			dev = NewBloc7(dc.BusID, dc)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownDeviceType, dc.Type)
		}

		if seen[dev.Key()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, dev.Key())
		}
		seen[dev.Key()] = true

		s.devices = append(s.devices, dev)
		s.entries = append(s.entries, dev.Matchers()...)
	}

	return s, nil
}

// Start loads any persisted state (without sending CAN frames), registers
// the frame dispatch callback, and begins the periodic flush loop.
func (s *System) Start() error {
	state, err := LoadState(s.statePath)
	if err != nil {
		s.logger.Warn("failed to load persisted state, starting empty", "error", err)
		state = nil
	}
	if state != nil {
		for _, dev := range s.devices {
			if sub, ok := state[dev.Key()].(map[string]any); ok {
				dev.RestoreState(sub)
			}
		}
	}

	s.transport.SetOnFrame(s.dispatch)

	s.wg.Add(1)
	go s.flushLoop()

	return nil
}

// Close stops the flush loop, performs one final synchronous flush, and
// closes the transport.
func (s *System) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()

	if err := s.flush(); err != nil {
		s.logger.Error("final state flush failed", "error", err)
	}
	return s.transport.Close()
}

func (s *System) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.flush(); err != nil {
				s.logger.Error("periodic state flush failed", "error", err)
			}
		}
	}
}

func (s *System) flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.dirty = false
	s.mu.Unlock()

	data := make(map[string]any, len(s.devices))
	for _, dev := range s.devices {
		data[dev.Key()] = dev.StoreState()
	}
	return SaveState(s.statePath, data)
}

// dispatch is the transport's frame callback. Every matcher is checked, not
// just the first match, because historically multiple devices' classes can
// legitimately overlap at the prefix level before the tagged device byte is
// accounted for — exact-mask matching makes that safe (spec §9). Unknown
// IDs are logged exactly once. The dirty flag is set only when a matcher
// reports an actual output state change, not merely a match — heartbeats
// and recognized command echoes match but never mutate state, and flagging
// dirty on those would trigger needless 30s-tick re-writes of identical
// state (spec.md:147).
func (s *System) dispatch(f Frame) {
	matched := false
	changed := false
	for _, e := range s.entries {
		if e.Matcher.Matches(f.ID) {
			matched = true
			if e.Handle(f) {
				changed = true
			}
		}
	}

	s.mu.Lock()
	s.known[f.ID] = true
	if changed {
		s.dirty = true
	}
	if !matched && !s.unknown[f.ID] {
		s.unknown[f.ID] = true
		s.mu.Unlock()
		s.logger.Warn("unknown arbitration id", "id", fmt.Sprintf("0x%08X", f.ID))
		return
	}
	s.mu.Unlock()
}

// Devices returns the constructed devices, for the MQTT sink to subscribe
// their outputs.
func (s *System) Devices() []Device { return s.devices }
