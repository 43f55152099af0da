package scheiber

// Switch is an ON/OFF output with no brightness dimension. Its defining
// contract (spec §4.3) is that Set does not mutate internal state — state
// only ever changes through ingest, driven by a confirmed CAN echo. This is
// what lets the MQTT sink avoid optimistic state.
type Switch struct {
	outputCore
}

func newSwitch(deviceID, slot int, name, entityID string, send SendFunc) *Switch {
	return &Switch{outputCore: newOutputCore(deviceID, slot, name, entityID, send)}
}

// Set requests the target state. It publishes the command through the
// injected send callback and returns immediately; State() will not reflect
// the request until the hardware echoes it back through ingest.
func (s *Switch) Set(on bool) {
	s.send(s.slot, brightnessForState(on))
}

// State returns the last hardware-confirmed state.
func (s *Switch) State() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ingest applies a decoded hardware state to the switch, notifying
// observers only when the state actually changed.
func (s *Switch) ingest(state bool, _ int) bool {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if changed {
		s.notify(propChange{"state", state})
	}
	return changed
}

// setFromPersisted restores state without touching the bus, per the
// restore-must-not-send contract.
func (s *Switch) setFromPersisted(state bool) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Switch) snapshotState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
