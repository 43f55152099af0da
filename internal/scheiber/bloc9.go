package scheiber

import (
	"fmt"
	"sort"
)

// ingestTarget is whatever a decoded (state, brightness) half is dispatched
// to: a Switch or a DimmableLight. ingest reports whether it actually
// changed the output's state.
type ingestTarget interface {
	ingest(state bool, brightness int) bool
}

// Bloc9 is the six-output switch/dimmer panel: the only device family the
// original source fully supports. It owns the dispatch table from
// arbitration ID to the pair of outputs a switch-pair frame carries, and
// translates Output-level commands into concrete CAN frames with threshold
// snapping (spec §4.5).
type Bloc9 struct {
	deviceID int
	sender   FrameSender
	logger   Logger

	outputs [6]slotOutput // nil entries are unconfigured slots
	trans   *TransitionEngine
	flash   *FlashController

	deviceObservers []func(map[string]any)
}

// slotOutput is either a *Switch or a *DimmableLight, both of which
// implement ingestTarget.
type slotOutput struct {
	switchOut *Switch
	lightOut  *DimmableLight
}

func (s slotOutput) target() ingestTarget {
	if s.lightOut != nil {
		return s.lightOut
	}
	if s.switchOut != nil {
		return s.switchOut
	}
	return nil
}

// NewBloc9 builds a Bloc9 device from its configuration. sender is invoked
// for every encoded command frame.
func NewBloc9(busID int, cfg DeviceConfig, sender FrameSender, logger Logger) (*Bloc9, error) {
	d := &Bloc9{
		deviceID: busID,
		sender:   sender,
		logger:   logger,
		trans:    NewTransitionEngine(),
		flash:    NewFlashController(),
	}

	for slotName, lcfg := range cfg.Lights {
		idx, ok := slotIndex[slotName]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, slotName)
		}
		key := fmt.Sprintf("bloc9_%d_%s", busID, slotName)
		send := func(slot int) SendFunc {
			return func(_ int, brightness int) { d.sendCommand(slot, brightness) }
		}(idx)
		light := newDimmableLight(busID, idx, lcfg.Name, lcfg.EntityID, send, key, d.trans, d.flash)
		if lcfg.InitialBrightness != nil {
			light.setFromPersisted(*lcfg.InitialBrightness > 0, *lcfg.InitialBrightness)
		}
		d.outputs[idx].lightOut = light
	}

	for slotName, scfg := range cfg.Switches {
		idx, ok := slotIndex[slotName]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSlot, slotName)
		}
		send := func(slot int) SendFunc {
			return func(_ int, brightness int) { d.sendCommand(slot, brightness) }
		}(idx)
		d.outputs[idx].switchOut = newSwitch(busID, idx, scfg.Name, scfg.EntityID, send)
	}

	return d, nil
}

func (d *Bloc9) Key() string { return fmt.Sprintf("bloc9_%d", d.deviceID) }

// Light returns the configured DimmableLight for a slot name, or nil.
func (d *Bloc9) Light(slot string) *DimmableLight {
	idx, ok := slotIndex[slot]
	if !ok {
		return nil
	}
	return d.outputs[idx].lightOut
}

// Switch returns the configured Switch for a slot name, or nil.
func (d *Bloc9) Switch(slot string) *Switch {
	idx, ok := slotIndex[slot]
	if !ok {
		return nil
	}
	return d.outputs[idx].switchOut
}

// Lights returns every configured DimmableLight, for the MQTT sink to
// subscribe to.
func (d *Bloc9) Lights() []*DimmableLight {
	var out []*DimmableLight
	for _, o := range d.outputs {
		if o.lightOut != nil {
			out = append(out, o.lightOut)
		}
	}
	return out
}

// Switches returns every configured Switch, for the MQTT sink to subscribe
// to.
func (d *Bloc9) Switches() []*Switch {
	var out []*Switch
	for _, o := range d.outputs {
		if o.switchOut != nil {
			out = append(out, o.switchOut)
		}
	}
	return out
}

// SubscribeDeviceEvents registers an observer for device-level (heartbeat)
// events, carrying the configured output labels. Heartbeats never touch
// output state — see Matchers' heartbeat handler.
func (d *Bloc9) SubscribeDeviceEvents(obs func(map[string]any)) {
	d.deviceObservers = append(d.deviceObservers, obs)
}

func (d *Bloc9) sendCommand(slot int, brightness int) {
	id, data := EncodeCommand(d.deviceID, slot, brightness)
	if err := d.sender(id, data); err != nil {
		d.logger.Error("transport send failed", "device", d.Key(), "slot", slot, "error", err)
	}
}

// Matchers builds the union dispatch table: one entry per switch-pair class
// (S1S2, S3S4, S5S6), a heartbeat entry that never touches state, and a
// command-echo entry that's recognized and ignored so the System's
// unknown-ID logging doesn't flag our own commands.
func (d *Bloc9) Matchers() []DeviceMatcher {
	tagged := taggedDeviceByte(d.deviceID)

	pairs := []struct {
		class        uint32
		lo, hi       int
	}{
		{classS1S2, 0, 1},
		{classS3S4, 2, 3},
		{classS5S6, 4, 5},
	}

	entries := make([]DeviceMatcher, 0, len(pairs)+2)
	for _, p := range pairs {
		lo, hi := p.lo, p.hi
		entries = append(entries, DeviceMatcher{
			Matcher: Matcher{Pattern: p.class | tagged, Mask: exactMask},
			Handle:  func(f Frame) bool { return d.handleSwitchPair(f, lo, hi) },
		})
	}

	entries = append(entries, DeviceMatcher{
		Matcher: Matcher{Pattern: classHeartbeat | tagged, Mask: exactMask},
		Handle:  d.handleHeartbeat,
	})
	entries = append(entries, DeviceMatcher{
		Matcher: Matcher{Pattern: classCommand | tagged, Mask: exactMask},
		Handle:  func(Frame) bool { return false }, // our own command echo; recognized, ignored
	})

	return entries
}

func (d *Bloc9) handleSwitchPair(f Frame, loSlot, hiSlot int) bool {
	loState, loBright, hiState, hiBright, err := DecodeSwitchPair(f.Data)
	if err != nil {
		d.logger.Warn("short switch-pair frame", "device", d.Key(), "id", f.ID, "len", len(f.Data))
		return false
	}
	changed := false
	if t := d.outputs[loSlot].target(); t != nil {
		changed = t.ingest(loState, loBright) || changed
	}
	if t := d.outputs[hiSlot].target(); t != nil {
		changed = t.ingest(hiState, hiBright) || changed
	}
	return changed
}

// handleHeartbeat never touches output state. Historically, heartbeat
// payloads were misread as state updates and would clobber a command 20ms
// later with stale data; that behavior is prohibited here.
func (d *Bloc9) handleHeartbeat(Frame) bool {
	if len(d.deviceObservers) == 0 {
		return false
	}
	info := map[string]any{
		"device_type": "bloc9",
		"bus_id":      d.deviceID,
		"outputs":     d.outputLabels(),
	}
	for _, obs := range d.deviceObservers {
		obs(info)
	}
	return false
}

func (d *Bloc9) outputLabels() map[string]string {
	labels := make(map[string]string, 6)
	slotNames := make([]string, 0, 6)
	for name := range slotIndex {
		slotNames = append(slotNames, name)
	}
	sort.Strings(slotNames)
	for _, name := range slotNames {
		idx := slotIndex[name]
		labels[name] = "unknown"
		if l := d.outputs[idx].lightOut; l != nil {
			labels[name] = l.Name()
		}
		if s := d.outputs[idx].switchOut; s != nil {
			labels[name] = s.Name()
		}
	}
	return labels
}

// RestoreState pushes persisted slot values into this device's outputs
// without sending anything on the bus.
func (d *Bloc9) RestoreState(state map[string]any) {
	for name, idx := range slotIndex {
		raw, ok := state[name]
		if !ok {
			continue
		}
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		brightness := intFromAny(entry["brightness"])
		on, _ := entry["state"].(bool)

		if l := d.outputs[idx].lightOut; l != nil {
			l.setFromPersisted(on, brightness)
		}
		if s := d.outputs[idx].switchOut; s != nil {
			s.setFromPersisted(on)
		}
	}
}

// StoreState returns the current (state, brightness) of every configured
// slot, keyed by slot name, ready for JSON persistence.
func (d *Bloc9) StoreState() map[string]any {
	state := make(map[string]any)
	for name, idx := range slotIndex {
		if l := d.outputs[idx].lightOut; l != nil {
			s, b := l.snapshotState()
			state[name] = map[string]any{"state": s, "brightness": b}
		}
		if s := d.outputs[idx].switchOut; s != nil {
			state[name] = map[string]any{"state": s.snapshotState(), "brightness": 0}
		}
	}
	return state
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
