package scheiber

import (
	"fmt"
	"strings"
	"sync"
)

// Bloc7 is a second, smaller Scheiber device family: an analog-input panel
// reporting sensor values (voltages, tank levels) rather than switch state.
// It's a supplemented feature (SPEC_FULL §F) inferred from
// original_source/bloc7.py, exercised here to demonstrate the Device
// extension point without touching any Bloc9 semantics.
type Bloc7 struct {
	deviceID int
	sensors  []*sensor
}

type sensorKind int

const (
	sensorVoltage sensorKind = iota
	sensorLevel
)

type sensor struct {
	kind     sensorKind
	name     string
	entityID string
	matcher  Matcher
	cfg      SensorConfig

	mu        sync.Mutex
	value     float64
	hasValue  bool
	observers []func(value float64)
}

// NewBloc7 builds a Bloc7 device from its configuration.
func NewBloc7(busID int, cfg DeviceConfig) *Bloc7 {
	d := &Bloc7{deviceID: busID}
	for _, v := range cfg.Voltages {
		d.sensors = append(d.sensors, newSensor(sensorVoltage, v))
	}
	for _, l := range cfg.Levels {
		d.sensors = append(d.sensors, newSensor(sensorLevel, l))
	}
	return d
}

func newSensor(kind sensorKind, cfg SensorConfig) *sensor {
	mask := cfg.Mask
	if mask == 0 {
		mask = exactMask
	}
	return &sensor{
		kind:     kind,
		name:     cfg.Name,
		entityID: cfg.EntityID,
		matcher:  Matcher{Pattern: cfg.Pattern, Mask: mask},
		cfg:      cfg,
	}
}

func (d *Bloc7) Key() string { return fmt.Sprintf("bloc7_%d", d.deviceID) }

// Sensors returns the configured sensors, for the MQTT sink to subscribe to.
func (d *Bloc7) Sensors() []*sensor { return d.sensors }

// Matchers returns one entry per configured sensor.
func (d *Bloc7) Matchers() []DeviceMatcher {
	entries := make([]DeviceMatcher, 0, len(d.sensors))
	for _, s := range d.sensors {
		s := s
		entries = append(entries, DeviceMatcher{
			Matcher: s.matcher,
			Handle:  func(f Frame) bool { return s.ingestFrame(f) },
		})
	}
	return entries
}

func (s *sensor) ingestFrame(f Frame) bool {
	value, ok := extractValue(f.Data, s.cfg)
	if !ok {
		return false
	}

	s.mu.Lock()
	changed := !s.hasValue || s.value != value
	s.value = value
	s.hasValue = true
	observers := append([]func(float64){}, s.observers...)
	s.mu.Unlock()

	if changed {
		for _, obs := range observers {
			obs(value)
		}
	}
	return changed
}

// Subscribe registers an observer invoked with every new sensor reading.
func (s *sensor) Subscribe(obs func(value float64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// EntityID returns the sensor's configured MQTT/Home-Assistant entity id.
func (s *sensor) EntityID() string { return s.entityID }

// Name returns the sensor's configured display name.
func (s *sensor) Name() string { return s.name }

// IsLevel reports whether this is a tank/level sensor rather than a
// voltage sensor, for the MQTT sink's discovery payload (unit, device
// class).
func (s *sensor) IsLevel() bool { return s.kind == sensorLevel }

// Value returns the last known reading and whether one has been received.
func (s *sensor) Value() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

func extractValue(data []byte, cfg SensorConfig) (float64, bool) {
	numBytes := (cfg.BitLength + 7) / 8
	end := cfg.StartByte + numBytes
	if end > len(data) || cfg.StartByte < 0 {
		return 0, false
	}
	slice := data[cfg.StartByte:end]

	var raw uint64
	if strings.EqualFold(cfg.Endian, "little") {
		for i := len(slice) - 1; i >= 0; i-- {
			raw = raw<<8 | uint64(slice[i])
		}
	} else {
		for _, b := range slice {
			raw = raw<<8 | uint64(b)
		}
	}

	return float64(raw) * cfg.Scale, true
}

// RestoreState restores sensor readings from persisted data, keyed by a
// lowercase, space-to-underscore slug of the sensor's configured name.
func (d *Bloc7) RestoreState(state map[string]any) {
	for _, s := range d.sensors {
		key := sensorStateKey(s.name)
		raw, ok := state[key]
		if !ok {
			continue
		}
		if v, ok := raw.(float64); ok {
			s.mu.Lock()
			s.value = v
			s.hasValue = true
			s.mu.Unlock()
		}
	}
}

// StoreState returns every sensor's last reading for persistence.
func (d *Bloc7) StoreState() map[string]any {
	state := make(map[string]any)
	for _, s := range d.sensors {
		s.mu.Lock()
		v, has := s.value, s.hasValue
		s.mu.Unlock()
		if has {
			state[sensorStateKey(s.name)] = v
		}
	}
	return state
}

func sensorStateKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
