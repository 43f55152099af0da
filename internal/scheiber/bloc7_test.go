package scheiber

import (
	"math"
	"testing"
)

func newTestBloc7(busID int) *Bloc7 {
	cfg := DeviceConfig{
		Type:  "bloc7",
		BusID: busID,
		Voltages: []SensorConfig{
			{
				Name: "Battery Voltage", EntityID: "sensor_battery_voltage",
				Pattern: 0x02100600 | uint32((busID<<3)|0x80),
				StartByte: 0, BitLength: 16, Endian: "big", Scale: 0.01,
			},
		},
		Levels: []SensorConfig{
			{
				Name: "Fresh Water", EntityID: "sensor_fresh_water",
				Pattern: 0x02120600 | uint32((busID<<3)|0x80),
				StartByte: 2, BitLength: 8, Endian: "big", Scale: 1,
			},
		},
	}
	return NewBloc7(busID, cfg)
}

func TestBloc7VoltageExtraction(t *testing.T) {
	d := newTestBloc7(3)
	entries := d.Matchers()

	id := uint32(0x02100600 | (3 << 3) | 0x80)
	e, ok := findMatcher(entries, id)
	if !ok {
		t.Fatalf("no matcher for voltage sensor at 0x%08X", id)
	}

	e.Handle(Frame{ID: id, Data: []byte{0x05, 0x28, 0, 0, 0, 0, 0, 0}}) // 0x0528 = 1320 * 0.01 = 13.20

	s := d.Sensors()[0]
	s.mu.Lock()
	v, has := s.value, s.hasValue
	s.mu.Unlock()
	if !has || math.Abs(v-13.2) > 1e-9 {
		t.Fatalf("voltage = %v (has=%v), want 13.2", v, has)
	}
}

func TestBloc7LevelExtractionAndEndian(t *testing.T) {
	d := newTestBloc7(3)
	entries := d.Matchers()

	id := uint32(0x02120600 | (3 << 3) | 0x80)
	e, ok := findMatcher(entries, id)
	if !ok {
		t.Fatalf("no matcher for level sensor at 0x%08X", id)
	}
	e.Handle(Frame{ID: id, Data: []byte{0, 0, 72, 0, 0, 0, 0, 0}})

	s := d.Sensors()[1]
	s.mu.Lock()
	v := s.value
	s.mu.Unlock()
	if v != 72 {
		t.Fatalf("level = %v, want 72", v)
	}

	le := SensorConfig{StartByte: 0, BitLength: 16, Endian: "little", Scale: 1}
	if got, ok := extractValue([]byte{0x28, 0x05}, le); !ok || got != 0x0528 {
		t.Fatalf("little-endian value = %v (ok=%v), want %v", got, ok, 0x0528)
	}
}

func TestBloc7NoChangeNoNotify(t *testing.T) {
	d := newTestBloc7(3)
	s := d.Sensors()[0]

	calls := 0
	s.Subscribe(func(float64) { calls++ })

	id := uint32(0x02100600 | (3 << 3) | 0x80)
	e, _ := findMatcher(d.Matchers(), id)
	frame := Frame{ID: id, Data: []byte{0x01, 0x00, 0, 0, 0, 0, 0, 0}}

	e.Handle(frame)
	e.Handle(frame)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second identical frame must not renotify)", calls)
	}
}

func TestBloc7CrossDeviceIsolation(t *testing.T) {
	d3 := newTestBloc7(3)
	d4 := newTestBloc7(4)

	id4 := uint32(0x02100600 | (4 << 3) | 0x80)
	for _, e := range d3.Matchers() {
		if e.Matcher.Matches(id4) {
			t.Fatalf("device 3 must not match device 4's frame")
		}
	}
	e, ok := findMatcher(d4.Matchers(), id4)
	if !ok {
		t.Fatalf("no matcher on device 4 for its own id")
	}
	e.Handle(Frame{ID: id4, Data: []byte{0x01, 0x00, 0, 0, 0, 0, 0, 0}})
}

func TestBloc7RestoreAndStoreRoundtrip(t *testing.T) {
	d := newTestBloc7(3)
	d.RestoreState(map[string]any{
		"battery_voltage": 12.6,
		"fresh_water":     85.0,
	})

	stored := d.StoreState()
	if stored["battery_voltage"] != 12.6 {
		t.Fatalf("battery_voltage = %v, want 12.6", stored["battery_voltage"])
	}
	if stored["fresh_water"] != 85.0 {
		t.Fatalf("fresh_water = %v, want 85.0", stored["fresh_water"])
	}
}

func TestExtractValueShortFrame(t *testing.T) {
	cfg := SensorConfig{StartByte: 6, BitLength: 16, Endian: "big", Scale: 1}
	_, ok := extractValue([]byte{0, 0, 0, 0}, cfg)
	if ok {
		t.Fatalf("extractValue must reject a frame too short for the configured field")
	}
}
