package scheiber

import (
	"sync"
	"testing"
)

type fakeSender struct {
	mu    sync.Mutex
	sends []sentFrame
}

type sentFrame struct {
	id   uint32
	data []byte
}

func (f *fakeSender) send(id uint32, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte{}, data...)
	f.sends = append(f.sends, sentFrame{id, cp})
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

func newTestBloc9(t *testing.T, busID int) (*Bloc9, *fakeSender) {
	t.Helper()
	fs := &fakeSender{}
	cfg := DeviceConfig{
		Type:  "bloc9",
		BusID: busID,
		Lights: map[string]LightConfig{
			"s1": {Name: "Saloon", EntityID: "light_saloon"},
		},
		Switches: map[string]SwitchConfig{
			"s2": {Name: "Bilge Pump", EntityID: "switch_bilge"},
		},
	}
	d, err := NewBloc9(busID, cfg, fs.send, NopLogger{})
	if err != nil {
		t.Fatalf("NewBloc9: %v", err)
	}
	return d, fs
}

func findMatcher(entries []DeviceMatcher, id uint32) (DeviceMatcher, bool) {
	for _, e := range entries {
		if e.Matcher.Matches(id) {
			return e, true
		}
	}
	return DeviceMatcher{}, false
}

func TestBloc9S1OnFromPhysicalButton(t *testing.T) {
	d, _ := newTestBloc9(t, 10)
	entries := d.Matchers()

	id := uint32(0x021606D0)
	data := []byte{0x64, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}

	e, ok := findMatcher(entries, id)
	if !ok {
		t.Fatalf("no matcher for 0x%08X", id)
	}
	e.Handle(Frame{ID: id, Data: data})

	state, brightness := d.Light("s1").State()
	if !state || brightness != 100 {
		t.Fatalf("s1 = (%v,%d), want (true,100)", state, brightness)
	}
}

func TestBloc9CrossDeviceIsolation(t *testing.T) {
	d7, _ := newTestBloc9(t, 7)
	d8, _ := newTestBloc9(t, 8)

	id := uint32(0x021606C0) // device 8's s1/s2 class id
	data := []byte{0xC8, 0, 0, 0x01, 0, 0, 0, 0}

	for _, e := range d7.Matchers() {
		if e.Matcher.Matches(id) {
			t.Fatalf("device 7's matcher must not match device 8's frame")
		}
	}

	e, ok := findMatcher(d8.Matchers(), id)
	if !ok {
		t.Fatalf("no matcher on device 8 for 0x%08X", id)
	}
	e.Handle(Frame{ID: id, Data: data})

	state, brightness := d8.Light("s1").State()
	if !state || brightness != 200 {
		t.Fatalf("device 8 s1 = (%v,%d), want (true,200)", state, brightness)
	}

	state7, brightness7 := d7.Light("s1").State()
	if state7 || brightness7 != 0 {
		t.Fatalf("device 7 s1 must be untouched, got (%v,%d)", state7, brightness7)
	}
}

func TestBloc9HeartbeatDoesNotClobber(t *testing.T) {
	d, _ := newTestBloc9(t, 7)
	d.Light("s1").setFromPersisted(true, 76)

	var notified bool
	d.Light("s1").Subscribe(func(string, any) { notified = true })

	id := uint32(0x000006B8)
	e, ok := findMatcher(d.Matchers(), id)
	if !ok {
		t.Fatalf("no heartbeat matcher for 0x%08X", id)
	}
	e.Handle(Frame{ID: id, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}})

	state, brightness := d.Light("s1").State()
	if !state || brightness != 76 {
		t.Fatalf("heartbeat must not change state, got (%v,%d)", state, brightness)
	}
	if notified {
		t.Fatalf("heartbeat must not notify observers")
	}
}

func TestBloc9CommandEchoIgnored(t *testing.T) {
	d, _ := newTestBloc9(t, 7)
	id := uint32(0x02360600 | 0xB8)
	e, ok := findMatcher(d.Matchers(), id)
	if !ok {
		t.Fatalf("expected a command-echo matcher")
	}
	// Must not panic and must not touch any output.
	e.Handle(Frame{ID: id, Data: []byte{0, 0, 0, 0}})
}

func TestBloc9ShortFrameDropped(t *testing.T) {
	d, _ := newTestBloc9(t, 7)
	d.Light("s1").setFromPersisted(true, 100)

	id := uint32(0x021606B8)
	e, _ := findMatcher(d.Matchers(), id)
	e.Handle(Frame{ID: id, Data: []byte{1, 2, 3}})

	state, brightness := d.Light("s1").State()
	if !state || brightness != 100 {
		t.Fatalf("short frame must not change state, got (%v,%d)", state, brightness)
	}
}

func TestBloc9RestoreProducesZeroSends(t *testing.T) {
	d, fs := newTestBloc9(t, 7)
	d.RestoreState(map[string]any{
		"s1": map[string]any{"state": true, "brightness": 180},
	})
	if fs.count() != 0 {
		t.Fatalf("restore must not send CAN frames, got %d", fs.count())
	}
	_, b := d.Light("s1").State()
	if b != 180 {
		t.Fatalf("brightness = %d, want 180", b)
	}
}

func TestBloc9SwitchCommandGoesThroughSender(t *testing.T) {
	d, fs := newTestBloc9(t, 7)
	d.Switch("s2").Set(true)
	if fs.count() != 1 {
		t.Fatalf("expected 1 send, got %d", fs.count())
	}
	if fs.sends[0].id != uint32(0x02360600|0xB8) {
		t.Fatalf("unexpected arbitration id 0x%08X", fs.sends[0].id)
	}
}
