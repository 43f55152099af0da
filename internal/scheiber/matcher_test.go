package scheiber

import "testing"

func TestMatcherExactIsolation(t *testing.T) {
	m7 := Matcher{Pattern: classS1S2 | taggedDeviceByte(7), Mask: exactMask}
	m8 := Matcher{Pattern: classS1S2 | taggedDeviceByte(8), Mask: exactMask}

	frame8 := classS1S2 | taggedDeviceByte(8)

	if m7.Matches(frame8) {
		t.Fatalf("device 7 matcher must not match device 8's frame 0x%08X", frame8)
	}
	if !m8.Matches(frame8) {
		t.Fatalf("device 8 matcher must match its own frame 0x%08X", frame8)
	}
	if ExtractBloc9DeviceID(frame8) != 8 {
		t.Fatalf("extracted device id = %d, want 8", ExtractBloc9DeviceID(frame8))
	}
}

func TestExtractBloc9DeviceID(t *testing.T) {
	cases := []struct {
		id   uint32
		want int
	}{
		{0x021606D0, 10}, // (10<<3)|0x80 = 0xD0
		{0x021606B8, 7},  // (7<<3)|0x80 = 0xB8
		{0x021606C0, 8},  // (8<<3)|0x80 = 0xC0
	}
	for _, c := range cases {
		if got := ExtractBloc9DeviceID(c.id); got != c.want {
			t.Errorf("ExtractBloc9DeviceID(0x%08X) = %d, want %d", c.id, got, c.want)
		}
	}
}

func TestMatcherHistoricalMaskRegression(t *testing.T) {
	// A 0xFFFFFF00 mask (ignoring the device-id byte) was the historical bug:
	// it would make every device's frame match every other device's matcher.
	loose := Matcher{Pattern: classS1S2 | taggedDeviceByte(7), Mask: 0xFFFFFF00}
	frame8 := classS1S2 | taggedDeviceByte(8)
	if !loose.Matches(frame8) {
		t.Fatalf("sanity check: loose mask should still match, demonstrating why exact mask is required")
	}
}
