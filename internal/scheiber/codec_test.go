package scheiber

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeSwitchPairShortFrame(t *testing.T) {
	_, _, _, _, err := DecodeSwitchPair([]byte{0x64, 0, 0})
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("err = %v, want ErrShortFrame", err)
	}
}

func TestDecodeSwitchPairBoundary(t *testing.T) {
	// state_bit=1, brightness=0 => hardware quirk: full on, brightness=255.
	loState, loBright, _, _, err := DecodeSwitchPair([]byte{0x00, 0, 0, 0x01, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loState || loBright != 255 {
		t.Fatalf("got (%v, %d), want (true, 255)", loState, loBright)
	}

	// state_bit=0, brightness=3 => threshold derivation says ON.
	loState, loBright, _, _, err = DecodeSwitchPair([]byte{0x03, 0, 0, 0x00, 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loState || loBright != 3 {
		t.Fatalf("got (%v, %d), want (true, 3)", loState, loBright)
	}
}

func TestDecodeSwitchPairS1S2Example(t *testing.T) {
	// spec §8 seed scenario: s1 on from a physical button.
	data := []byte{0x64, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}
	loState, loBright, hiState, hiBright, err := DecodeSwitchPair(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loState || loBright != 100 {
		t.Errorf("s1 = (%v, %d), want (true, 100)", loState, loBright)
	}
	if hiState || hiBright != 0 {
		t.Errorf("s2 = (%v, %d), want (false, 0)", hiState, hiBright)
	}
}

func TestEncodeCommandBoundary(t *testing.T) {
	cases := []struct {
		brightness int
		want       []byte
	}{
		{0, []byte{5, 0x00, 0x00, 0x00}},
		{1, []byte{5, 0x00, 0x00, 0x00}},
		{2, []byte{5, 0x00, 0x00, 0x00}},
		{3, []byte{5, 0x11, 0x00, 3}},
		{128, []byte{5, 0x11, 0x00, 128}},
		{252, []byte{5, 0x11, 0x00, 252}},
		{253, []byte{5, 0x01, 0x00, 0x00}},
		{254, []byte{5, 0x01, 0x00, 0x00}},
		{255, []byte{5, 0x01, 0x00, 0x00}},
	}
	for _, c := range cases {
		_, data := EncodeCommand(10, 5, c.brightness)
		if !bytes.Equal(data, c.want) {
			t.Errorf("EncodeCommand(_, 5, %d) = % X, want % X", c.brightness, data, c.want)
		}
	}
}

func TestEncodeCommandArbitrationID(t *testing.T) {
	id, _ := EncodeCommand(10, 0, 100)
	want := uint32(0x02360600 | 0xD0)
	if id != want {
		t.Fatalf("id = 0x%08X, want 0x%08X", id, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, b := range []int{0, 3, 50, 128, 200, 252, 255} {
		_, data := EncodeCommand(3, 0, b)
		// Build the device's status echo of that command in the low slot: the
		// command's level becomes brightness byte 0, its mode goes to byte 1,
		// and the ON bit in byte 3 is set for any mode other than 0x00.
		// (The command payload itself is [slot, mode, 0, level], a different
		// layout from a status half.)
		mode, level := data[1], data[3]
		full := []byte{level, mode, 0, mode & 0x01, 0, 0, 0, 0}
		gotState, gotBright, _, _, err := DecodeSwitchPair(full)
		if err != nil {
			t.Fatalf("b=%d: unexpected error: %v", b, err)
		}
		wantState := b > DimThreshold
		wantBright := b
		if b <= DimThreshold {
			wantBright = 0
		} else if b >= 255-DimThreshold {
			wantBright = 255
		}
		if gotState != wantState || gotBright != wantBright {
			t.Errorf("round-trip b=%d: got (%v,%d), want (%v,%d)", b, gotState, gotBright, wantState, wantBright)
		}
	}
}

func TestCommandRoundTripsThroughMatcher(t *testing.T) {
	for deviceID := 0; deviceID <= 15; deviceID++ {
		for slot := 0; slot <= 5; slot++ {
			id, _ := EncodeCommand(deviceID, slot, 100)
			// The command-echo matcher for this device must be the one that matches.
			m := Matcher{Pattern: classCommand | taggedDeviceByte(deviceID), Mask: exactMask}
			if !m.Matches(id) {
				t.Errorf("device %d slot %d: command id 0x%08X did not match its own echo matcher", deviceID, slot, id)
			}
			if got := ExtractBloc9DeviceID(id); got != deviceID {
				t.Errorf("device %d slot %d: extracted id %d from command frame", deviceID, slot, got)
			}
		}
	}
}
