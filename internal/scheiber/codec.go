package scheiber

// Arbitration ID message-class prefixes (bits 8-28) for the Bloc9 family.
const (
	classHeartbeat uint32 = 0x00000600
	classS1S2      uint32 = 0x02160600
	classS3S4      uint32 = 0x02180600
	classS5S6      uint32 = 0x021A0600
	classCommand   uint32 = 0x02360600
)

// DimThreshold is the symmetric dimming threshold: brightness in [0,
// DimThreshold] reads as OFF, [255-DimThreshold, 255] reads as full ON with
// no PWM, and everything between is PWM dimming.
const DimThreshold = 2

// decodeHalf decodes one 4-byte half of a switch-pair payload: byte 0 is
// brightness, byte 3 bit 0 is the raw ON/OFF bit. It applies the derivation
// rule and the hardware quirk from spec §3: a device reporting
// (state_bit=1, brightness=0) means "full on, no PWM", i.e. brightness=255.
func decodeHalf(half []byte) (state bool, brightness int) {
	brightness = int(half[0])
	stateBit := half[3]&0x01 != 0

	if stateBit && brightness == 0 {
		brightness = 255
	}

	state = stateBit || brightness > DimThreshold
	return state, brightness
}

// DecodeSwitchPair decodes an 8-byte switch-pair payload into the lower
// output's and higher output's (state, brightness). data shorter than 8
// bytes is rejected with ErrShortFrame and no output is touched.
func DecodeSwitchPair(data []byte) (loState bool, loBrightness int, hiState bool, hiBrightness int, err error) {
	if len(data) < 8 {
		return false, 0, false, 0, ErrShortFrame
	}
	loState, loBrightness = decodeHalf(data[0:4])
	hiState, hiBrightness = decodeHalf(data[4:8])
	return loState, loBrightness, hiState, hiBrightness, nil
}

func clampByte(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EncodeCommand produces the arbitration ID and 4-byte payload for a Bloc9
// command targeting slot (0-5) on deviceID, applying threshold snapping near
// the OFF and full-ON endpoints:
//
//   - brightness <= DimThreshold:        mode=0x00, level=0x00 (hard OFF)
//   - brightness >= 255-DimThreshold:    mode=0x01, level=0x00 (full ON)
//   - otherwise:                         mode=0x11, level=clamp(brightness, 1, 254)
func EncodeCommand(deviceID, slot int, brightness int) (id uint32, data []byte) {
	id = classCommand | taggedDeviceByte(deviceID)

	var mode, level byte
	switch {
	case brightness <= DimThreshold:
		mode, level = 0x00, 0x00
	case brightness >= 255-DimThreshold:
		mode, level = 0x01, 0x00
	default:
		mode, level = 0x11, byte(clampByte(brightness, 1, 254))
	}

	data = []byte{byte(slot), mode, 0x00, level}
	return id, data
}

// brightnessForState is the fallback brightness a plain on/off command sends
// when no explicit brightness is supplied: full ON or hard OFF.
func brightnessForState(on bool) int {
	if on {
		return 255
	}
	return 0
}
