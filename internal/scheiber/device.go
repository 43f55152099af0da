package scheiber

// Frame is a CAN frame as produced by internal/canbus: a 29-bit arbitration
// ID and 0-8 bytes of payload.
type Frame struct {
	ID   uint32
	Data []byte
}

// FrameSender encodes and sends a raw CAN frame. It's the transport-facing
// side of SendFunc; a device binds it once and hands derived SendFuncs down
// to its outputs.
type FrameSender func(id uint32, data []byte) error

// DeviceMatcher pairs a Matcher with the handler a System should invoke on a
// match. A Device contributes one or more of these; the System flattens
// every device's matchers into a single dispatch list (spec §4.6). Handle
// reports whether the frame actually changed some Output's state, so the
// System can gate its persistence dirty flag on real state changes rather
// than on every matched frame (heartbeats and command echoes match but
// never mutate state).
type DeviceMatcher struct {
	Matcher Matcher
	Handle  func(Frame) bool
}

// Device is the tagged-union extension point spec §9 calls for: a closed
// set of concrete device variants (Bloc9, Bloc7), each implementing this
// small interface. The System holds devices opaquely and never needs
// virtual dispatch beyond this.
type Device interface {
	// Key identifies the device for persistence and duplicate detection:
	// "<family>_<bus_id>".
	Key() string

	// Matchers returns this device's dispatch entries.
	Matchers() []DeviceMatcher

	// RestoreState pushes persisted state into the device without sending
	// any CAN frames.
	RestoreState(state map[string]any)

	// StoreState returns the device's current state for persistence.
	StoreState() map[string]any
}
