package scheiber

import "errors"

// Configuration errors are fatal at system construction.
var (
	// ErrDuplicateDevice is returned when two devices share (family, bus_id).
	ErrDuplicateDevice = errors.New("scheiber: duplicate device (family, bus_id)")

	// ErrUnknownDeviceType is returned for a device family this build doesn't support.
	ErrUnknownDeviceType = errors.New("scheiber: unknown device type")

	// ErrInvalidSlot is returned for a slot name outside s1..s6, or a bus_id outside 0-15.
	ErrInvalidSlot = errors.New("scheiber: invalid slot or bus_id")

	// ErrDuplicateEntityID is returned when two outputs share an entity id.
	ErrDuplicateEntityID = errors.New("scheiber: duplicate entity id")

	// ErrSlotConflict is returned when one slot is assigned to both a light and a switch.
	ErrSlotConflict = errors.New("scheiber: slot assigned to both a light and a switch")
)

// Runtime errors. These are logged and isolated to the offending frame or
// command; none of them are fatal.
var (
	// ErrShortFrame is returned by the codec when a switch-pair payload is
	// shorter than the 8 bytes the protocol requires.
	ErrShortFrame = errors.New("scheiber: frame payload too short")

	// ErrUnknownEasing is returned synchronously to a fade_to caller that
	// named an easing function not present in the registry.
	ErrUnknownEasing = errors.New("scheiber: unknown easing function")

	// ErrTransport wraps a send failure from the CAN transport.
	ErrTransport = errors.New("scheiber: transport error")

	// ErrPersistence wraps a failure reading or writing the state file.
	ErrPersistence = errors.New("scheiber: persistence error")
)
