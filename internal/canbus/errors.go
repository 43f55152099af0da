package canbus

import "errors"

var (
	// ErrNotOpen is returned by Send when the connection hasn't been opened
	// or has already been closed.
	ErrNotOpen = errors.New("canbus: connection not open")

	// ErrReadOnly is returned by Send on a connection opened in read-only
	// mode, mirroring can_bus.py's read_only guard.
	ErrReadOnly = errors.New("canbus: connection is read-only")
)
