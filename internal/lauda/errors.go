package lauda

import "errors"

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	// ErrTimeout means the instrument produced no response line within the
	// configured exchange timeout.
	ErrTimeout = errors.New("timeout")
	// ErrTransport means the serial port could not be opened, written or read.
	ErrTransport = errors.New("transport")
	// ErrProtocol means the instrument answered but the response does not
	// match the expected format for the issued command.
	ErrProtocol = errors.New("protocol")
)
