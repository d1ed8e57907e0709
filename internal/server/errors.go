package server

import (
	"errors"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/attr"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/lauda"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen    = errors.New("listen")
	ErrAccept    = errors.New("accept")
	ErrHandshake = errors.New("handshake")
	ErrConnRead  = errors.New("conn_read")
	ErrConnWrite = errors.New("conn_write")
	ErrContext   = errors.New("context_cancelled")
)

// mapErrToMetric maps wrapped sentinel errors to metrics labels.
func mapErrToMetric(err error) string {
	switch {
	case errors.Is(err, ErrConnRead):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrConnWrite):
		return metrics.ErrTCPWrite
	case errors.Is(err, ErrHandshake):
		return metrics.ErrHandshake
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrContext):
		return "context"
	default:
		return "other"
	}
}

// Client-facing error codes carried on ERR response lines.
const (
	CodeTimeout   = "TIMEOUT"
	CodeTransport = "TRANSPORT"
	CodeProtocol  = "PROTOCOL"
	CodeBadAttr   = "BADATTR"
	CodeAccess    = "ACCESS"
	CodeBadValue  = "BADVALUE"
	CodeBadCmd    = "BADCMD"
)

// errCode classifies an attribute access failure for the wire.
func errCode(err error) string {
	switch {
	case errors.Is(err, lauda.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, lauda.ErrProtocol):
		metrics.IncProtocolError()
		return CodeProtocol
	case errors.Is(err, attr.ErrUnknown):
		return CodeBadAttr
	case errors.Is(err, attr.ErrAccess):
		return CodeAccess
	default:
		return CodeTransport
	}
}
