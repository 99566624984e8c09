package server

import (
	"errors"

	"github.com/oleelnes/FMB003-server-public/internal/metrics"
)

// Sentinel errors used for wrapping so callers can classify via errors.Is.
var (
	ErrListen        = errors.New("listen")
	ErrAccept        = errors.New("accept")
	ErrHandshake     = errors.New("handshake")
	ErrConnRead      = errors.New("conn_read")
	ErrConnWrite     = errors.New("conn_write")
	ErrFrameDecode   = errors.New("frame_decode")
	ErrUnknownIMEI   = errors.New("unknown imei")
	ErrSessionClosed = errors.New("session closed")
	ErrTxOverflow    = errors.New("tx overflow")
	ErrContext       = errors.New("context_cancelled")
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
	case errors.Is(err, ErrFrameDecode):
		return metrics.ErrDecode
	case errors.Is(err, ErrTxOverflow):
		return metrics.ErrTxOverflow
	case errors.Is(err, ErrUnknownIMEI), errors.Is(err, ErrSessionClosed):
		return metrics.ErrCommand
	case errors.Is(err, ErrAccept), errors.Is(err, ErrListen):
		return metrics.ErrTCPRead
	case errors.Is(err, ErrContext):
		return "context"
	default:
		return "other"
	}
}
