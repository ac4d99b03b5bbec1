package session

import "errors"

var (
	ErrInvalidConfig     = errors.New("session: invalid config")
	ErrHandshakeTimeout  = errors.New("session: handshake timeout")
	ErrResendsExhausted  = errors.New("session: resends exhausted")
	ErrReceiveTimeout    = errors.New("session: receive idle timeout")
	ErrDimensionMismatch = errors.New("session: payload dimension mismatch")
	ErrClosed            = errors.New("session: closed")
)
