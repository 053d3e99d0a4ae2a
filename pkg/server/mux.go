package server

import "time"

// multiplexer waits for readable sockets.
type multiplexer interface {
	// Wait blocks up to timeout and returns the ready sockets in readiness
	// order. An empty result means the timeout passed. A wait cut short by a
	// signal returns ErrInterrupted.
	Wait(timeout time.Duration) ([]*Socket, error)
}

type multiplexerFactory func(sockets []*Socket) (multiplexer, error)
