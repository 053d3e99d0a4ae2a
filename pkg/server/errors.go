package server

import (
	"errors"
	"fmt"
	"net"

	"github.com/vitalvas/radiusd/pkg/packet"
)

var (
	// ErrInterrupted is returned by a multiplexer wait cut short by a signal.
	// The dispatcher retries it.
	ErrInterrupted = errors.New("wait interrupted")
	// ErrNoHandler is returned by New when Config.Handler is nil.
	ErrNoHandler = errors.New("no handler configured")
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrProxyDisabled is returned by Forward when the server has no proxy socket.
	ErrProxyDisabled = errors.New("proxying is not enabled")
	// ErrUnknownUpstream is returned by Forward for upstreams missing from the remote host table.
	ErrUnknownUpstream = errors.New("unknown upstream")
	// ErrNotForwardable is returned by Forward for packet codes that cannot be proxied.
	ErrNotForwardable = errors.New("packet cannot be forwarded")
	// ErrNoFreeIdentifier is returned when all 256 identifiers to an upstream are in flight.
	ErrNoFreeIdentifier = errors.New("no free identifier for upstream")
)

// BindError reports a socket that could not be bound.
type BindError struct {
	Role    Role
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s socket on %s: %v", e.Role, e.Address, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// RejectError describes a packet dropped by validation.
type RejectError struct {
	Reason Reason
	Source net.Addr
	Code   packet.Code
}

func newRejectError(pkt *packet.Packet, reason Reason) *RejectError {
	return &RejectError{Reason: reason, Source: pkt.Source, Code: pkt.Code}
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected %s from %s: %s", e.Code, e.Source, e.Reason)
}

// HandlerError wraps a failure of the handling hook. Panics are recovered into it.
type HandlerError struct {
	Err   error
	Panic bool
}

func (e *HandlerError) Error() string {
	if e.Panic {
		return fmt.Sprintf("handler panic: %v", e.Err)
	}
	return fmt.Sprintf("handler error: %v", e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PollError is a fatal multiplexer failure. It stops the dispatcher.
type PollError struct {
	Err error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll failed: %v", e.Err)
}

func (e *PollError) Unwrap() error {
	return e.Err
}
