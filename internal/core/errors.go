package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/duet/internal/domain"
)

var (
	ErrNotReady        = errors.New("identity not initialized")
	ErrDestroyed       = errors.New("session torn down")
	ErrSessionActive   = errors.New("media session already live")
	ErrAborted         = errors.New("session ended during negotiation")
	ErrBusy            = errors.New("operation already in progress")
	ErrNoChannel       = errors.New("no data channel")
	ErrChannelNotOpen  = errors.New("data channel not open")
	ErrChannelClosed   = errors.New("data channel closed")
	ErrPeerUnavailable = errors.New("peer unavailable")
	ErrIDTaken         = errors.New("id taken")
)

// RegistrationError means the identity could not be established with the
// rendezvous service. Fatal for the attempt.
type RegistrationError struct {
	Peer domain.PeerID
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %v", e.Peer, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// CaptureError means the capture devices were denied or unavailable.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture: %v", e.Err) }

func (e *CaptureError) Unwrap() error { return e.Err }

// DialError means an outbound transport to Remote could not be established.
type DialError struct {
	Remote domain.PeerID
	Kind   domain.TransportKind
	Err    error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial %s %s: %v", e.Kind, e.Remote, e.Err)
}

func (e *DialError) Unwrap() error { return e.Err }

// TransportError is a failure on an established media or data transport.
type TransportError struct {
	Conn domain.ConnectionID
	Kind domain.TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport %s: %v", e.Kind, e.Conn, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
