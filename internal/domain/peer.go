// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxPeerIDLen = 64

var (
	ErrPeerIDEmpty   = errors.New("peer id empty")
	ErrPeerIDTooLong = errors.New("peer id too long")
)

// PeerID identifies one participant on the rendezvous service.
type PeerID string

// NewPeerID returns a fresh random identity.
func NewPeerID() PeerID {
	return PeerID(uuid.NewString())
}

// ParsePeerID validates an identity received from the outside world.
func ParsePeerID(s string) (PeerID, error) {
	if len(s) == 0 {
		return "", ErrPeerIDEmpty
	}
	if len(s) > MaxPeerIDLen {
		return "", ErrPeerIDTooLong
	}
	return PeerID(s), nil
}

func (id PeerID) String() string { return string(id) }

// ConnectionID identifies one negotiated transport between two peers.
type ConnectionID string

func NewConnectionID(kind TransportKind) ConnectionID {
	return ConnectionID(string(kind) + "_" + uuid.NewString())
}

type TransportKind string

const (
	KindMedia TransportKind = "media"
	KindData  TransportKind = "data"
)

// Role records which side started the negotiation.
type Role int

const (
	RoleHost Role = iota
	RoleJoin
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleJoin:
		return "join"
	default:
		return "unknown"
	}
}
