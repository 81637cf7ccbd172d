package core

import (
	"context"

	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Options are handed to the rendezvous registration unchanged.
type Options struct {
	ICEServers []webrtc.ICEServer
}

// IncomingCall is a media offer waiting for the local side to answer.
type IncomingCall interface {
	ID() domain.ConnectionID
	Peer() domain.PeerID
	Answer(ctx context.Context, local MediaStream, h MediaHandlers) (MediaConnection, error)
	Reject()
}

// IncomingData is a data-channel offer waiting to be accepted.
type IncomingData interface {
	ID() domain.ConnectionID
	Peer() domain.PeerID
	Label() string
	Accept(ctx context.Context, h DataHandlers) (DataConnection, error)
	Reject()
}

// Signaling is the rendezvous collaborator. It only exchanges connection
// setup metadata; media never flows through it.
type Signaling interface {
	Register(ctx context.Context, id domain.PeerID, opts Options) error
	OnIncomingCall(func(IncomingCall))
	OnIncomingData(func(IncomingData))
	// Call blocks until the remote answered or the rendezvous reported it unavailable.
	Call(ctx context.Context, remote domain.PeerID, local MediaStream, h MediaHandlers) (MediaConnection, error)
	ConnectData(ctx context.Context, remote domain.PeerID, h DataHandlers) (DataConnection, error)
	// Disconnect leaves the rendezvous service; established connections survive.
	Disconnect()
	// Destroy disconnects and closes every connection.
	Destroy()
}
