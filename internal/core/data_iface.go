package core

import "github.com/dkeye/duet/internal/domain"

// DataHandlers receive the events of one DataConnection in order.
type DataHandlers struct {
	OnOpen    func()
	OnMessage func([]byte)
	OnError   func(error)
	OnClose   func()
}

// DataConnection is the text-message channel to one remote peer.
type DataConnection interface {
	ID() domain.ConnectionID
	Peer() domain.PeerID
	Label() string
	Send([]byte) error
	Close()
	IsClosed() bool
}
