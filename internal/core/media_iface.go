package core

import (
	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Track is one audio or video track, local (hardware) or remote (network).
type Track interface {
	ID() string
	Kind() webrtc.RTPCodecType
	// Stop releases the source behind the track. Safe to call more than once.
	Stop()
	Stopped() bool
}

// LocalTrack is a captured track that can be attached to a PeerConnection.
type LocalTrack interface {
	Track
	TrackLocal() webrtc.TrackLocal
}

type MediaStream interface {
	ID() string
	Tracks() []Track
}

// LiveTracks counts tracks of s that are not stopped. A nil stream has none.
func LiveTracks(s MediaStream) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, t := range s.Tracks() {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// MediaHandlers receive the events of one MediaConnection in the order
// the transport produced them. OnClose fires at most once.
type MediaHandlers struct {
	OnStream func(MediaStream)
	OnError  func(error)
	OnClose  func()
}

// MediaConnection is the negotiated audio/video connection to one remote peer.
type MediaConnection interface {
	ID() domain.ConnectionID
	Peer() domain.PeerID
	// Close stops the underlying PeerConnection and fires OnClose.
	Close()
	IsClosed() bool
}
