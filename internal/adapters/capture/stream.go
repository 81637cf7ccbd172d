// Package capture provides the local media sources of a peer.
package capture

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/duet/internal/core"
	"github.com/pion/webrtc/v4"
)

// Stream is a captured stream whose tracks were all acquired together.
type Stream struct {
	id     string
	tracks []core.Track
}

func NewStream(id string, tracks ...core.Track) *Stream {
	return &Stream{id: id, tracks: tracks}
}

func (s *Stream) ID() string { return s.id }

func (s *Stream) Tracks() []core.Track {
	out := make([]core.Track, len(s.tracks))
	copy(out, s.tracks)
	return out
}

// sampleTrack is a TrackLocalStaticSample fed by a player goroutine until
// Stop. Stop waits for the player to release its source.
type sampleTrack struct {
	local   *webrtc.TrackLocalStaticSample
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
}

func newSampleTrack(local *webrtc.TrackLocalStaticSample) *sampleTrack {
	return &sampleTrack{
		local: local,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (t *sampleTrack) ID() string                    { return t.local.ID() }
func (t *sampleTrack) Kind() webrtc.RTPCodecType     { return t.local.Kind() }
func (t *sampleTrack) TrackLocal() webrtc.TrackLocal { return t.local }
func (t *sampleTrack) Stopped() bool                 { return t.stopped.Load() }

func (t *sampleTrack) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.stop)
		<-t.done
	})
}
