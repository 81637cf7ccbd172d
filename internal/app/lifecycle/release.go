// Package lifecycle releases the hardware and network sources behind media streams.
package lifecycle

import (
	"github.com/dkeye/duet/internal/core"
	"github.com/rs/zerolog/log"
)

// ReleaseAll stops every track of both streams. Either stream may be nil, and
// tracks already stopped are left alone, so repeated calls are harmless.
// It returns how many tracks it stopped.
func ReleaseAll(local, remote core.MediaStream) int {
	return stopStream("local", local) + stopStream("remote", remote)
}

func stopStream(side string, s core.MediaStream) int {
	if s == nil {
		return 0
	}
	stopped := 0
	for _, t := range s.Tracks() {
		if t == nil || t.Stopped() {
			continue
		}
		t.Stop()
		stopped++
	}
	if stopped > 0 {
		log.Debug().
			Str("module", "app.lifecycle").
			Str("side", side).
			Str("stream_id", s.ID()).
			Int("tracks", stopped).
			Msg("stream released")
	}
	return stopped
}
