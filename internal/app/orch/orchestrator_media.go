package orch

import (
	"context"

	"github.com/dkeye/duet/internal/app/lifecycle"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// mediaSession is one MediaTransport attempt. Closed is terminal; a new
// host or join creates a fresh instance.
type mediaSession struct {
	role    domain.Role
	remote  domain.PeerID
	fsm     *domain.Machine
	conn    core.MediaConnection
	cancel  context.CancelFunc
	streams map[string]struct{}
}

func newMediaSession(role domain.Role, remote domain.PeerID, cancel context.CancelFunc) *mediaSession {
	ms := &mediaSession{
		role:    role,
		remote:  remote,
		fsm:     domain.NewMachine(),
		cancel:  cancel,
		streams: make(map[string]struct{}),
	}
	ms.fsm.Fire(domain.EventNegotiate)
	return ms
}

func (ms *mediaSession) connID() string {
	if ms.conn == nil {
		return ""
	}
	return string(ms.conn.ID())
}

// mediaHandlers forward transport events of ms onto the loop. Events that
// arrive after Teardown only release what they carry.
func (o *Orchestrator) mediaHandlers(ms *mediaSession) core.MediaHandlers {
	return core.MediaHandlers{
		OnStream: func(s core.MediaStream) {
			if !o.loop.Post(func() { o.onStream(ms, s) }) {
				lifecycle.ReleaseAll(nil, s)
			}
		},
		OnError: func(err error) {
			o.loop.Post(func() { o.onMediaError(ms, err) })
		},
		OnClose: func() {
			o.loop.Post(func() { o.onMediaClose(ms) })
		},
	}
}

func (o *Orchestrator) onStream(ms *mediaSession, s core.MediaStream) {
	if o.media != ms {
		lifecycle.ReleaseAll(nil, s)
		return
	}
	if _, seen := ms.streams[s.ID()]; seen {
		return
	}
	if _, ok := ms.fsm.Fire(domain.EventAttach); !ok {
		log.Warn().Str("module", "app.orch").Str("state", ms.fsm.State().String()).Msg("stream on inactive transport")
		lifecycle.ReleaseAll(nil, s)
		return
	}
	ms.streams[s.ID()] = struct{}{}
	if o.remote != nil && o.remote != s {
		lifecycle.ReleaseAll(nil, o.remote)
	}
	o.remote = s
	o.remoteOut.Set(s)
	log.Info().
		Str("module", "app.orch").
		Str("remote", ms.remote.String()).
		Str("conn_id", ms.connID()).
		Str("stream_id", s.ID()).
		Int("tracks", len(s.Tracks())).
		Msg("remote stream attached")
}

func (o *Orchestrator) onMediaError(ms *mediaSession, err error) {
	if o.media != ms {
		return
	}
	if _, ok := ms.fsm.Fire(domain.EventFail); !ok {
		return
	}
	o.report(&core.TransportError{Conn: domain.ConnectionID(ms.connID()), Kind: domain.KindMedia, Err: err})
	o.closeMedia(ms, "transport error")
}

func (o *Orchestrator) onMediaClose(ms *mediaSession) {
	if o.media != ms {
		return
	}
	o.closeMedia(ms, "remote close")
}

// closeMedia is the single entry into Closed for a media session, so the
// streams are released exactly once per session.
func (o *Orchestrator) closeMedia(ms *mediaSession, reason string) {
	from, ok := ms.fsm.Fire(domain.EventClose)
	if !ok {
		return
	}
	o.hosting = false
	if ms.cancel != nil {
		ms.cancel()
	}
	if ms.conn != nil && !ms.conn.IsClosed() {
		ms.conn.Close()
	}
	o.releaseStreams()
	log.Info().
		Str("module", "app.orch").
		Str("role", ms.role.String()).
		Str("remote", ms.remote.String()).
		Str("conn_id", ms.connID()).
		Str("from", from.String()).
		Str("reason", reason).
		Msg("media closed")
}
