package orch

import (
	"context"

	"github.com/dkeye/duet/internal/app/chat"
	"github.com/dkeye/duet/internal/app/lifecycle"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinSession captures local media, opens (or reuses) the data channel to
// remote, then calls remote. It returns once the call is answered; the media
// transport turns active when the remote stream attaches.
//
// A live media session must be ended first (ErrSessionActive). When the call
// cannot be placed the local stream is released and a DialError returned, while
// an already open data channel stays usable.
func (o *Orchestrator) JoinSession(ctx context.Context, remote domain.PeerID) error {
	var err error
	if derr := o.do(func() { err = o.checkIdle() }); derr != nil {
		return derr
	}
	if err != nil {
		return err
	}

	stream, err := o.acquire(ctx)
	if err != nil {
		return err
	}

	logger := log.With().Str("module", "app.orch").Str("remote", remote.String()).Logger()

	dialCtx, cancel := context.WithCancel(ctx)
	var (
		ms      *mediaSession
		ch      *chat.Channel
		dialing bool
	)
	if derr := o.do(func() {
		if err = o.checkIdle(); err != nil {
			return
		}
		o.publishLocal(stream)
		ms = newMediaSession(domain.RoleJoin, remote, cancel)
		o.media = ms

		if o.chat != nil && o.chat.State().Live() && o.chat.Remote() == remote {
			ch = o.chat
			return
		}
		if o.chat != nil {
			o.closeChat(o.chat)
		}
		ch = chat.New(remote, domain.RoleJoin)
		ch.Begin()
		o.chat = ch
		dialing = true
	}); derr != nil {
		err = derr
	}
	if err != nil {
		cancel()
		lifecycle.ReleaseAll(stream, nil)
		return err
	}

	if dialing {
		logger.Info().Msg("opening data channel")
		conn, derr := o.signaling.ConnectData(dialCtx, remote, o.dataHandlers(ch))
		dataAborted := false
		if err := o.do(func() {
			if derr != nil {
				dataAborted = ms.fsm.State() == domain.StateClosed
				ch.Close()
				o.closeMedia(ms, "data dial failed")
				return
			}
			ch.Attach(conn)
		}); err != nil {
			if conn != nil {
				conn.Close()
			}
			return err
		}
		if dataAborted {
			return core.ErrAborted
		}
		if derr != nil {
			logger.Error().Err(derr).Msg("data channel dial failed")
			return &core.DialError{Remote: remote, Kind: domain.KindData, Err: derr}
		}
	} else {
		logger.Debug().Msg("reusing data channel")
	}

	aborted := false
	_ = o.do(func() { aborted = ms.fsm.State() != domain.StateNegotiating })
	if aborted {
		return core.ErrAborted
	}

	logger.Info().Msg("calling")
	conn, cerr := o.signaling.Call(dialCtx, remote, stream, o.mediaHandlers(ms))
	if err := o.do(func() {
		switch {
		case cerr != nil:
			if ms.fsm.State().Live() {
				o.closeMedia(ms, "call failed")
			} else {
				aborted = true
			}
		case ms.fsm.State() == domain.StateClosed:
			aborted = true
			conn.Close()
		default:
			ms.conn = conn
		}
	}); err != nil {
		if conn != nil {
			conn.Close()
		}
		return err
	}
	if aborted {
		return core.ErrAborted
	}
	if cerr != nil {
		logger.Error().Err(cerr).Msg("call failed")
		return &core.DialError{Remote: remote, Kind: domain.KindMedia, Err: cerr}
	}
	return nil
}
