package orch

import (
	"context"

	"github.com/dkeye/duet/internal/app/chat"
	"github.com/dkeye/duet/internal/app/lifecycle"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// HostSession captures local media, publishes it, and arms the listeners for
// an inbound call and an inbound data channel. It returns once armed; the
// transports are created when the remote peer dials in.
func (o *Orchestrator) HostSession(ctx context.Context) error {
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

	if derr := o.do(func() {
		if err = o.checkIdle(); err != nil {
			return
		}
		o.publishLocal(stream)
		o.hosting = true
	}); derr != nil {
		err = derr
	}
	if err != nil {
		lifecycle.ReleaseAll(stream, nil)
		return err
	}
	log.Info().Str("module", "app.orch").Str("peer", o.ID().String()).Msg("hosting, waiting for a call")
	return nil
}

func (o *Orchestrator) handleIncomingCall(call core.IncomingCall) {
	logger := log.With().
		Str("module", "app.orch").
		Str("remote", call.Peer().String()).
		Str("conn_id", string(call.ID())).
		Logger()

	switch {
	case !o.hosting || o.local == nil:
		logger.Warn().Msg("rejecting call: not hosting")
		call.Reject()
		return
	case o.media != nil && o.media.fsm.State().Live():
		logger.Warn().Msg("rejecting call: media session live")
		call.Reject()
		return
	case o.chat != nil && o.chat.State().Live() && o.chat.Remote() != call.Peer():
		logger.Warn().Str("chat_remote", o.chat.Remote().String()).Msg("rejecting call: chat bound to another peer")
		call.Reject()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ms := newMediaSession(domain.RoleHost, call.Peer(), cancel)
	o.media = ms
	local := o.local
	h := o.mediaHandlers(ms)
	logger.Info().Msg("answering call")

	go func() {
		conn, err := call.Answer(ctx, local, h)
		if !o.loop.Post(func() { o.answered(ms, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

func (o *Orchestrator) answered(ms *mediaSession, conn core.MediaConnection, err error) {
	if err != nil {
		if ms.fsm.State().Live() {
			ms.fsm.Fire(domain.EventFail)
			o.report(&core.TransportError{Kind: domain.KindMedia, Err: err})
			o.closeMedia(ms, "answer failed")
		}
		return
	}
	if ms.fsm.State() == domain.StateClosed {
		conn.Close()
		return
	}
	ms.conn = conn
}

func (o *Orchestrator) handleIncomingData(d core.IncomingData) {
	logger := log.With().
		Str("module", "app.orch").
		Str("remote", d.Peer().String()).
		Str("conn_id", string(d.ID())).
		Logger()

	if !o.hosting {
		logger.Warn().Msg("rejecting data channel: not hosting")
		d.Reject()
		return
	}
	if o.media != nil && o.media.fsm.State().Live() && o.media.remote != d.Peer() {
		logger.Warn().Msg("rejecting data channel: media bound to another peer")
		d.Reject()
		return
	}
	if o.chat != nil && o.chat.State().Live() {
		if o.chat.Remote() != d.Peer() {
			logger.Warn().Msg("rejecting data channel: chat bound to another peer")
			d.Reject()
			return
		}
		o.closeChat(o.chat)
	}

	ch := chat.New(d.Peer(), domain.RoleHost)
	ch.Begin()
	o.chat = ch
	h := o.dataHandlers(ch)

	go func() {
		conn, err := d.Accept(context.Background(), h)
		if !o.loop.Post(func() { o.accepted(ch, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

func (o *Orchestrator) accepted(ch *chat.Channel, conn core.DataConnection, err error) {
	if err != nil {
		if ch.Fail(err) {
			o.report(&core.TransportError{Kind: domain.KindData, Err: err})
		}
		o.closeChat(ch)
		return
	}
	ch.Attach(conn)
}
