package signal

import (
	"context"
	"sync/atomic"

	"github.com/dkeye/duet/internal/adapters/rtc"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

func (c *Client) handleOffer(msg domain.Message) {
	if msg.Payload == nil || msg.Src == "" {
		return
	}
	c.mu.Lock()
	onCall, onData := c.onCall, c.onData
	c.mu.Unlock()

	logger := log.With().
		Str("module", "signal").
		Str("remote", msg.Src.String()).
		Str("conn_id", string(msg.Payload.ConnectionID)).
		Str("kind", string(msg.Payload.Kind)).
		Logger()

	switch {
	case msg.Payload.Kind == domain.KindMedia && onCall != nil:
		logger.Info().Msg("incoming call")
		onCall(&incomingCall{incoming{client: c, msg: msg}})
	case msg.Payload.Kind == domain.KindData && onData != nil:
		logger.Info().Msg("incoming data channel")
		onData(&incomingData{incoming{client: c, msg: msg}})
	default:
		logger.Warn().Msg("no handler for offer")
		(&incoming{client: c, msg: msg}).Reject()
	}
}

// incoming is an offer received from the rendezvous service. Exactly one of
// answer or Reject takes effect.
type incoming struct {
	client  *Client
	msg     domain.Message
	decided atomic.Bool
}

func (in *incoming) ID() domain.ConnectionID { return in.msg.Payload.ConnectionID }
func (in *incoming) Peer() domain.PeerID     { return in.msg.Src }

func (in *incoming) Reject() {
	if !in.decided.CompareAndSwap(false, true) {
		return
	}
	in.client.leave(in.Peer(), in.ID())
}

func (in *incoming) answer(ctx context.Context, conn *rtc.Conn) error {
	sdp, err := conn.Answer(ctx, in.msg.Payload.SDP)
	if err != nil {
		in.client.leave(in.Peer(), in.ID())
		return err
	}
	if err := in.client.send(domain.Message{
		Type:    domain.MsgAnswer,
		Dst:     in.Peer(),
		Payload: &domain.Payload{ConnectionID: in.ID(), Kind: in.msg.Payload.Kind, SDP: sdp},
	}); err != nil {
		return err
	}
	in.client.track(conn)
	return nil
}

type incomingCall struct {
	incoming
}

func (ic *incomingCall) Answer(ctx context.Context, local core.MediaStream, h core.MediaHandlers) (core.MediaConnection, error) {
	if !ic.decided.CompareAndSwap(false, true) {
		return nil, ErrRejected
	}
	rtcCfg, err := ic.client.config()
	if err != nil {
		return nil, err
	}
	m, err := rtc.NewMedia(ic.client.api, rtcCfg, ic.ID(), ic.Peer(), h)
	if err != nil {
		ic.client.leave(ic.Peer(), ic.ID())
		return nil, err
	}
	if err := m.AddLocal(local); err != nil {
		m.Abort()
		ic.client.leave(ic.Peer(), ic.ID())
		return nil, err
	}
	if err := ic.answer(ctx, m.Conn); err != nil {
		m.Abort()
		return nil, err
	}
	return m, nil
}

type incomingData struct {
	incoming
}

func (in *incomingData) Label() string { return in.msg.Payload.Label }

func (in *incomingData) Accept(ctx context.Context, h core.DataHandlers) (core.DataConnection, error) {
	if !in.decided.CompareAndSwap(false, true) {
		return nil, ErrRejected
	}
	rtcCfg, err := in.client.config()
	if err != nil {
		return nil, err
	}
	d, err := rtc.NewDataAnswer(in.client.api, rtcCfg, in.ID(), in.Peer(), in.Label(), h)
	if err != nil {
		in.client.leave(in.Peer(), in.ID())
		return nil, err
	}
	if err := in.answer(ctx, d.Conn); err != nil {
		d.Abort()
		return nil, err
	}
	return d, nil
}
