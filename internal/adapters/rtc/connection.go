package rtc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrConnectionFailed = errors.New("peer connection failed")

// Conn wraps one PeerConnection negotiated with a single, non-trickle
// offer/answer exchange: every ICE candidate travels inside the SDP.
type Conn struct {
	pc     *webrtc.PeerConnection
	id     domain.ConnectionID
	remote domain.PeerID
	kind   domain.TransportKind
	logger zerolog.Logger

	closed atomic.Bool

	mu       sync.Mutex
	onFailed func(error)
	onClosed []func()
}

func newConn(api *webrtc.API, cfg webrtc.Configuration, id domain.ConnectionID, remote domain.PeerID, kind domain.TransportKind) (*Conn, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Conn{
		pc:     pc,
		id:     id,
		remote: remote,
		kind:   kind,
		logger: log.With().
			Str("module", "webrtc").
			Str("conn_id", string(id)).
			Str("remote", remote.String()).
			Logger(),
	}, nil
}

func (c *Conn) start() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Debug().Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		switch s {
		case webrtc.PeerConnectionStateFailed:
			c.mu.Lock()
			fn := c.onFailed
			c.mu.Unlock()
			if fn != nil {
				fn(ErrConnectionFailed)
			}
		case webrtc.PeerConnectionStateClosed:
			go c.Close()
		}
	})
}

func (c *Conn) ID() domain.ConnectionID    { return c.id }
func (c *Conn) Peer() domain.PeerID        { return c.remote }
func (c *Conn) Kind() domain.TransportKind { return c.kind }
func (c *Conn) IsClosed() bool             { return c.closed.Load() }

// OnClosed adds a hook run once when the connection closes, before the
// transport's own close handler.
func (c *Conn) OnClosed(fn func()) {
	c.mu.Lock()
	c.onClosed = append(c.onClosed, fn)
	c.mu.Unlock()
}

func (c *Conn) setFailed(fn func(error)) {
	c.mu.Lock()
	c.onFailed = fn
	c.mu.Unlock()
}

// Offer creates the local offer and waits for ICE gathering to complete.
func (c *Conn) Offer(ctx context.Context) (string, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	return c.setLocal(ctx, offer)
}

// Answer applies a remote offer and returns the complete local answer.
func (c *Conn) Answer(ctx context.Context, sdp string) (string, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	return c.setLocal(ctx, answer)
}

// Accept applies the remote answer to a local offer.
func (c *Conn) Accept(sdp string) error {
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func (c *Conn) setLocal(ctx context.Context, desc webrtc.SessionDescription) (string, error) {
	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(desc); err != nil {
		return "", err
	}
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return c.pc.LocalDescription().SDP, nil
}

// Abort stops the PeerConnection without running any close hook or
// handler. Used when the connection never got past negotiation.
func (c *Conn) Abort() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.mu.Lock()
	c.onClosed = nil
	c.onFailed = nil
	c.mu.Unlock()
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("abort error")
	}
}

// Close stops the PeerConnection. Only the first call has an effect.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
	} else {
		c.logger.Info().Msg("closed")
	}

	c.mu.Lock()
	hooks := c.onClosed
	c.onClosed = nil
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}
