// Package orch drives one local participant through host/join sessions with a
// single remote peer. All state lives on one event loop; public methods do their
// blocking work (capture, dialing) on the caller's goroutine and commit results
// through the loop.
package orch

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/duet/internal/app/chat"
	"github.com/dkeye/duet/internal/app/lifecycle"
	"github.com/dkeye/duet/internal/app/loop"
	"github.com/dkeye/duet/internal/app/observe"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

type Readiness int

const (
	Uninitialized Readiness = iota
	Registering
	Ready
	Destroyed
)

func (r Readiness) String() string {
	switch r {
	case Uninitialized:
		return "uninitialized"
	case Registering:
		return "registering"
	case Ready:
		return "idle"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

type Orchestrator struct {
	signaling core.Signaling
	capture   core.CaptureProvider
	opts      core.Options
	loop      *loop.Loop
	newID     func() domain.PeerID

	// Owned by the loop.
	readiness Readiness
	id        domain.PeerID
	hosting   bool
	media     *mediaSession
	chat      *chat.Channel
	local     core.MediaStream
	remote    core.MediaStream

	localOut  *observe.Value[core.MediaStream]
	remoteOut *observe.Value[core.MediaStream]
	messages  *observe.Value[*chat.Message]
	failures  *observe.Value[error]

	registered bool
	release    sync.Once
	released   chan struct{}
}

// New builds the orchestrator and starts its loop. Teardown stops it.
// opts are handed to the signaling registration unchanged.
func New(sig core.Signaling, capture core.CaptureProvider, opts core.Options) *Orchestrator {
	o := &Orchestrator{
		signaling: sig,
		capture:   capture,
		opts:      opts,
		loop:      loop.New(),
		newID:     domain.NewPeerID,
		localOut:  observe.NewValue[core.MediaStream](nil),
		remoteOut: observe.NewValue[core.MediaStream](nil),
		messages:  observe.NewValue[*chat.Message](nil),
		failures:  observe.NewValue[error](nil),
		released:  make(chan struct{}),
	}
	go o.loop.Run()

	sig.OnIncomingCall(func(call core.IncomingCall) {
		if !o.loop.Post(func() { o.handleIncomingCall(call) }) {
			call.Reject()
		}
	})
	sig.OnIncomingData(func(d core.IncomingData) {
		if !o.loop.Post(func() { o.handleIncomingData(d) }) {
			d.Reject()
		}
	})
	return o
}

// LocalStream is the captured stream currently published, nil when none.
func (o *Orchestrator) LocalStream() *observe.Value[core.MediaStream] { return o.localOut }

// RemoteStream is the stream attached by the remote peer, nil unless the
// media transport is active.
func (o *Orchestrator) RemoteStream() *observe.Value[core.MediaStream] { return o.remoteOut }

// Messages carries the most recent inbound chat message.
func (o *Orchestrator) Messages() *observe.Value[*chat.Message] { return o.messages }

// Failures carries errors raised outside of any caller, such as a transport
// failing mid-session or an inbound answer that could not be completed.
func (o *Orchestrator) Failures() *observe.Value[error] { return o.failures }

// do commits on the loop. Commits are short, so they are not bound to the
// caller's context and always run to completion.
func (o *Orchestrator) do(fn func()) error {
	if err := o.loop.Do(context.Background(), fn); err != nil {
		return core.ErrDestroyed
	}
	return nil
}

func (o *Orchestrator) ID() domain.PeerID {
	var id domain.PeerID
	_ = o.do(func() { id = o.id })
	return id
}

func (o *Orchestrator) Readiness() Readiness {
	r := Destroyed
	_ = o.do(func() { r = o.readiness })
	return r
}

// MediaState is the state of the current media transport, Idle when there is none.
func (o *Orchestrator) MediaState() domain.ConnState {
	s := domain.StateClosed
	_ = o.do(func() {
		s = domain.StateIdle
		if o.media != nil {
			s = o.media.fsm.State()
		}
	})
	return s
}

// ChatState is the state of the current data transport, Idle when there is none.
func (o *Orchestrator) ChatState() domain.ConnState {
	s := domain.StateClosed
	_ = o.do(func() {
		s = domain.StateIdle
		if o.chat != nil {
			s = o.chat.State()
		}
	})
	return s
}

// InitIdentity creates the local identity and registers it. A failed
// registration discards the identity; calling again starts over.
func (o *Orchestrator) InitIdentity(ctx context.Context) (domain.PeerID, error) {
	var (
		id      domain.PeerID
		err     error
		already bool
	)
	if derr := o.do(func() {
		switch o.readiness {
		case Ready:
			id, already = o.id, true
		case Registering:
			err = core.ErrBusy
		case Destroyed:
			err = core.ErrDestroyed
		default:
			o.readiness = Registering
			id = o.newID()
		}
	}); derr != nil {
		return "", derr
	}
	if err != nil || already {
		return id, err
	}

	logger := log.With().Str("module", "app.orch").Str("peer", id.String()).Logger()
	if rerr := o.signaling.Register(ctx, id, o.opts); rerr != nil {
		torn := false
		if derr := o.do(func() {
			switch o.readiness {
			case Registering:
				o.readiness = Uninitialized
			case Destroyed:
				torn = true
			}
		}); derr != nil {
			torn = true
		}
		if torn {
			return "", core.ErrDestroyed
		}
		logger.Error().Err(rerr).Msg("registration failed")
		return "", &core.RegistrationError{Peer: id, Err: rerr}
	}

	destroyed := false
	if derr := o.do(func() {
		if o.readiness == Destroyed {
			destroyed = true
			return
		}
		o.id = id
		o.readiness = Ready
	}); derr != nil {
		destroyed = true
	}
	if destroyed {
		o.signaling.Destroy()
		return "", core.ErrDestroyed
	}
	logger.Info().Msg("identity registered")
	return id, nil
}

// checkIdle must run on the loop.
func (o *Orchestrator) checkIdle() error {
	switch o.readiness {
	case Ready:
	case Destroyed:
		return core.ErrDestroyed
	default:
		return core.ErrNotReady
	}
	if o.media != nil && o.media.fsm.State().Live() {
		return core.ErrSessionActive
	}
	return nil
}

// acquire runs the capture outside the loop.
func (o *Orchestrator) acquire(ctx context.Context) (core.MediaStream, error) {
	stream, err := o.capture.Acquire(ctx)
	if err != nil {
		var ce *core.CaptureError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &core.CaptureError{Err: err}
	}
	return stream, nil
}

// publishLocal must run on the loop.
func (o *Orchestrator) publishLocal(stream core.MediaStream) {
	if o.local != nil && o.local != stream {
		lifecycle.ReleaseAll(o.local, nil)
	}
	o.local = stream
	o.localOut.Set(stream)
}

// releaseStreams stops every local and remote track and clears both outputs.
// Must run on the loop.
func (o *Orchestrator) releaseStreams() {
	lifecycle.ReleaseAll(o.local, o.remote)
	o.local = nil
	o.remote = nil
	o.localOut.Set(nil)
	o.remoteOut.Set(nil)
}

// report publishes an asynchronous failure. Must run on the loop.
func (o *Orchestrator) report(err error) {
	log.Error().Err(err).Str("module", "app.orch").Str("peer", o.id.String()).Msg("session failure")
	o.failures.Set(err)
}

// EndSession closes the media transport. Without one it still releases the
// local and remote streams, so ending before a connection completes frees the
// hardware. The chat channel is left open.
func (o *Orchestrator) EndSession() {
	_ = o.do(o.endSession)
}

func (o *Orchestrator) endSession() {
	o.hosting = false
	if o.media != nil && o.media.fsm.State() != domain.StateClosed {
		o.closeMedia(o.media, "local end")
		return
	}
	o.releaseStreams()
}

// Teardown ends the session, closes chat and releases the identity from the
// rendezvous service. Safe without any prior session and safe to repeat. When
// ctx ends before the release completes, the release still finishes in the
// background and a later call waits for it.
func (o *Orchestrator) Teardown(ctx context.Context) error {
	_ = o.do(func() {
		if o.readiness == Destroyed {
			return
		}
		o.registered = o.readiness == Ready
		o.endSession()
		if o.chat != nil {
			o.closeChat(o.chat)
		}
		o.readiness = Destroyed
	})

	o.release.Do(func() {
		if o.registered {
			o.signaling.Disconnect()
		}
		o.signaling.Destroy()
		o.loop.Stop()
		go func() {
			<-o.loop.Done()
			o.localOut.Close()
			o.remoteOut.Close()
			o.messages.Close()
			o.failures.Close()
			log.Info().Str("module", "app.orch").Str("peer", o.id.String()).Msg("torn down")
			close(o.released)
		}()
	})

	select {
	case <-o.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendChatMessage writes text on the current data channel. It fails, without
// queueing, when there is no channel or it is not open yet.
func (o *Orchestrator) SendChatMessage(text string) error {
	var err error
	if derr := o.do(func() {
		if o.chat == nil {
			err = core.ErrNoChannel
			return
		}
		err = o.chat.Send(text)
	}); derr != nil {
		return derr
	}
	return err
}
