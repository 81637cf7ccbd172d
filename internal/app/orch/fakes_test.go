package orch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/webrtc/v4"
)

type fakeTrack struct {
	id      string
	kind    webrtc.RTPCodecType
	stopped atomic.Bool
}

func (t *fakeTrack) ID() string                { return t.id }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }
func (t *fakeTrack) Stop()                     { t.stopped.Store(true) }
func (t *fakeTrack) Stopped() bool             { return t.stopped.Load() }

type fakeStream struct {
	id     string
	tracks []core.Track
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{
		id: id,
		tracks: []core.Track{
			&fakeTrack{id: id + "-audio", kind: webrtc.RTPCodecTypeAudio},
			&fakeTrack{id: id + "-video", kind: webrtc.RTPCodecTypeVideo},
		},
	}
}

func (s *fakeStream) ID() string           { return s.id }
func (s *fakeStream) Tracks() []core.Track { return s.tracks }

type fakeCapture struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
}

func (c *fakeCapture) Acquire(ctx context.Context) (core.MediaStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := newFakeStream(fmt.Sprintf("local-%d", len(c.streams)))
	c.streams = append(c.streams, s)
	return s, nil
}

func (c *fakeCapture) acquired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

func (c *fakeCapture) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type fakeMedia struct {
	id     domain.ConnectionID
	peer   domain.PeerID
	local  core.MediaStream
	h      core.MediaHandlers
	closed atomic.Bool
}

func (m *fakeMedia) ID() domain.ConnectionID { return m.id }
func (m *fakeMedia) Peer() domain.PeerID     { return m.peer }
func (m *fakeMedia) IsClosed() bool          { return m.closed.Load() }
func (m *fakeMedia) Close() {
	if m.closed.CompareAndSwap(false, true) && m.h.OnClose != nil {
		m.h.OnClose()
	}
}

type fakeData struct {
	id     domain.ConnectionID
	peer   domain.PeerID
	h      core.DataHandlers
	closed atomic.Bool

	mu   sync.Mutex
	sent [][]byte
}

func (d *fakeData) ID() domain.ConnectionID { return d.id }
func (d *fakeData) Peer() domain.PeerID     { return d.peer }
func (d *fakeData) Label() string           { return "chat" }
func (d *fakeData) IsClosed() bool          { return d.closed.Load() }
func (d *fakeData) Close() {
	if d.closed.CompareAndSwap(false, true) && d.h.OnClose != nil {
		d.h.OnClose()
	}
}
func (d *fakeData) Send(b []byte) error {
	if d.closed.Load() {
		return core.ErrChannelClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, b)
	return nil
}
func (d *fakeData) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

type fakeIncomingCall struct {
	id       domain.ConnectionID
	peer     domain.PeerID
	err      error
	rejected atomic.Bool
	answered chan *fakeMedia
}

func newIncomingCall(peer domain.PeerID) *fakeIncomingCall {
	return &fakeIncomingCall{
		id:       domain.NewConnectionID(domain.KindMedia),
		peer:     peer,
		answered: make(chan *fakeMedia, 1),
	}
}

func (c *fakeIncomingCall) ID() domain.ConnectionID { return c.id }
func (c *fakeIncomingCall) Peer() domain.PeerID     { return c.peer }
func (c *fakeIncomingCall) Reject()                 { c.rejected.Store(true) }
func (c *fakeIncomingCall) Answer(ctx context.Context, local core.MediaStream, h core.MediaHandlers) (core.MediaConnection, error) {
	if c.err != nil {
		return nil, c.err
	}
	m := &fakeMedia{id: c.id, peer: c.peer, local: local, h: h}
	c.answered <- m
	return m, nil
}

type fakeIncomingData struct {
	id       domain.ConnectionID
	peer     domain.PeerID
	rejected atomic.Bool
	accepted chan *fakeData
}

func newIncomingData(peer domain.PeerID) *fakeIncomingData {
	return &fakeIncomingData{
		id:       domain.NewConnectionID(domain.KindData),
		peer:     peer,
		accepted: make(chan *fakeData, 1),
	}
}

func (d *fakeIncomingData) ID() domain.ConnectionID { return d.id }
func (d *fakeIncomingData) Peer() domain.PeerID     { return d.peer }
func (d *fakeIncomingData) Label() string           { return "chat" }
func (d *fakeIncomingData) Reject()                 { d.rejected.Store(true) }
func (d *fakeIncomingData) Accept(ctx context.Context, h core.DataHandlers) (core.DataConnection, error) {
	c := &fakeData{id: d.id, peer: d.peer, h: h}
	d.accepted <- c
	return c, nil
}

type fakeSignaling struct {
	mu sync.Mutex

	registerErr error
	registered  []domain.PeerID
	opts        core.Options
	// duringRegister runs inside Register, before it returns.
	duringRegister func()

	onCall func(core.IncomingCall)
	onData func(core.IncomingData)

	callErr error
	dataErr error
	// blockCall makes Call wait for its context.
	blockCall   bool
	callStarted chan struct{}

	calls []*fakeMedia
	datas []*fakeData

	disconnected int
	destroyed    int
}

func newFakeSignaling() *fakeSignaling {
	return &fakeSignaling{callStarted: make(chan struct{}, 8)}
}

func (s *fakeSignaling) Register(ctx context.Context, id domain.PeerID, opts core.Options) error {
	s.mu.Lock()
	s.registered = append(s.registered, id)
	s.opts = opts
	hook := s.duringRegister
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerErr
}

func (s *fakeSignaling) OnIncomingCall(fn func(core.IncomingCall)) {
	s.mu.Lock()
	s.onCall = fn
	s.mu.Unlock()
}

func (s *fakeSignaling) OnIncomingData(fn func(core.IncomingData)) {
	s.mu.Lock()
	s.onData = fn
	s.mu.Unlock()
}

func (s *fakeSignaling) Call(ctx context.Context, remote domain.PeerID, local core.MediaStream, h core.MediaHandlers) (core.MediaConnection, error) {
	s.mu.Lock()
	block, err := s.blockCall, s.callErr
	s.mu.Unlock()
	s.callStarted <- struct{}{}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	m := &fakeMedia{id: domain.NewConnectionID(domain.KindMedia), peer: remote, local: local, h: h}
	s.mu.Lock()
	s.calls = append(s.calls, m)
	s.mu.Unlock()
	return m, nil
}

func (s *fakeSignaling) ConnectData(ctx context.Context, remote domain.PeerID, h core.DataHandlers) (core.DataConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataErr != nil {
		return nil, s.dataErr
	}
	d := &fakeData{id: domain.NewConnectionID(domain.KindData), peer: remote, h: h}
	s.datas = append(s.datas, d)
	return d, nil
}

func (s *fakeSignaling) Disconnect() {
	s.mu.Lock()
	s.disconnected++
	s.mu.Unlock()
}

func (s *fakeSignaling) Destroy() {
	s.mu.Lock()
	s.destroyed++
	s.mu.Unlock()
}

func (s *fakeSignaling) deliverCall(c core.IncomingCall) {
	s.mu.Lock()
	fn := s.onCall
	s.mu.Unlock()
	fn(c)
}

func (s *fakeSignaling) deliverData(d core.IncomingData) {
	s.mu.Lock()
	fn := s.onData
	s.mu.Unlock()
	fn(d)
}

func (s *fakeSignaling) lastCall() *fakeMedia {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return nil
	}
	return s.calls[len(s.calls)-1]
}

func (s *fakeSignaling) lastData() *fakeData {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.datas) == 0 {
		return nil
	}
	return s.datas[len(s.datas)-1]
}

func (s *fakeSignaling) counts() (calls, datas, disconnected, destroyed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls), len(s.datas), s.disconnected, s.destroyed
}
