package rtc

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T) *webrtc.API {
	t.Helper()
	api, err := NewAPI(NewLoggerFactory(zerolog.WarnLevel))
	require.NoError(t, err)
	return api
}

type dataEvents struct {
	open   chan struct{}
	msgs   chan []byte
	closed chan struct{}
}

func newDataEvents() (*dataEvents, core.DataHandlers) {
	ev := &dataEvents{
		open:   make(chan struct{}, 1),
		msgs:   make(chan []byte, 8),
		closed: make(chan struct{}, 1),
	}
	return ev, core.DataHandlers{
		OnOpen:    func() { ev.open <- struct{}{} },
		OnMessage: func(b []byte) { ev.msgs <- b },
		OnClose:   func() { ev.closed <- struct{}{} },
	}
}

func wait[T any](t *testing.T, c <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-c:
		return v
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

func TestDataLoopback(t *testing.T) {
	api := newTestAPI(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := domain.NewConnectionID(domain.KindData)
	offEv, offH := newDataEvents()
	ansEv, ansH := newDataEvents()

	offerer, err := NewDataOffer(api, webrtc.Configuration{}, id, "host", offH)
	require.NoError(t, err)
	defer offerer.Close()
	answerer, err := NewDataAnswer(api, webrtc.Configuration{}, id, "guest", ChatLabel, ansH)
	require.NoError(t, err)
	defer answerer.Close()

	assert.ErrorIs(t, offerer.Send([]byte("early")), core.ErrChannelNotOpen)

	offer, err := offerer.Offer(ctx)
	require.NoError(t, err)
	answer, err := answerer.Answer(ctx, offer)
	require.NoError(t, err)
	require.NoError(t, offerer.Accept(answer))

	wait(t, offEv.open, "offerer open")
	wait(t, ansEv.open, "answerer open")

	require.NoError(t, offerer.Send([]byte("hello")))
	assert.Equal(t, []byte("hello"), wait(t, ansEv.msgs, "message"))
	require.NoError(t, answerer.Send([]byte("back")))
	assert.Equal(t, []byte("back"), wait(t, offEv.msgs, "reply"))

	assert.Equal(t, ChatLabel, answerer.Label())
	assert.Equal(t, domain.KindData, offerer.Kind())

	offerer.Close()
	offerer.Close()
	wait(t, offEv.closed, "offerer close")
	assert.True(t, offerer.IsClosed())
	assert.ErrorIs(t, offerer.Send([]byte("late")), core.ErrChannelClosed)
}

func TestCloseHooksRunOnce(t *testing.T) {
	api := newTestAPI(t)
	var calls int
	m, err := NewMedia(api, webrtc.Configuration{}, domain.NewConnectionID(domain.KindMedia), "peer", core.MediaHandlers{
		OnClose: func() { calls++ },
	})
	require.NoError(t, err)

	hooked := 0
	m.OnClosed(func() { hooked++ })
	m.Close()
	m.Close()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, hooked)
	assert.True(t, m.IsClosed())
}

func TestMediaOfferNegotiatesBothKinds(t *testing.T) {
	api := newTestAPI(t)
	m, err := NewMedia(api, webrtc.Configuration{}, domain.NewConnectionID(domain.KindMedia), "peer", core.MediaHandlers{})
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.AddLocal(nil))
	require.NoError(t, m.ReceiveMissing())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sdp, err := m.Offer(ctx)
	require.NoError(t, err)
	assert.Contains(t, sdp, "m=audio")
	assert.Contains(t, sdp, "m=video")
	assert.Contains(t, sdp, "a=recvonly")
}

func TestRemoteStreamTracksCopy(t *testing.T) {
	s := NewRemoteStream("s1")
	s.add(&RemoteTrack{})
	tracks := s.Tracks()
	tracks[0] = nil
	assert.NotNil(t, s.Tracks()[0])
	assert.Equal(t, "s1", s.ID())
}

func TestAbortSkipsHandlers(t *testing.T) {
	api := newTestAPI(t)
	ev, h := newDataEvents()
	d, err := NewDataOffer(api, webrtc.Configuration{}, domain.NewConnectionID(domain.KindData), "peer", h)
	require.NoError(t, err)

	d.Abort()
	d.Close()

	assert.True(t, d.IsClosed())
	select {
	case <-ev.closed:
		t.Fatal("OnClose fired after Abort")
	case <-time.After(100 * time.Millisecond):
	}
}
