package chat

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	sent    [][]byte
	sendErr error
	closed  bool
}

func (f *fakeConn) ID() domain.ConnectionID { return "data_1" }
func (f *fakeConn) Peer() domain.PeerID     { return "peer-42" }
func (f *fakeConn) Label() string           { return "chat" }
func (f *fakeConn) Send(b []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, b)
	return nil
}
func (f *fakeConn) Close()         { f.closed = true }
func (f *fakeConn) IsClosed() bool { return f.closed }

func openChannel(t *testing.T) (*Channel, *fakeConn) {
	t.Helper()
	c := New("peer-42", domain.RoleJoin)
	conn := &fakeConn{}
	require.True(t, c.Begin())
	c.Attach(conn)
	require.True(t, c.Opened())
	return c, conn
}

func TestSendBeforeOpenRejected(t *testing.T) {
	c := New("peer-42", domain.RoleJoin)
	conn := &fakeConn{}
	c.Begin()
	c.Attach(conn)

	err := c.Send("too early")
	assert.ErrorIs(t, err, core.ErrChannelNotOpen)
	assert.Equal(t, domain.StateNegotiating, c.State())
	assert.Empty(t, conn.sent)

	require.True(t, c.Opened())
	require.NoError(t, c.Send("now"))
	f, err := Decode(conn.sent[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
}

func TestOpenedBeforeAttachStillNeedsConn(t *testing.T) {
	c := New("peer-42", domain.RoleHost)
	c.Begin()
	c.Opened()
	assert.ErrorIs(t, c.Send("x"), core.ErrChannelNotOpen)
}

func TestSendSequencesInOrder(t *testing.T) {
	c, conn := openChannel(t)
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, c.Send(s))
	}
	for i, b := range conn.sent {
		f, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), f.Seq)
	}
}

func TestSendErrorIsTransportError(t *testing.T) {
	c, conn := openChannel(t)
	conn.sendErr = errors.New("sctp gone")

	err := c.Send("x")
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, domain.KindData, te.Kind)

	conn.sendErr = nil
	require.NoError(t, c.Send("y"))
	f, _ := Decode(conn.sent[0])
	assert.Equal(t, uint64(1), f.Seq)
}

func TestReceive(t *testing.T) {
	c, _ := openChannel(t)
	fixed := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return fixed }

	b, err := Encode(Frame{Seq: 1, Text: "hi", SentAt: fixed.UnixMilli()})
	require.NoError(t, err)
	m, err := c.Receive(b)
	require.NoError(t, err)
	assert.Equal(t, "hi", m.Text)
	assert.Equal(t, domain.PeerID("peer-42"), m.From)
	assert.True(t, m.At.Equal(fixed))

	m, err = c.Receive([]byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, "plain text", m.Text)
	assert.Zero(t, m.Seq)
	assert.True(t, m.At.Equal(fixed))

	_, err = c.Receive([]byte("{broken"))
	assert.Error(t, err)
}

func TestCloseOnce(t *testing.T) {
	c, conn := openChannel(t)
	assert.True(t, c.Close())
	assert.True(t, conn.closed)
	assert.False(t, c.Close())
	assert.ErrorIs(t, c.Send("x"), core.ErrChannelClosed)
}

func TestFailThenClose(t *testing.T) {
	c, conn := openChannel(t)
	assert.True(t, c.Fail(errors.New("ice failed")))
	assert.Equal(t, domain.StateError, c.State())
	assert.ErrorIs(t, c.Send("x"), core.ErrChannelClosed)
	assert.True(t, c.Close())
	assert.True(t, conn.closed)
}

func TestAttachAfterCloseClosesConn(t *testing.T) {
	c := New("peer-42", domain.RoleJoin)
	c.Begin()
	c.Close()
	conn := &fakeConn{}
	c.Attach(conn)
	assert.True(t, conn.closed)
	assert.Nil(t, c.Conn())
}
