// Package chat frames text messages over one data transport.
package chat

import (
	"fmt"
	"time"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Message is an inbound chat line.
type Message struct {
	From domain.PeerID
	Seq  uint64
	Text string
	At   time.Time
}

// Channel is one ordering domain: sequence numbers restart with every new
// Channel. Not safe for concurrent use; the session loop owns it.
type Channel struct {
	remote domain.PeerID
	role   domain.Role
	conn   core.DataConnection
	fsm    *domain.Machine

	sent     uint64
	received uint64

	now func() time.Time
}

func New(remote domain.PeerID, role domain.Role) *Channel {
	return &Channel{
		remote: remote,
		role:   role,
		fsm:    domain.NewMachine(),
		now:    time.Now,
	}
}

func (c *Channel) Remote() domain.PeerID     { return c.remote }
func (c *Channel) Role() domain.Role         { return c.role }
func (c *Channel) State() domain.ConnState   { return c.fsm.State() }
func (c *Channel) Conn() core.DataConnection { return c.conn }

// Begin marks the start of negotiation.
func (c *Channel) Begin() bool {
	_, ok := c.fsm.Fire(domain.EventNegotiate)
	return ok
}

// Attach binds the negotiated transport. A channel closed meanwhile closes conn.
func (c *Channel) Attach(conn core.DataConnection) {
	if c.fsm.State() == domain.StateClosed {
		conn.Close()
		return
	}
	c.conn = conn
}

// Opened records that the transport reached the open state.
func (c *Channel) Opened() bool {
	_, ok := c.fsm.Fire(domain.EventAttach)
	if ok {
		log.Info().Str("module", "app.chat").Str("remote", c.remote.String()).Msg("channel open")
	}
	return ok
}

// Send frames and writes text. Before open it fails without touching any state.
func (c *Channel) Send(text string) error {
	switch c.fsm.State() {
	case domain.StateActive:
	case domain.StateClosed, domain.StateError:
		return core.ErrChannelClosed
	default:
		return core.ErrChannelNotOpen
	}
	if c.conn == nil {
		return core.ErrChannelNotOpen
	}

	b, err := Encode(Frame{Seq: c.sent + 1, Text: text, SentAt: c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encode chat frame: %w", err)
	}
	if err := c.conn.Send(b); err != nil {
		return &core.TransportError{Conn: c.conn.ID(), Kind: domain.KindData, Err: err}
	}
	c.sent++
	return nil
}

// Receive decodes an inbound payload.
func (c *Channel) Receive(b []byte) (Message, error) {
	f, err := Decode(b)
	if err != nil {
		return Message{}, fmt.Errorf("decode chat frame: %w", err)
	}
	if f.Seq != 0 {
		if f.Seq <= c.received {
			log.Warn().
				Str("module", "app.chat").
				Str("remote", c.remote.String()).
				Uint64("seq", f.Seq).
				Uint64("last", c.received).
				Msg("sequence went backwards")
		}
		c.received = f.Seq
	}
	at := f.Time()
	if at.IsZero() {
		at = c.now()
	}
	return Message{From: c.remote, Seq: f.Seq, Text: f.Text, At: at}, nil
}

// Fail records a transport error. The caller closes the channel afterwards.
func (c *Channel) Fail(err error) bool {
	_, ok := c.fsm.Fire(domain.EventFail)
	if ok {
		log.Error().Err(err).Str("module", "app.chat").Str("remote", c.remote.String()).Msg("channel failed")
	}
	return ok
}

// Close moves the channel to Closed and closes the transport. It reports
// whether this call performed the transition.
func (c *Channel) Close() bool {
	if _, ok := c.fsm.Fire(domain.EventClose); !ok {
		return false
	}
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	log.Info().Str("module", "app.chat").Str("remote", c.remote.String()).Msg("channel closed")
	return true
}
