package signal

import (
	"time"

	"github.com/dkeye/duet/internal/domain"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Client) writePump(link *wsSignalConn) {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = link.conn.Close()
	}()

	ping, _ := json.Marshal(domain.Message{Type: domain.MsgPing})
	write := func(data []byte) bool {
		if err := link.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
			return false
		}
		if err := link.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
			return false
		}
		return true
	}

	for {
		select {
		case <-ticker.C:
			if !write(ping) {
				return
			}
		case data, ok := <-link.send:
			if !ok {
				_ = link.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(c.cfg.WriteWait))
				return
			}
			if !write(data) {
				return
			}
		}
	}
}

func (c *Client) readPump(link *wsSignalConn) {
	defer func() {
		if c.dropLink(link) {
			log.Warn().Str("module", "signal").Str("peer", c.id.String()).Msg("rendezvous connection lost")
		}
	}()

	for {
		_, data, err := link.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Msg("readPump read error")
			}
			return
		}
		c.handleSignal(data)
	}
}

func (c *Client) handleSignal(data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch msg.Type {
	case domain.MsgOffer:
		c.handleOffer(msg)
	case domain.MsgAnswer, domain.MsgExpire:
		c.resolve(msg)
	case domain.MsgLeave:
		c.handleLeave(msg)
	case domain.MsgPong:
	case domain.MsgError:
		log.Warn().Str("module", "signal").Str("error", msg.Error).Msg("rendezvous error")
	default:
		log.Warn().Str("module", "signal").Str("type", string(msg.Type)).Msg("unknown signal")
	}
}

// resolve hands a reply to the offer waiting for it.
func (c *Client) resolve(msg domain.Message) bool {
	if msg.Payload == nil {
		return false
	}
	c.mu.Lock()
	ch, ok := c.pending[msg.Payload.ConnectionID]
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "signal").Str("type", string(msg.Type)).Msg("reply for unknown offer")
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// handleLeave closes the connection the remote side dropped, or fails the
// offer it refused.
func (c *Client) handleLeave(msg domain.Message) {
	if msg.Payload == nil {
		return
	}
	if c.resolve(msg) {
		return
	}
	id := msg.Payload.ConnectionID
	c.mu.Lock()
	conn, ok := c.conns[id]
	delete(c.conns, id)
	c.mu.Unlock()
	if ok {
		log.Info().Str("module", "signal").Str("remote", msg.Src.String()).Str("conn_id", string(id)).Msg("remote left")
		conn.Close()
	}
}
