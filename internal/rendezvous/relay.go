package rendezvous

import (
	"github.com/dkeye/duet/internal/domain"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	errBadPayload  = "bad_payload"
	errRateLimited = "rate_limited"
	errUnknownType = "unknown_type"
)

func (ctl *Controller) handleSignal(c *Conn, data []byte) {
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Error().Err(err).Str("module", "rendezvous").Msg("bad json")
		ctl.sendError(c, errBadPayload)
		return
	}

	switch msg.Type {
	case domain.MsgPing:
		ctl.sendJSON(c, domain.Message{Type: domain.MsgPong})
	case domain.MsgOffer:
		if !ctl.Limiter.Allow(c.ID()) {
			log.Warn().Str("module", "rendezvous").Str("peer", c.ID().String()).Msg("offer rate limited")
			ctl.sendError(c, errRateLimited)
			return
		}
		ctl.relay(c, msg)
	case domain.MsgAnswer, domain.MsgLeave:
		ctl.relay(c, msg)
	default:
		log.Warn().Str("module", "rendezvous").Str("type", string(msg.Type)).Msg("unknown signal")
		ctl.sendError(c, errUnknownType)
	}
}

// relay forwards msg to its destination with the sender id stamped. An
// offer nobody can receive is expired back to the sender right away.
func (ctl *Controller) relay(from *Conn, msg domain.Message) {
	if msg.Dst == "" || msg.Payload == nil || msg.Payload.ConnectionID == "" {
		ctl.sendError(from, errBadPayload)
		return
	}
	msg.Src = from.ID()

	logger := log.With().
		Str("module", "rendezvous").
		Str("type", string(msg.Type)).
		Str("src", msg.Src.String()).
		Str("dst", msg.Dst.String()).
		Str("conn_id", string(msg.Payload.ConnectionID)).
		Logger()

	to, ok := ctl.Registry.Get(msg.Dst)
	if !ok {
		logger.Info().Msg("destination offline")
		if msg.Type == domain.MsgOffer {
			ctl.sendJSON(from, domain.Message{
				Type:    domain.MsgExpire,
				Src:     msg.Dst,
				Payload: &domain.Payload{ConnectionID: msg.Payload.ConnectionID, Kind: msg.Payload.Kind},
			})
		}
		return
	}
	logger.Debug().Msg("relay")
	ctl.sendJSON(to, msg)
}

func (ctl *Controller) sendError(c *Conn, reason string) {
	ctl.sendJSON(c, domain.Message{Type: domain.MsgError, Error: reason})
}

func (ctl *Controller) sendJSON(c *Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "rendezvous").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "rendezvous").Str("peer", c.ID().String()).Msg("sendJSON dropped")
	}
}
