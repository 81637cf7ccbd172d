package orch

import (
	"github.com/dkeye/duet/internal/app/chat"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) dataHandlers(ch *chat.Channel) core.DataHandlers {
	return core.DataHandlers{
		OnOpen: func() {
			o.loop.Post(func() {
				if o.chat == ch {
					ch.Opened()
				}
			})
		},
		OnMessage: func(b []byte) {
			o.loop.Post(func() { o.onChatMessage(ch, b) })
		},
		OnError: func(err error) {
			o.loop.Post(func() {
				if o.chat != ch || !ch.Fail(err) {
					return
				}
				var id domain.ConnectionID
				if c := ch.Conn(); c != nil {
					id = c.ID()
				}
				o.report(&core.TransportError{Conn: id, Kind: domain.KindData, Err: err})
				o.closeChat(ch)
			})
		},
		OnClose: func() {
			o.loop.Post(func() {
				if o.chat == ch {
					o.closeChat(ch)
				}
			})
		},
	}
}

func (o *Orchestrator) onChatMessage(ch *chat.Channel, b []byte) {
	if o.chat != ch {
		return
	}
	m, err := ch.Receive(b)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.orch").Str("remote", ch.Remote().String()).Msg("dropping chat payload")
		return
	}
	o.messages.Set(&m)
}

func (o *Orchestrator) closeChat(ch *chat.Channel) {
	ch.Close()
}
