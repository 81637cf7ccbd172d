package rtc

import (
	"sync"

	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/pion/webrtc/v4"
)

// ChatLabel is the label of the only data channel a peer opens.
const ChatLabel = "chat"

// Data is a core.DataConnection carrying one ordered data channel.
type Data struct {
	*Conn
	h     core.DataHandlers
	label string

	mu sync.Mutex
	dc *webrtc.DataChannel
}

// NewDataOffer creates the connection on the dialing side, with the channel
// already declared so it is part of the offer.
func NewDataOffer(api *webrtc.API, cfg webrtc.Configuration, id domain.ConnectionID, remote domain.PeerID, h core.DataHandlers) (*Data, error) {
	d, err := newData(api, cfg, id, remote, ChatLabel, h)
	if err != nil {
		return nil, err
	}
	ordered := true
	dc, err := d.pc.CreateDataChannel(ChatLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.bind(dc)
	return d, nil
}

// NewDataAnswer creates the connection on the answering side; the channel
// is bound when the remote announces it.
func NewDataAnswer(api *webrtc.API, cfg webrtc.Configuration, id domain.ConnectionID, remote domain.PeerID, label string, h core.DataHandlers) (*Data, error) {
	d, err := newData(api, cfg, id, remote, label, h)
	if err != nil {
		return nil, err
	}
	d.pc.OnDataChannel(d.bind)
	return d, nil
}

func newData(api *webrtc.API, cfg webrtc.Configuration, id domain.ConnectionID, remote domain.PeerID, label string, h core.DataHandlers) (*Data, error) {
	c, err := newConn(api, cfg, id, remote, domain.KindData)
	if err != nil {
		return nil, err
	}
	d := &Data{Conn: c, h: h, label: label}
	c.setFailed(func(err error) {
		if d.h.OnError != nil {
			d.h.OnError(err)
		}
	})
	c.OnClosed(func() {
		if d.h.OnClose != nil {
			d.h.OnClose()
		}
	})
	c.start()
	return d, nil
}

func (d *Data) bind(dc *webrtc.DataChannel) {
	d.mu.Lock()
	if d.dc != nil {
		d.mu.Unlock()
		d.logger.Warn().Str("label", dc.Label()).Msg("ignoring extra data channel")
		_ = dc.Close()
		return
	}
	d.dc = dc
	d.mu.Unlock()

	dc.OnOpen(func() {
		d.logger.Info().Str("label", dc.Label()).Msg("data channel open")
		if d.h.OnOpen != nil {
			d.h.OnOpen()
		}
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if d.h.OnMessage != nil {
			d.h.OnMessage(msg.Data)
		}
	})
	dc.OnError(func(err error) {
		if d.h.OnError != nil {
			d.h.OnError(err)
		}
	})
	dc.OnClose(func() { go d.Close() })
}

func (d *Data) Label() string { return d.label }

func (d *Data) Send(b []byte) error {
	if d.IsClosed() {
		return core.ErrChannelClosed
	}
	d.mu.Lock()
	dc := d.dc
	d.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return core.ErrChannelNotOpen
	}
	return dc.Send(b)
}
