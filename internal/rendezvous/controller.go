// Package rendezvous is the development rendezvous service: it registers
// peer ids and relays connection setup envelopes between them.
package rendezvous

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/duet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	WriteWait  time.Duration
}

type Controller struct {
	Registry *Registry
	Limiter  *RateLimiter
	opts     Options
}

func NewController(reg *Registry, limiter *RateLimiter, opts Options) *Controller {
	if opts.WriteWait <= 0 {
		opts.WriteWait = 5 * time.Second
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	return &Controller{Registry: reg, Limiter: limiter, opts: opts}
}

// pongWait is how long a silent peer is kept.
func (ctl *Controller) pongWait() time.Duration {
	return ctl.opts.PingPeriod * 10 / 9
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandlePeer upgrades the request and registers the peer under the id query
// parameter, falling back to the client token of the cookie session.
func (ctl *Controller) HandlePeer(ctx context.Context, c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		raw = c.GetString("client_token")
	}
	id, err := domain.ParsePeerID(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger := log.With().Str("module", "rendezvous").Str("peer", id.String()).Logger()
	logger.Info().Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := newConn(id, ws)
	ctx, cancel := context.WithCancel(ctx)
	if err := ctl.Registry.Bind(conn, cancel); err != nil {
		cancel()
		logger.Warn().Err(err).Msg("id already connected")
		ctl.writeNow(ws, domain.Message{Type: domain.MsgIDTaken, Error: err.Error()})
		_ = ws.Close()
		return
	}

	go ctl.writePump(ctx, conn)
	ctl.sendJSON(conn, domain.Message{Type: domain.MsgOpen, Dst: id})
	go ctl.readPump(ctx, cancel, conn)
}

// writeNow writes on a socket that has no write pump.
func (ctl *Controller) writeNow(ws *websocket.Conn, msg domain.Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait))
	_ = ws.WriteMessage(websocket.TextMessage, b)
}
