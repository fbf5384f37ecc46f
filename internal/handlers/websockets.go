package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"rehab_monitor/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000

	wsTypeHome = "home"
)

// wsEnvelope is the frame sent to home stream clients.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins once the mobile client's origin is fixed
}

// homeStream is one /ws client.
type homeStream struct {
	conn     *websocket.Conn
	state    func() interface{}
	interval time.Duration
	log      *logger.Logger
}

// wsConnect streams the home state: once on connect, after every change
// and at least once per interval.
func (h *Handler) wsConnect(c *gin.Context) {
	interval := h.parseInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.wsLog("ws_upgrade_failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()
	defer h.metrics.HomeStreamOpened()()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	s := &homeStream{
		conn:     conn,
		state:    func() interface{} { return h.services.State() },
		interval: interval,
		log:      h.log,
	}
	reason := s.run(ctx, h.services.Watch(ctx))
	h.wsLog("ws_stream_closed", "reason", reason, "interval", interval.String())
}

// run pushes until the client goes away, a write fails or changes closes.
// It returns why the stream ended.
func (s *homeStream) run(ctx context.Context, changes <-chan struct{}) string {
	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	gone := make(chan struct{})
	go s.drain(gone)

	refresh := time.NewTicker(s.interval)
	defer refresh.Stop()
	keepalive := time.NewTicker(pingPeriod)
	defer keepalive.Stop()

	if err := s.push(); err != nil {
		return "initial write: " + err.Error()
	}

	for {
		var err error
		select {
		case <-gone:
			return "client closed"
		case <-ctx.Done():
			return "request done"
		case _, ok := <-changes:
			if !ok {
				return "engine stopped"
			}
			err = s.push()
		case <-refresh.C:
			err = s.push()
		case <-keepalive.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			return "write: " + err.Error()
		}
	}
}

// drain consumes client frames so control frames are processed; it closes
// gone on the first read error.
func (s *homeStream) drain(gone chan<- struct{}) {
	defer close(gone)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *homeStream) push() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(wsEnvelope{Type: wsTypeHome, Data: s.state()})
}

func (h *Handler) wsLog(msg string, kv ...interface{}) {
	if h.log != nil {
		h.log.Infow(msg, kv...)
	}
}

// parseInterval reads ?interval=2s or ?interval_ms=2000, bounded by
// maxInterval, and falls back to the configured push interval.
func (h *Handler) parseInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	if h.pushInterval <= 0 {
		return defaultInterval
	}
	return h.pushInterval
}
