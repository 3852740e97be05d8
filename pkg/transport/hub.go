// Package transport carries protocol messages over websockets.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cuemby/felt/pkg/log"
	"github.com/cuemby/felt/pkg/metrics"
	"github.com/cuemby/felt/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Defaults for Config fields left at zero
const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultSendBuffer = 256
	DefaultRateLimit  = 60
	DefaultRateBurst  = 120
	DefaultOpTimeout  = 5 * time.Second
)

// Handler processes one inbound frame
type Handler interface {
	Handle(ctx context.Context, connID string, data []byte) error
}

// Disconnector is told when a connection goes away
type Disconnector interface {
	Disconnect(ctx context.Context, connID string)
}

// Config tunes the websocket hub
type Config struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	SendBuffer     int
	RateLimit      float64 // Intents per second per connection, pointer updates exempt
	RateBurst      int
	OpTimeout      time.Duration
	AllowedOrigins []string // Empty allows any origin
}

func (c Config) withDefaults() Config {
	if c.WriteWait <= 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = DefaultPongWait
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}

// Hub owns every websocket connection. It implements session.Sender.
type Hub struct {
	cfg       Config
	upgrader  websocket.Upgrader
	handler   Handler
	lifecycle Disconnector
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	conns map[string]*conn
	wg    sync.WaitGroup
}

// NewHub creates a hub. Attach must be called before serving.
func NewHub(cfg Config) *Hub {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:    cfg,
		logger: log.WithComponent("transport"),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Attach wires the frame handler and the disconnect hook
func (h *Hub) Attach(handler Handler, lifecycle Disconnector) {
	h.handler = handler
	h.lifecycle = lifecycle
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin || allowed == u.Host {
			return true
		}
	}
	return false
}

// Send queues msg for connID without blocking. A connection whose queue is
// full is closed; the client reconnects and receives a fresh snapshot.
func (h *Hub) Send(connID string, msg protocol.Message) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("conn", connID).Msg("Failed to encode message")
		return
	}
	if !c.enqueue(data) {
		metrics.MessagesDropped.Inc()
		c.logger.Warn().Str("type", string(msg.Type)).Msg("Send queue full, closing slow connection")
		c.close()
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	id := uuid.NewString()
	c := &conn{
		id:      id,
		ws:      ws,
		send:    make(chan []byte, h.cfg.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst),
		logger:  log.WithConn(id),
	}

	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()
	metrics.ConnectionsActive.Inc()
	c.logger.Debug().Str("remote", r.RemoteAddr).Msg("Connection opened")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.writePump(h.cfg.WriteWait, h.cfg.PongWait)
	}()

	h.readPump(c)

	c.close()
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
	metrics.ConnectionsActive.Dec()

	if h.lifecycle != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.cfg.OpTimeout)
		h.lifecycle.Disconnect(ctx, id)
		cancel()
	}
	c.logger.Debug().Msg("Connection closed")
}

// readPump feeds frames to the handler in arrival order
func (h *Hub) readPump(c *conn) {
	c.ws.SetReadLimit(protocol.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("Read failed")
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		var head struct {
			Type string `json:"type"`
			Ref  string `json:"ref"`
		}
		_ = json.Unmarshal(data, &head)
		if protocol.Intent(head.Type) != protocol.IntentPointer && !c.limiter.Allow() {
			metrics.RateLimited.Inc()
			metrics.RejectionsTotal.WithLabelValues(string(protocol.KindRateLimited)).Inc()
			h.Send(c.id, protocol.Rejection(protocol.Intent(head.Type), head.Ref,
				protocol.Errorf(protocol.KindRateLimited, "too many requests")))
			continue
		}

		if h.handler == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(h.ctx, h.cfg.OpTimeout)
		if err := h.handler.Handle(ctx, c.id, data); err != nil {
			c.logger.Debug().Err(err).Str("type", head.Type).Msg("Intent rejected")
		}
		cancel()
	}
}

// Len returns the number of open connections
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close drops every connection and waits for their writers to finish
func (h *Hub) Close() {
	h.cancel()
	h.mu.RLock()
	for _, c := range h.conns {
		c.close()
	}
	h.mu.RUnlock()
	h.wg.Wait()
}
