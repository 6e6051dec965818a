// Package realtime pushes cache invalidation events to browser clients over
// WebSockets. Clients subscribe to cache keys (a chart, a patient's chart
// list, the food catalog) and are told when those views go stale.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayurdiet/ayurdiet/internal/platform/cache"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Event is sent to a client for each stale key it subscribed to.
type Event struct {
	Type      string    `json:"type"`
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Keys   []string `json:"keys"`
}

// Client is one WebSocket connection and the keys it watches. A client
// with a tenant may only watch that tenant's keys.
type Client struct {
	ID   string
	Send chan []byte

	tenant string
	keys   map[string]struct{}
}

func newClient(tenant string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		Send:   make(chan []byte, sendBuffer),
		tenant: tenant,
		keys:   make(map[string]struct{}),
	}
}

// keyList returns the client's subscriptions. Callers hold the hub lock.
func (c *Client) keyList() []string {
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	return out
}

// allows reports whether c may watch key.
func (c *Client) allows(key string) bool {
	if c.tenant == "" {
		return true
	}
	return strings.HasPrefix(key, cache.Key(c.tenant)+":")
}

// Hub tracks clients by subscribed key. It satisfies cache.Invalidator so
// it can sit in the invalidation fan-out next to the cache store.
type Hub struct {
	mu      sync.RWMutex
	byKey   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  zerolog.Logger
	now     func() time.Time
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		byKey:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "realtime").Logger(),
		now:     time.Now,
	}
}

// Keys returns a snapshot of c's subscriptions.
func (h *Hub) Keys(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.keyList()
}

// Register adds c to the hub with its initial keys.
func (h *Hub) Register(c *Client, keys ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.subscribeLocked(c, keys)
}

// Unregister removes c from every key and closes its Send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.unsubscribeLocked(c, c.keyList())
	delete(h.clients, c)
	close(c.Send)
}

func (h *Hub) Subscribe(c *Client, keys []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(c, keys)
}

func (h *Hub) Unsubscribe(c *Client, keys []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(c, keys)
}

func (h *Hub) subscribeLocked(c *Client, keys []string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if !c.allows(k) {
			h.logger.Warn().Str("client_id", c.ID).Str("tenant", c.tenant).Str("key", k).Msg("subscription outside tenant rejected")
			continue
		}
		if h.byKey[k] == nil {
			h.byKey[k] = make(map[*Client]struct{})
		}
		h.byKey[k][c] = struct{}{}
		c.keys[k] = struct{}{}
	}
}

func (h *Hub) unsubscribeLocked(c *Client, keys []string) {
	for _, k := range keys {
		if subs, ok := h.byKey[k]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.byKey, k)
			}
		}
		delete(c.keys, k)
	}
}

// ProcessMessage applies a client's subscribe or unsubscribe request.
func (h *Hub) ProcessMessage(c *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(c, msg.Keys)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Keys)
	}
}

// Invalidate notifies every subscriber of each key. Slow clients whose
// buffer is full miss the event rather than block the caller.
func (h *Hub) Invalidate(_ context.Context, keys ...string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, k := range keys {
		subs := h.byKey[k]
		if len(subs) == 0 {
			continue
		}
		data, err := json.Marshal(Event{Type: "invalidate", Key: k, Timestamp: h.now().UTC()})
		if err != nil {
			return err
		}
		for c := range subs {
			select {
			case c.Send <- data:
			default:
				h.logger.Warn().Str("client_id", c.ID).Str("key", k).Msg("client buffer full, dropping event")
			}
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// KeyCount returns the number of clients watching key.
func (h *Hub) KeyCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byKey[key])
}

// Handler upgrades HTTP requests to WebSocket connections bound to a Hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	tenantOf func(echo.Context) string
}

// NewHandler allows the given origins; "*" or an empty list allows any.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
	}
}

// ScopeTenants limits each connection to the keys of the tenant resolve
// returns for its upgrade request.
func (wh *Handler) ScopeTenants(resolve func(echo.Context) string) *Handler {
	wh.tenantOf = resolve
	return wh
}

// RegisterRoutes mounts GET /ws. m wraps only the upgrade route.
func (wh *Handler) RegisterRoutes(e *echo.Echo, m ...echo.MiddlewareFunc) {
	e.GET("/ws", wh.Connect, m...)
}

// Connect upgrades the request. Initial keys may be passed as a
// comma-separated ?keys= query parameter.
func (wh *Handler) Connect(c echo.Context) error {
	tenant := ""
	if wh.tenantOf != nil {
		if tenant = wh.tenantOf(c); tenant == "" {
			return echo.NewHTTPError(http.StatusForbidden, "tenant required")
		}
	}

	ws, err := wh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newClient(tenant)
	var keys []string
	if q := c.QueryParam("keys"); q != "" {
		keys = strings.Split(q, ",")
	}
	wh.hub.Register(client, keys...)
	wh.hub.logger.Debug().Str("client_id", client.ID).Int("keys", len(keys)).Msg("client connected")

	go wh.writePump(client, ws)
	go wh.readPump(client, ws)
	return nil
}

func (wh *Handler) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		wh.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		wh.hub.ProcessMessage(client, msg)
	}
}

func (wh *Handler) writePump(client *Client, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
