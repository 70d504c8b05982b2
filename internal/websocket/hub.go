package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"invoicedesk/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenParser verifies the access token presented when connecting.
type TokenParser interface {
	Parse(token string) (model.Principal, error)
}

// Client represents a single connected WebSocket client
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	principal model.Principal
}

// Hub maintains the set of active clients and broadcasts invoice events to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance. An empty allowedOrigins accepts any origin.
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log: log.Named("ws"),
	}
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run owns the client set until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug("client connected", zap.String("user", client.principal.Username), zap.Int("clients", len(h.clients)))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug("client disconnected", zap.String("user", client.principal.Username))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Publish queues an event for every connected client. It never blocks; when the
// queue is full the event is dropped.
func (h *Hub) Publish(event model.InvoiceEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to encode event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("event dropped, broadcast queue full", zap.String("type", event.Type))
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump keeps the connection drained so close frames are noticed.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Info("connection closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs upgrades an authenticated request. The token comes from the token query
// parameter, since browsers cannot set headers on websocket requests, or from the
// access_token cookie.
func (h *Hub) ServeWs(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString, _ = c.Cookie("access_token")
		}
		if tokenString == "" {
			h.log.Info("connection rejected: missing token")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		p, err := parser.Parse(tokenString)
		if err != nil {
			h.log.Info("connection rejected: invalid token", zap.Error(err))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("upgrade failed", zap.Error(err))
			return
		}
		client := &Client{hub: h, conn: conn, send: make(chan []byte, 256), principal: p}
		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}
