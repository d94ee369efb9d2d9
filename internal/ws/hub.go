package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/store"
)

const (
	TopicStatus   = "status"
	TopicBalances = "balances"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
)

// Subscriber opens pub/sub subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) store.Subscription
}

// ConnectionCounter tracks open stream connections.
type ConnectionCounter interface {
	IncrementConnections(ctx context.Context)
	DecrementConnections(ctx context.Context)
}

// SnapshotFunc returns the state a new stream client starts from.
type SnapshotFunc func(ctx context.Context) interface{}

type Message struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type SubscriptionRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

var channelTopics = map[string]string{
	store.ChannelStatus:   TopicStatus,
	store.ChannelBalances: TopicBalances,
}

var streamChannels = []string{store.ChannelStatus, store.ChannelBalances}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	bus        Subscriber
	snapshot   SnapshotFunc
	counter    ConnectionCounter
	logger     *zap.SugaredLogger
	upgrader   websocket.Upgrader
	mu         sync.RWMutex
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	mu     sync.RWMutex
	topics map[string]bool
}

func NewHub(bus Subscriber, snapshot SnapshotFunc, allowedOrigins []string, logger *zap.SugaredLogger, counter ConnectionCounter) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
		snapshot:   snapshot,
		counter:    counter,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// same-origin requests carry no Origin header
		return origin == "" || set["*"] || set[origin]
	}
}

// Run relays status and balance events to connected clients until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	sub := h.bus.Subscribe(ctx, streamChannels...)
	defer sub.Close()
	events := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll(context.Background())
			h.logger.Infow("WebSocket hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.count(ctx, 1)
			h.logger.Debugw("Client registered", "clients", h.ClientCount())

		case client := <-h.unregister:
			h.remove(ctx, client)

		case msg, ok := <-events:
			if !ok {
				h.logger.Warnw("Stream subscription closed")
				events = nil
				continue
			}
			h.dispatch(ctx, msg)
		}
	}
}

func (h *Hub) remove(ctx context.Context, client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	if ok {
		h.count(ctx, -1)
		h.logger.Debugw("Client unregistered", "clients", h.ClientCount())
	}
}

func (h *Hub) closeAll(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		h.count(ctx, -1)
	}
}

func (h *Hub) count(ctx context.Context, delta int) {
	if h.counter == nil {
		return
	}
	if delta > 0 {
		h.counter.IncrementConnections(ctx)
	} else {
		h.counter.DecrementConnections(ctx)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) dispatch(ctx context.Context, msg *store.Message) {
	topic, ok := channelTopics[msg.Channel]
	if !ok {
		return
	}
	data, err := encode(topic, json.RawMessage(msg.Payload))
	if err != nil {
		h.logger.Errorw("Failed to marshal WebSocket message", "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.isSubscribed(topic) {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warnw("Dropping slow WebSocket client")
		h.remove(ctx, client)
	}
}

func encode(topic string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Message{
		Type:      "update",
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// HandleWebSocket upgrades the request and streams status and balance
// updates. Clients start subscribed to both topics and receive the current
// status snapshot first.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("WebSocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: map[string]bool{TopicStatus: true, TopicBalances: true},
	}

	if h.snapshot != nil {
		payload, err := json.Marshal(h.snapshot(r.Context()))
		if err == nil {
			var data []byte
			if data, err = encode(TopicStatus, payload); err == nil {
				client.send <- data
			}
		}
		if err != nil {
			h.logger.Warnw("Failed to encode status snapshot", "error", err)
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Errorw("WebSocket error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var req SubscriptionRequest
	if err := json.Unmarshal(message, &req); err != nil {
		c.hub.logger.Warnw("Invalid subscription message", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch req.Type {
	case "subscribe":
		for _, topic := range req.Topics {
			c.topics[topic] = true
		}
	case "unsubscribe":
		for _, topic := range req.Topics {
			delete(c.topics, topic)
		}
	default:
		c.hub.logger.Debugw("Unknown client message", "type", req.Type)
		return
	}
	c.hub.logger.Debugw("Client topics changed", "type", req.Type, "topics", req.Topics)
}

func (c *Client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic] || c.topics["*"]
}
