package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/cortex-x/go-price-check-kiosk/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("websocket hub closed")

// InboundHandler receives messages sent by display clients.
type InboundHandler func(msg domain.InboundMessage)

// Greeter returns the message queued for a client as soon as it registers.
type Greeter func() (messageType string, payload interface{}, ok bool)

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	closed bool
	mu     sync.Mutex
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	inbound    InboundHandler
	greet      Greeter
	log        *zap.SugaredLogger
	mu         sync.RWMutex
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// OnInbound must be set before Run.
func (h *Hub) OnInbound(handler InboundHandler) {
	h.inbound = handler
}

// OnConnect must be set before Run.
func (h *Hub) OnConnect(greet Greeter) {
	h.greet = greet
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Infow("client registered", "clients", total)
			h.greetClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Infow("client unregistered", "clients", total)
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, close it
					go h.unregisterClient(client)
				}
			}
		}
	}
}

func (h *Hub) greetClient(client *Client) {
	if h.greet == nil {
		return
	}
	messageType, payload, ok := h.greet()
	if !ok {
		return
	}
	data, err := encode(messageType, payload)
	if err != nil {
		h.log.Warnw("failed to encode greeting", "error", err)
		return
	}
	client.send <- data
}

func encode(messageType string, payload interface{}) ([]byte, error) {
	return json.Marshal(domain.WebSocketMessage{
		Type:    messageType,
		Payload: payload,
	})
}

func (h *Hub) BroadcastMessage(messageType string, payload interface{}) error {
	data, err := encode(messageType, payload)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
		return nil
	case <-h.done:
		return ErrHubClosed
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RegisterClient(conn *websocket.Conn) (*Client, error) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}
	select {
	case h.register <- client:
		return client, nil
	case <-h.done:
		return nil, ErrHubClosed
	}
}

func (h *Hub) unregisterClient(client *Client) {
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		client.mu.Unlock()
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	} else {
		client.mu.Unlock()
	}
}

// Send queues a message for this client only.
func (c *Client) Send(messageType string, payload interface{}) error {
	data, err := encode(messageType, payload)
	if err != nil {
		return err
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return ErrHubClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("client send buffer full")
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.log.Warnw("error writing message", "error", err)
			return
		}
	}

	// The channel was closed, send close message
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warnw("websocket error", "error", err)
			}
			break
		}

		var msg domain.InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			_ = c.Send(domain.MsgError, domain.ErrorResponse{
				Code:    domain.ErrCodeInvalidMessage,
				Message: domain.ErrMsgInvalidMessage,
			})
			continue
		}
		if c.hub.inbound != nil {
			c.hub.inbound(msg)
		}
	}
}
