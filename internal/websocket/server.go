package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/co-efb/internal/observability"
	"github.com/yegors/co-efb/pkg/logger"
)

// Message types
const (
	MessageTypeMETARUpdate  = "metar_update"
	MessageTypeNotification = "notification"
	MessageTypeSubscribe    = "subscribe"  // Client sends the airports it wants METARs for
	MessageTypeSubscribed   = "subscribed" // Server confirms the active subscription
	MessageTypeError        = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Message represents a WebSocket message
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`

	// airport the message is about, used for subscription filtering
	icao string
}

// SubscribeRequest is the data of a subscribe message. An empty list
// subscribes to every airport.
type SubscribeRequest struct {
	ICAOs []string `json:"icaos"`
}

// Client represents a WebSocket client
type Client struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	mu        sync.Mutex
	closed    bool
	closeChan chan struct{}
	icaos     map[string]bool // nil means all airports
}

// Server fans out METAR updates and notifications to EFB clients
type Server struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	upgrader   websocket.Upgrader
	metrics    *observability.Metrics
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewServer creates a new WebSocket server. allowedOrigins empty or
// containing "*" accepts any origin.
func NewServer(allowedOrigins []string, metrics *observability.Metrics, log *logger.Logger) *Server {
	return &Server{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		metrics: metrics,
		logger:  log.Named("web-socket"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimSuffix(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Non-browser clients send no Origin
		return origin == "" || set[origin]
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("Starting WebSocket server")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				s.dropLocked(client)
			}
			s.mu.Unlock()
			s.logger.Info("WebSocket server stopped")
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.metrics.WebsocketClients.Set(float64(clientCount))
			s.logger.Debug("Client registered", logger.Int("client_count", clientCount))

		case client := <-s.unregister:
			s.mu.Lock()
			s.dropLocked(client)
			clientCount := len(s.clients)
			s.mu.Unlock()
			s.metrics.WebsocketClients.Set(float64(clientCount))
			s.logger.Debug("Client unregistered", logger.Int("client_count", clientCount))

		case message := <-s.broadcast:
			s.fanOut(message)
		}
	}
}

// fanOut delivers a message to every interested client, dropping clients
// whose send buffer is full
func (s *Server) fanOut(message *Message) {
	s.mu.RLock()
	var slow []*Client
	for client := range s.clients {
		if !client.wants(message) {
			continue
		}
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	s.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	s.mu.Lock()
	for _, client := range slow {
		s.logger.Warn("Dropping slow client", logger.String("remote_addr", client.conn.RemoteAddr().String()))
		s.dropLocked(client)
	}
	clientCount := len(s.clients)
	s.mu.Unlock()
	s.metrics.WebsocketClients.Set(float64(clientCount))
}

// dropLocked removes a client and closes its send channel; s.mu must be held
func (s *Server) dropLocked(client *Client) {
	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	client.mu.Lock()
	if !client.closed {
		client.closed = true
		close(client.send)
	}
	client.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// HandleConnection upgrades an HTTP request to a WebSocket client
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection",
			logger.Error(err),
			logger.String("remote_addr", r.RemoteAddr))
		return
	}

	s.logger.Debug("Successfully upgraded connection to WebSocket",
		logger.String("remote_addr", r.RemoteAddr))

	client := &Client{
		conn:      conn,
		send:      make(chan *Message, sendBuffer),
		server:    s,
		closeChan: make(chan struct{}),
	}

	select {
	case s.register <- client:
	case <-s.done:
		conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// Broadcast sends a message to all interested clients. It returns without
// sending once the server has stopped.
func (s *Server) Broadcast(message *Message) {
	select {
	case s.broadcast <- message:
	case <-s.done:
	}
}

// PublishMETAR sends a METAR update to clients subscribed to icao
func (s *Server) PublishMETAR(icao string, payload any) {
	s.Broadcast(&Message{Type: MessageTypeMETARUpdate, Data: payload, icao: strings.ToUpper(icao)})
}

// BroadcastNotification sends a dispatch notification to every client
func (s *Server) BroadcastNotification(payload any) {
	s.Broadcast(&Message{Type: MessageTypeNotification, Data: payload})
}

// readPump reads client messages until the connection fails
func (c *Client) readPump() {
	defer func() {
		select {
		case c.server.unregister <- c:
		case <-c.server.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.server.logger.Error("WebSocket read error", logger.Error(err))
			}
			return
		}

		var message struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			c.server.logger.Debug("Failed to parse WebSocket message", logger.Error(err))
			c.reply(MessageTypeError, map[string]string{"error": "invalid message"})
			continue
		}

		switch message.Type {
		case MessageTypeSubscribe:
			var req SubscribeRequest
			if len(message.Data) > 0 {
				if err := json.Unmarshal(message.Data, &req); err != nil {
					c.reply(MessageTypeError, map[string]string{"error": "invalid subscribe request"})
					continue
				}
			}
			icaos := c.Subscribe(req.ICAOs)
			c.reply(MessageTypeSubscribed, SubscribeRequest{ICAOs: icaos})
		default:
			c.reply(MessageTypeError, map[string]string{"error": "unknown message type"})
		}
	}
}

// writePump writes queued messages and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.logger.Debug("Failed to write message", logger.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

// reply queues a message for this client only
func (c *Client) reply(messageType string, data any) {
	c.SendMessage(&Message{Type: messageType, Data: data})
}

// SendMessage sends a message to this specific client, dropping it when
// the buffer is full
func (c *Client) SendMessage(message *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// Subscribe replaces the client's airport filter and returns the normalized list
func (c *Client) Subscribe(icaos []string) []string {
	set := make(map[string]bool, len(icaos))
	list := make([]string, 0, len(icaos))
	for _, icao := range icaos {
		icao = strings.ToUpper(strings.TrimSpace(icao))
		if icao == "" || set[icao] {
			continue
		}
		set[icao] = true
		list = append(list, icao)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(set) == 0 {
		c.icaos = nil
	} else {
		c.icaos = set
	}
	return list
}

// wants reports whether the message passes the client's subscription
func (c *Client) wants(message *Message) bool {
	if message.Type != MessageTypeMETARUpdate || message.icao == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.icaos == nil || c.icaos[message.icao]
}

// Close closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closeChan:
		return
	default:
	}
	close(c.closeChan)
	c.conn.Close()
}
