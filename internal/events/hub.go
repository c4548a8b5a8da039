package events

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// subscriber is one websocket client of the event stream.
type subscriber struct {
	id    string
	conn  *websocket.Conn
	send  chan Event
	types map[Type]bool
}

func (s *subscriber) wants(t Type) bool {
	return len(s.types) == 0 || s.types[t]
}

// Hub streams published events to websocket subscribers.
type Hub struct {
	subscribers map[*subscriber]bool
	broadcast   chan Event
	register    chan *subscriber
	unregister  chan *subscriber
	count       chan chan int
	stop        chan struct{}
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	hub := &Hub{
		subscribers: make(map[*subscriber]bool),
		broadcast:   make(chan Event, sendBuffer),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		count:       make(chan chan int),
		stop:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
	go hub.run()
	return hub
}

func (h *Hub) Name() string { return "websocket" }

// Deliver queues the event for every interested subscriber.
func (h *Hub) Deliver(_ context.Context, evt Event) error {
	select {
	case h.broadcast <- evt:
		return nil
	case <-h.stop:
		return nil
	default:
		h.logger.Warn("Broadcast channel full, dropping event", zap.String("type", string(evt.Type)))
		return nil
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	reply := make(chan int)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.stop:
		return 0
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	close(h.stop)
}

func (h *Hub) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/events/ws", h.Serve)
}

// Serve upgrades the request and streams events. The optional "types" query
// parameter is a comma separated list of event types to receive.
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}

	sub := &subscriber{
		id:    uuid.New().String(),
		conn:  conn,
		send:  make(chan Event, sendBuffer),
		types: parseTypes(c.Query("types")),
	}

	select {
	case h.register <- sub:
	case <-h.stop:
		conn.Close()
		return
	}

	go h.writePump(sub)
	go h.readPump(sub)
}

func parseTypes(raw string) map[Type]bool {
	if raw == "" {
		return nil
	}
	types := make(map[Type]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types[Type(t)] = true
		}
	}
	return types
}

func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.subscribers[sub] = true
			h.logger.Debug("Subscriber registered", zap.String("id", sub.id))

		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
				h.logger.Debug("Subscriber unregistered", zap.String("id", sub.id))
			}

		case evt := <-h.broadcast:
			for sub := range h.subscribers {
				if !sub.wants(evt.Type) {
					continue
				}
				select {
				case sub.send <- evt:
				default:
					close(sub.send)
					delete(h.subscribers, sub)
				}
			}

		case reply := <-h.count:
			reply <- len(h.subscribers)

		case <-h.stop:
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			return
		}
	}
}

// readPump only handles control frames; clients do not send data.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		select {
		case h.unregister <- sub:
		case <-h.stop:
		}
		sub.conn.Close()
	}()

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("Subscriber read error", zap.String("id", sub.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(evt); err != nil {
				return
			}

		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
