package pusher

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dispatchdesk/internal/platform/logger"
)

// Hub is a small in-process Pusher-compatible server for public channels.
// It backs the mock back office and the client tests.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	activity time.Duration

	mu    sync.Mutex
	conns map[*hubConn]struct{}

	sockets atomic.Uint64
}

type hubConn struct {
	conn     *websocket.Conn
	socketID string
	writeMu  sync.Mutex
	channels map[string]bool
}

func NewHub(log *zap.Logger, activity time.Duration) *Hub {
	if activity <= 0 {
		activity = defaultActivityTimeout
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:      logger.OrNop(log).Named("hub"),
		activity: activity,
		conns:    map[*hubConn]struct{}{},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	n := h.sockets.Add(1)
	c := &hubConn{conn: ws, socketID: fmt.Sprintf("%d.%d", n, time.Now().UnixNano()%1000000), channels: map[string]bool{}}

	established, _ := NewStringEvent(EventConnectionEstablished, "", connectionEstablished{
		SocketID:        c.socketID,
		ActivityTimeout: int(h.activity / time.Second),
	})
	if err := c.write(established); err != nil {
		ws.Close()
		return
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client connected", zap.String("socket_id", c.socketID))

	defer func() {
		h.mu.Lock()
		delete(h.conns, c)
		h.mu.Unlock()
		ws.Close()
		h.log.Debug("client disconnected", zap.String("socket_id", c.socketID))
	}()

	for {
		ev := Event{}
		if err := ws.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Event {
		case EventSubscribe, EventUnsubscribe:
			data := subscribeData{}
			if err := json.Unmarshal(ev.Payload(), &data); err != nil || data.Channel == "" {
				h.replyError(c, 4009, "subscription requires a channel")
				continue
			}
			h.mu.Lock()
			if ev.Event == EventSubscribe {
				c.channels[data.Channel] = true
			} else {
				delete(c.channels, data.Channel)
			}
			h.mu.Unlock()
			if ev.Event == EventSubscribe {
				ok, _ := NewStringEvent(EventSubscriptionSucceeded, data.Channel, map[string]string{})
				_ = c.write(ok)
			}
		case EventPing:
			pong, _ := NewEvent(EventPong, "", map[string]string{})
			_ = c.write(pong)
		}
	}
}

// Trigger publishes event on channel to every subscriber and returns how
// many connections it reached.
func (h *Hub) Trigger(channel, event string, data any) (int, error) {
	ev, err := NewStringEvent(event, channel, data)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	targets := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		if c.channels[channel] {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	delivered := 0
	for _, c := range targets {
		if err := c.write(ev); err != nil {
			h.log.Debug("deliver failed", zap.String("socket_id", c.socketID), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Subscribers counts connections subscribed to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for c := range h.conns {
		if c.channels[channel] {
			n++
		}
	}
	return n
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.conn.Close()
	}
}

func (h *Hub) replyError(c *hubConn, code int, message string) {
	ev, _ := NewEvent(EventError, "", ErrorData{Code: code, Message: message})
	_ = c.write(ev)
}

func (c *hubConn) write(ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}
