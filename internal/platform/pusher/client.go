package pusher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dispatchdesk/internal/platform/logger"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultActivityTimeout  = 120 * time.Second
	pongTimeout             = 30 * time.Second
	writeTimeout            = 10 * time.Second
)

type Config struct {
	// URL overrides the hosted endpoint derived from Key and Cluster.
	URL              string
	Key              string
	Cluster          string
	HandshakeTimeout time.Duration
}

// Client is one websocket connection. It does not reconnect: once Done is
// closed the client is finished and Err reports why.
type Client struct {
	conn     *websocket.Conn
	log      *zap.Logger
	socketID string
	activity time.Duration

	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[string]*Channel
	closing  bool
	err      error

	lastSeen  atomic.Int64
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects and waits for pusher:connection_established.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	endpoint, err := Endpoint(cfg)
	if err != nil {
		return nil, err
	}
	handshake := cfg.HandshakeTimeout
	if handshake <= 0 {
		handshake = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: handshake, Proxy: http.ProxyFromEnvironment}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("pusher: dial: %w", err)
	}

	deadline := time.Now().Add(handshake)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	first := Event{}
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pusher: await connection: %w", err)
	}
	switch first.Event {
	case EventConnectionEstablished:
	case EventError:
		conn.Close()
		data := ErrorData{}
		_ = json.Unmarshal(first.Payload(), &data)
		return nil, data
	default:
		conn.Close()
		return nil, fmt.Errorf("pusher: unexpected first event %q", first.Event)
	}
	established := connectionEstablished{}
	if err := json.Unmarshal(first.Payload(), &established); err != nil {
		conn.Close()
		return nil, fmt.Errorf("pusher: decode connection data: %w", err)
	}
	activity := time.Duration(established.ActivityTimeout) * time.Second
	if activity <= 0 {
		activity = defaultActivityTimeout
	}

	c := &Client{
		conn:     conn,
		log:      logger.OrNop(log).Named("pusher"),
		socketID: established.SocketID,
		activity: activity,
		channels: map[string]*Channel{},
		done:     make(chan struct{}),
	}
	c.touch()
	c.log.Debug("connected", zap.String("socket_id", c.socketID), zap.Duration("activity_timeout", activity))
	go c.readLoop()
	go c.keepalive()
	return c, nil
}

func (c *Client) SocketID() string { return c.socketID }

// Done is closed when the connection has ended for any reason.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err is the reason the connection ended; nil after Disconnect.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Subscribe joins a public channel. Subscribing twice returns the same
// channel.
func (c *Client) Subscribe(name string) (*Channel, error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if ch, ok := c.channels[name]; ok {
		c.mu.Unlock()
		return ch, nil
	}
	ch := newChannel(name, c)
	c.channels[name] = ch
	c.mu.Unlock()

	ev, err := NewEvent(EventSubscribe, "", subscribeData{Channel: name})
	if err != nil {
		return nil, err
	}
	if err := c.send(ev); err != nil {
		c.forget(name)
		return nil, err
	}
	return ch, nil
}

// Disconnect closes the connection and waits for the reader to exit. It is
// safe to call more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	c.closeConn()
	<-c.done
}

var ErrClosed = errors.New("pusher: connection closed")

func (c *Client) readLoop() {
	defer c.finish()
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.activity + pongTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		c.touch()
		ev := Event{}
		if err := json.Unmarshal(msg, &ev); err != nil {
			c.log.Debug("skip undecodable frame", zap.Error(err))
			continue
		}
		switch ev.Event {
		case EventPing:
			pong, _ := NewEvent(EventPong, "", map[string]string{})
			if err := c.send(pong); err != nil {
				c.log.Debug("send pong", zap.Error(err))
			}
		case EventPong:
		case EventError:
			data := ErrorData{}
			_ = json.Unmarshal(ev.Payload(), &data)
			c.log.Warn("server error", zap.Int("code", data.Code), zap.String("message", data.Message))
		case EventSubscriptionSucceeded:
			if ch := c.channel(ev.Channel); ch != nil {
				ch.markSubscribed()
			}
		default:
			if ch := c.channel(ev.Channel); ch != nil {
				ch.dispatch(ev.Event, ev.Payload())
			}
		}
	}
}

// keepalive sends pusher:ping when nothing has arrived for one activity
// timeout.
func (c *Client) keepalive() {
	ticker := time.NewTicker(c.activity / 2)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, c.lastSeen.Load()))
			if idle < c.activity {
				continue
			}
			ping, _ := NewEvent(EventPing, "", map[string]string{})
			if err := c.send(ping); err != nil {
				c.log.Debug("send ping", zap.Error(err))
			}
		}
	}
}

func (c *Client) send(ev Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("pusher: write %s: %w", ev.Event, err)
	}
	return nil
}

func (c *Client) channel(name string) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[name]
}

func (c *Client) forget(name string) {
	c.mu.Lock()
	delete(c.channels, name)
	c.mu.Unlock()
}

func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.err != nil {
		return
	}
	c.err = fmt.Errorf("pusher: connection lost: %w", err)
	c.log.Warn("connection lost", zap.Error(err))
}

func (c *Client) finish() {
	c.closeConn()
	close(c.done)
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// Channel is a subscribed public channel.
type Channel struct {
	name   string
	client *Client

	mu       sync.RWMutex
	handlers map[string][]func([]byte)

	subscribed chan struct{}
	subOnce    sync.Once
}

func newChannel(name string, client *Client) *Channel {
	return &Channel{
		name:       name,
		client:     client,
		handlers:   map[string][]func([]byte){},
		subscribed: make(chan struct{}),
	}
}

func (ch *Channel) Name() string { return ch.name }

// Subscribed is closed once the server confirms the subscription.
func (ch *Channel) Subscribed() <-chan struct{} { return ch.subscribed }

// Bind registers fn for event. Handlers run on the connection's reader
// goroutine and must not block.
func (ch *Channel) Bind(event string, fn func(data []byte)) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.handlers[event] = append(ch.handlers[event], fn)
}

func (ch *Channel) UnbindAll() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.handlers = map[string][]func([]byte){}
}

// Unsubscribe leaves the channel. Further events for it are dropped.
func (ch *Channel) Unsubscribe() error {
	ch.client.forget(ch.name)
	ev, err := NewEvent(EventUnsubscribe, "", subscribeData{Channel: ch.name})
	if err != nil {
		return err
	}
	if err := ch.client.send(ev); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}
	return nil
}

func (ch *Channel) markSubscribed() {
	ch.subOnce.Do(func() { close(ch.subscribed) })
}

func (ch *Channel) dispatch(event string, data []byte) {
	ch.mu.RLock()
	fns := append([]func([]byte){}, ch.handlers[event]...)
	ch.mu.RUnlock()
	for _, fn := range fns {
		fn(data)
	}
}
