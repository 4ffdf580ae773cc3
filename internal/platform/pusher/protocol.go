// Package pusher is a minimal client for the Pusher channels protocol
// (version 7) over gorilla/websocket, covering public channel subscription,
// event binding and keepalive.
package pusher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	ProtocolVersion = 7
	ClientName      = "dispatchdesk-go"
	ClientVersion   = "1.0"

	EventConnectionEstablished = "pusher:connection_established"
	EventError                 = "pusher:error"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventSubscribe             = "pusher:subscribe"
	EventUnsubscribe           = "pusher:unsubscribe"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
)

// Event is one protocol frame. Data is kept raw: servers send it either as
// a JSON object or as a JSON string holding an encoded object.
type Event struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Payload returns Data with one level of string encoding removed.
func (e Event) Payload() []byte {
	raw := bytes.TrimSpace(e.Data)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err == nil {
			return []byte(inner)
		}
	}
	return raw
}

type connectionEstablished struct {
	SocketID        string `json:"socket_id"`
	ActivityTimeout int    `json:"activity_timeout"`
}

type subscribeData struct {
	Channel string `json:"channel"`
}

// ErrorData is the body of pusher:error.
type ErrorData struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e ErrorData) Error() string {
	return fmt.Sprintf("pusher error %d: %s", e.Code, e.Message)
}

// NewEvent encodes data as a JSON object frame.
func NewEvent(name, channel string, data any) (Event, error) {
	ev := Event{Event: name, Channel: channel}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s data: %w", name, err)
		}
		ev.Data = raw
	}
	return ev, nil
}

// NewStringEvent encodes data as a JSON string holding the encoded object,
// the way servers deliver application events.
func NewStringEvent(name, channel string, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s data: %w", name, err)
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return Event{}, fmt.Errorf("quote %s data: %w", name, err)
	}
	return Event{Event: name, Channel: channel, Data: quoted}, nil
}

// Endpoint returns the websocket URL for cfg. An explicit URL wins over the
// hosted cluster address; protocol query parameters are added to both.
func Endpoint(cfg Config) (string, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		if cfg.Key == "" {
			return "", fmt.Errorf("pusher: key is required")
		}
		host := "ws.pusherapp.com"
		if cfg.Cluster != "" {
			host = "ws-" + cfg.Cluster + ".pusher.com"
		}
		raw = "wss://" + host + "/app/" + url.PathEscape(cfg.Key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("pusher: parse url %q: %w", raw, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("protocol", fmt.Sprint(ProtocolVersion))
	q.Set("client", ClientName)
	q.Set("version", ClientVersion)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
