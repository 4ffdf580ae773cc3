package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source tells where a snapshot came from.
type Source int

const (
	SourceNone Source = iota
	SourcePull
	SourcePush
)

func (s Source) String() string {
	switch s {
	case SourcePull:
		return "pull"
	case SourcePush:
		return "push"
	default:
		return "none"
	}
}

// Counts maps metric keys (active_riders, customers, ...) to values.
type Counts map[string]int64

func (c Counts) Get(key string) int64 {
	return c[key]
}

// First returns the value of the first key that is present.
func (c Counts) First(keys ...string) int64 {
	for _, k := range keys {
		if v, ok := c[k]; ok {
			return v
		}
	}
	return 0
}

type Person struct {
	FirstName string
	LastName  string
}

func (p *Person) Name() string {
	if p == nil {
		return "N/A"
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return "N/A"
	}
	return name
}

type Booking struct {
	ID        string
	RideID    string
	Customer  *Person
	Rider     *Person
	Status    string
	Fare      string
	CreatedAt string
}

// Tone classifies a booking status for display.
type Tone int

const (
	TonePending Tone = iota
	ToneDone
	ToneCanceled
)

func (b Booking) Tone() Tone {
	switch strings.ToLower(strings.TrimSpace(b.Status)) {
	case "completed":
		return ToneDone
	case "canceled", "cancelled":
		return ToneCanceled
	default:
		return TonePending
	}
}

// Snapshot is one complete dashboard state. A newer snapshot replaces the
// previous one wholesale.
type Snapshot struct {
	Counts   Counts
	Bookings []Booking
	Source   Source
	// Seq is a local arrival counter for diagnostics only.
	Seq        uint64
	ReceivedAt time.Time
}

type wirePerson struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type wireBooking struct {
	ID        json.RawMessage `json:"id"`
	RideID    json.RawMessage `json:"ride_id"`
	User      *wirePerson     `json:"user"`
	Rider     *wirePerson     `json:"rider"`
	Status    string          `json:"status"`
	Fare      json.RawMessage `json:"fare"`
	CreatedAt string          `json:"created_at"`
}

type wireSnapshot struct {
	Counts   map[string]json.RawMessage `json:"counts"`
	Bookings []wireBooking              `json:"bookings"`
}

// ParseSnapshot decodes a dashboard payload. It accepts the object form and
// the string-encoded form push servers typically deliver. Count values may
// be numbers or numeric strings; anything else is skipped.
func ParseSnapshot(raw []byte) (Snapshot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return Snapshot{}, fmt.Errorf("decode snapshot string: %w", err)
		}
		raw = []byte(inner)
	}
	wire := wireSnapshot{}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if wire.Counts == nil && wire.Bookings == nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: no counts or bookings")
	}

	snap := Snapshot{Counts: Counts{}, Bookings: make([]Booking, 0, len(wire.Bookings))}
	for key, value := range wire.Counts {
		if n, ok := number(value); ok {
			snap.Counts[key] = n
		}
	}
	for _, b := range wire.Bookings {
		snap.Bookings = append(snap.Bookings, Booking{
			ID:        text(b.ID),
			RideID:    text(b.RideID),
			Customer:  person(b.User),
			Rider:     person(b.Rider),
			Status:    b.Status,
			Fare:      text(b.Fare),
			CreatedAt: b.CreatedAt,
		})
	}
	return snap, nil
}

func number(raw json.RawMessage) (int64, bool) {
	s := text(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// text renders a scalar JSON value as a plain string.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
		return ""
	}
	return string(raw)
}

func person(p *wirePerson) *Person {
	if p == nil {
		return nil
	}
	return &Person{FirstName: p.FirstName, LastName: p.LastName}
}
