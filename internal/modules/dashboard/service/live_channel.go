package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"dispatchdesk/internal/modules/dashboard/domain"
	dashboardout "dispatchdesk/internal/modules/dashboard/port/out"
	apperrors "dispatchdesk/internal/platform/errors"
	"dispatchdesk/internal/platform/logger"
	"dispatchdesk/internal/platform/metrics"
)

type LiveState int

const (
	LiveClosed LiveState = iota
	LiveConnecting
	LiveOpen
)

func (s LiveState) String() string {
	switch s {
	case LiveConnecting:
		return "connecting"
	case LiveOpen:
		return "open"
	default:
		return "closed"
	}
}

const (
	DefaultTopic = "dashboard"
	DefaultEvent = "DASHBOARD_UPDATE"
)

// LiveChannel owns the single push subscription of a mounted dashboard.
type LiveChannel struct {
	feed    dashboardout.LiveFeed
	topic   string
	event   string
	log     *zap.Logger
	metrics *metrics.Metrics

	mounted atomic.Bool
	gen     atomic.Uint64

	mu    sync.Mutex
	state LiveState
	conn  dashboardout.FeedConnection
	sub   dashboardout.FeedSubscription
}

func NewLiveChannel(feed dashboardout.LiveFeed, topic, event string, log *zap.Logger, m *metrics.Metrics) *LiveChannel {
	if topic == "" {
		topic = DefaultTopic
	}
	if event == "" {
		event = DefaultEvent
	}
	return &LiveChannel{feed: feed, topic: topic, event: event, log: logger.OrNop(log).Named("live"), metrics: m}
}

func (l *LiveChannel) State() LiveState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Open connects, subscribes and binds. deliver receives each decoded update
// while the channel stays mounted; dropped is called once if the connection
// ends without Close. Open on a channel that is not closed is a no-op.
func (l *LiveChannel) Open(ctx context.Context, deliver func(domain.Snapshot), dropped func(error)) error {
	l.mu.Lock()
	if l.state != LiveClosed {
		l.mu.Unlock()
		return nil
	}
	gen := l.gen.Add(1)
	l.mounted.Store(true)
	l.setStateLocked(LiveConnecting)
	l.mu.Unlock()

	conn, err := l.feed.Connect(ctx)
	if err != nil {
		l.mu.Lock()
		if l.gen.Load() == gen {
			l.setStateLocked(LiveClosed)
		}
		l.mu.Unlock()
		return fmt.Errorf("connect live feed: %w", err)
	}

	sub, err := conn.Subscribe(l.topic)
	if err != nil {
		conn.Disconnect()
		l.mu.Lock()
		if l.gen.Load() == gen {
			l.setStateLocked(LiveClosed)
		}
		l.mu.Unlock()
		return fmt.Errorf("subscribe %s: %w", l.topic, err)
	}

	l.mu.Lock()
	if l.gen.Load() != gen {
		// Closed while connecting.
		l.mu.Unlock()
		sub.UnbindAll()
		_ = sub.Unsubscribe()
		conn.Disconnect()
		return apperrors.ErrChannelClosed
	}
	sub.Bind(l.event, func(payload []byte) {
		if !l.mounted.Load() || l.gen.Load() != gen {
			return
		}
		snap, err := domain.ParseSnapshot(payload)
		if err != nil {
			l.log.Warn("skip undecodable update", zap.Error(err))
			return
		}
		snap.Source = domain.SourcePush
		deliver(snap)
	})
	l.conn, l.sub = conn, sub
	l.setStateLocked(LiveOpen)
	l.mu.Unlock()
	l.log.Info("live channel open", zap.String("topic", l.topic), zap.String("event", l.event))

	go l.watch(gen, conn, dropped)
	return nil
}

func (l *LiveChannel) watch(gen uint64, conn dashboardout.FeedConnection, dropped func(error)) {
	<-conn.Done()
	l.mu.Lock()
	if l.gen.Load() != gen || l.conn != conn {
		l.mu.Unlock()
		return
	}
	l.conn, l.sub = nil, nil
	l.setStateLocked(LiveClosed)
	l.mu.Unlock()

	err := conn.Err()
	if err == nil {
		err = apperrors.ErrChannelClosed
	}
	l.log.Warn("live channel stopped", zap.Error(err))
	if dropped != nil {
		dropped(err)
	}
}

// Close tears the subscription down: delivery stops first, then handlers are
// unbound, the topic is left and the connection closed. Idempotent.
func (l *LiveChannel) Close() {
	l.mounted.Store(false)
	l.mu.Lock()
	l.gen.Add(1)
	conn, sub := l.conn, l.sub
	l.conn, l.sub = nil, nil
	wasOpen := l.state != LiveClosed
	l.setStateLocked(LiveClosed)
	l.mu.Unlock()

	if sub != nil {
		sub.UnbindAll()
		if err := sub.Unsubscribe(); err != nil {
			l.log.Debug("unsubscribe", zap.Error(err))
		}
	}
	if conn != nil {
		conn.Disconnect()
	}
	if wasOpen {
		l.log.Info("live channel closed")
	}
}

func (l *LiveChannel) setStateLocked(s LiveState) {
	l.state = s
	l.metrics.SetLiveState(int(s))
}
