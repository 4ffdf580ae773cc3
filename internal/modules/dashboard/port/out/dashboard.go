package out

import (
	"context"

	"dispatchdesk/internal/modules/dashboard/domain"
	sessiondomain "dispatchdesk/internal/modules/session/domain"
)

// SnapshotSource performs the pull fetch.
type SnapshotSource interface {
	Fetch(ctx context.Context) (domain.Snapshot, error)
}

// LiveFeed opens push connections.
type LiveFeed interface {
	Connect(ctx context.Context) (FeedConnection, error)
}

type FeedConnection interface {
	Subscribe(topic string) (FeedSubscription, error)
	Disconnect()
	// Done is closed when the connection ends; Err then tells why, or nil
	// after Disconnect.
	Done() <-chan struct{}
	Err() error
}

type FeedSubscription interface {
	// Bind handlers run on the connection's reader and must not block.
	Bind(event string, fn func(payload []byte))
	UnbindAll()
	Unsubscribe() error
}

// SessionReader is the dashboard's read-only view of the session.
type SessionReader interface {
	Current() sessiondomain.Session
	Subscribe() (<-chan sessiondomain.Session, func())
}
