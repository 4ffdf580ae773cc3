package out

import (
	"context"

	"go.uber.org/zap"

	dashboardout "dispatchdesk/internal/modules/dashboard/port/out"
	"dispatchdesk/internal/platform/pusher"
)

// PusherLiveFeed opens Pusher protocol connections for the live channel.
type PusherLiveFeed struct {
	cfg pusher.Config
	log *zap.Logger
}

func NewPusherLiveFeed(cfg pusher.Config, log *zap.Logger) dashboardout.LiveFeed {
	return &PusherLiveFeed{cfg: cfg, log: log}
}

func (f *PusherLiveFeed) Connect(ctx context.Context) (dashboardout.FeedConnection, error) {
	client, err := pusher.Dial(ctx, f.cfg, f.log)
	if err != nil {
		return nil, err
	}
	return pusherConnection{client: client}, nil
}

type pusherConnection struct {
	client *pusher.Client
}

func (c pusherConnection) Subscribe(topic string) (dashboardout.FeedSubscription, error) {
	ch, err := c.client.Subscribe(topic)
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c pusherConnection) Disconnect()           { c.client.Disconnect() }
func (c pusherConnection) Done() <-chan struct{} { return c.client.Done() }
func (c pusherConnection) Err() error            { return c.client.Err() }
