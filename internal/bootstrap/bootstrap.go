package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	dashboardinadapter "dispatchdesk/internal/modules/dashboard/adapter/in"
	dashboardoutadapter "dispatchdesk/internal/modules/dashboard/adapter/out"
	dashboardservice "dispatchdesk/internal/modules/dashboard/service"
	dashboardusecase "dispatchdesk/internal/modules/dashboard/usecase"
	sessioninadapter "dispatchdesk/internal/modules/session/adapter/in"
	sessionoutadapter "dispatchdesk/internal/modules/session/adapter/out"
	sessionout "dispatchdesk/internal/modules/session/port/out"
	sessionservice "dispatchdesk/internal/modules/session/service"
	sessionusecase "dispatchdesk/internal/modules/session/usecase"
	"dispatchdesk/internal/platform/clock"
	"dispatchdesk/internal/platform/config"
	"dispatchdesk/internal/platform/id"
	"dispatchdesk/internal/platform/logger"
	"dispatchdesk/internal/platform/metrics"
	"dispatchdesk/internal/platform/pusher"
	"dispatchdesk/internal/platform/transport"
	uiapp "dispatchdesk/internal/ui/app"
)

const expiredNotice = "Your session has expired. Please sign in again."

type App struct {
	SessionCLI   sessioninadapter.CLIHandler
	DashboardCLI dashboardinadapter.CLIHandler
	DashboardTUI dashboardinadapter.TUIHandler
	Navigator    *uiapp.Navigator
	Metrics      *metrics.Metrics
	Log          *zap.Logger

	session *sessionservice.StateMachine
	release func()
	closers []func() error
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	m := metrics.New()

	store, closers, err := newCredentialStore(cfg)
	if err != nil {
		return nil, err
	}
	sessionSvc := sessionservice.NewStateMachine(store, log, m)

	guard := transport.NewGuard(http.DefaultTransport, sessionSvc, id.UUID{}, log, m)
	client := guard.Client()
	client.Timeout = cfg.API.Timeout

	gateway, err := sessionoutadapter.NewHTTPAuthGateway(client, cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}
	sessionUC := sessionusecase.NewInteractor(sessionSvc, gateway, log)

	source, err := dashboardoutadapter.NewHTTPSnapshotSource(client, cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}
	feed := dashboardoutadapter.NewPusherLiveFeed(pusher.Config{
		URL:              cfg.Push.URL,
		Key:              cfg.Push.Key,
		Cluster:          cfg.Push.Cluster,
		HandshakeTimeout: cfg.Push.HandshakeTimeout,
	}, log)
	live := dashboardservice.NewLiveChannel(feed, cfg.Push.Channel, cfg.Push.Event, log, m)
	aggregator := dashboardservice.NewAggregator(source, live, clock.SystemClock{}, log, m, dashboardservice.AggregatorConfig{
		PullTimeout: cfg.API.Timeout,
	})
	dashboardUC := dashboardusecase.NewInteractor(aggregator, sessionSvc, log)

	app := &App{
		SessionCLI:   sessioninadapter.NewCLIHandler(sessionUC),
		DashboardCLI: dashboardinadapter.NewCLIHandler(dashboardUC),
		DashboardTUI: dashboardinadapter.NewTUIHandler(dashboardUC),
		Navigator:    uiapp.NewNavigator(),
		Metrics:      m,
		Log:          log,
		session:      sessionSvc,
		closers:      closers,
	}
	app.release = guard.Register(app.onUnauthorized)
	return app, nil
}

// onUnauthorized ends the authenticated period the failed request belonged
// to. Only the caller that actually ended it redirects.
func (a *App) onUnauthorized(f transport.Failure) {
	if !a.session.Expire(context.Background(), f.Epoch) {
		return
	}
	a.Log.Info("authorization failure ended the session", zap.String("method", f.Method), zap.String("url", f.URL))
	a.Navigator.ToEntry(expiredNotice)
}

// Close releases the guard interceptor and closes storage handles.
func (a *App) Close() error {
	if a.release != nil {
		a.release()
	}
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newCredentialStore(cfg config.Config) (sessionout.CredentialStore, []func() error, error) {
	switch cfg.Credentials.Backend {
	case "sqlite":
		store, err := sessionoutadapter.NewSQLiteCredentialStore(cfg.Credentials.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("new credential store: %w", err)
		}
		return store, []func() error{store.Close}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Credentials.RedisAddr})
		return sessionoutadapter.NewRedisCredentialStore(client, cfg.Credentials.RedisPrefix), []func() error{client.Close}, nil
	default:
		return sessionoutadapter.NewFileCredentialStore(cfg.Credentials.Path), nil, nil
	}
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.SessionCLI, app.DashboardTUI, app.Navigator)
	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if m, ok := final.(uiapp.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	return err
}
