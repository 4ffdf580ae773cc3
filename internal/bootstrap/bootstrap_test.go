package bootstrap

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"dispatchdesk/internal/mockapi"
	sessiondto "dispatchdesk/internal/modules/session/dto"
	"dispatchdesk/internal/platform/config"
)

func newTestApp(t *testing.T, backend string, tweak ...func(*config.Config)) (*App, *mockapi.Server) {
	t.Helper()
	api := mockapi.New(mockapi.Config{Seed: 1}, nil)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(func() {
		api.Close()
		srv.Close()
	})

	cfg := config.Default(t.TempDir())
	cfg.API.BaseURL = srv.URL + "/api/"
	cfg.API.Timeout = 5 * time.Second
	cfg.Push.URL = srv.URL + "/app/local"
	cfg.Push.HandshakeTimeout = 2 * time.Second
	cfg.Credentials.Backend = backend
	cfg.Credentials.Path = filepath.Join(cfg.StateDir, "credentials-"+backend)
	for _, fn := range tweak {
		fn(&cfg)
	}

	app, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	_, err = app.SessionCLI.Restore(context.Background())
	require.NoError(t, err)
	return app, api
}

func TestUnauthorizedResponseRedirectsOnce(t *testing.T) {
	t.Parallel()
	app, api := newTestApp(t, "file")

	out, err := app.SessionCLI.Login(context.Background(), "super@dispatchdesk.test", mockapi.SeedPassword)
	require.NoError(t, err)
	require.Equal(t, sessiondto.StatusAuthenticated, out.Status)
	require.False(t, out.TokenExpiresAt.IsZero())

	view, err := app.DashboardCLI.Snapshot(context.Background())
	require.NoError(t, err)
	require.Empty(t, view.LastError)
	require.Equal(t, "Active Admins", view.Cards[1].Title)

	api.Revoke()
	_, err = app.DashboardCLI.Snapshot(context.Background())
	require.NoError(t, err)

	require.Equal(t, sessiondto.StatusAnonymous, app.SessionCLI.Status(context.Background()).Status)
	reason, ok := app.Navigator.Pending()
	require.True(t, ok)
	require.Equal(t, expiredNotice, reason)
	_, ok = app.Navigator.Pending()
	require.False(t, ok)
}

func TestCredentialBackends(t *testing.T) {
	t.Parallel()
	redisServer := miniredis.RunT(t)
	for _, backend := range []string{"file", "sqlite", "redis"} {
		t.Run(backend, func(t *testing.T) {
			app, _ := newTestApp(t, backend, func(cfg *config.Config) {
				cfg.Credentials.RedisAddr = redisServer.Addr()
			})
			_, err := app.SessionCLI.Login(context.Background(), "admin@dispatchdesk.test", mockapi.SeedPassword)
			require.NoError(t, err)
			require.Equal(t, sessiondto.StatusAuthenticated, app.SessionCLI.Status(context.Background()).Status)
			require.NoError(t, app.SessionCLI.Logout(context.Background()))
			require.Equal(t, sessiondto.StatusAnonymous, app.SessionCLI.Status(context.Background()).Status)
		})
	}
}

func TestCustomerCannotSignIn(t *testing.T) {
	t.Parallel()
	app, _ := newTestApp(t, "file")
	_, err := app.SessionCLI.Login(context.Background(), "customer@dispatchdesk.test", mockapi.SeedPassword)
	require.Error(t, err)
	require.Equal(t, sessiondto.StatusAnonymous, app.SessionCLI.Status(context.Background()).Status)
}
