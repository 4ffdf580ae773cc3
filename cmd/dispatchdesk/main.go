package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dispatchdesk/internal/bootstrap"
	"dispatchdesk/internal/mockapi"
	dashboarddto "dispatchdesk/internal/modules/dashboard/dto"
	sessiondto "dispatchdesk/internal/modules/session/dto"
	"dispatchdesk/internal/platform/config"
	"dispatchdesk/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dispatchdesk",
		Short:         "Ride-hailing back office console",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <user config dir>/dispatchdesk/config.yaml)")

	root.AddCommand(newTUICmd(&configPath))
	root.AddCommand(newLoginCmd(&configPath))
	root.AddCommand(newLogoutCmd(&configPath))
	root.AddCommand(newStatusCmd(&configPath))
	root.AddCommand(newDashboardCmd(&configPath))
	root.AddCommand(newWatchCmd(&configPath))
	root.AddCommand(newMockAPICmd())
	return root
}

// loadApp builds the application and restores the stored session. When
// toFile is set, logs go to the configured log file instead of stderr.
func loadApp(ctx context.Context, configPath string, toFile bool) (*bootstrap.App, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	opts := logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Name: "dispatchdesk"}
	if toFile && opts.File == "" {
		opts.File = filepath.Join(cfg.StateDir, "dispatchdesk.log")
	}
	log, err := logger.New(opts)
	if err != nil {
		return nil, config.Config{}, err
	}
	app, err := bootstrap.New(cfg, log)
	if err != nil {
		return nil, config.Config{}, err
	}
	if _, err := app.SessionCLI.Restore(ctx); err != nil {
		_ = app.Close()
		return nil, config.Config{}, err
	}
	return app, cfg, nil
}

func newTUICmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the dispatch desk terminal UI",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Log.File == "" {
				cfg.Log.File = filepath.Join(cfg.StateDir, "dispatchdesk.log")
			}
			log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Name: "dispatchdesk"})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			app, err := bootstrap.New(cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()
			return bootstrap.RunTUI(app)
		},
	}
}

func newLoginCmd(configPath *string) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login --email <email>",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("DISPATCHDESK_PASSWORD")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return fmt.Errorf("--email and --password (or DISPATCHDESK_PASSWORD) are required")
			}
			app, _, err := loadApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()
			out, err := app.SessionCLI.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (user %s)\n", out.RoleLabel, out.SubjectID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.SessionCLI.Logout(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()
			out := app.SessionCLI.Status(cmd.Context())
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "status: %s\n", out.Status)
			if out.Status != sessiondto.StatusAuthenticated {
				return nil
			}
			_, _ = fmt.Fprintf(w, "role: %s (%d)\nuser: %s\n", out.RoleLabel, out.Role, out.SubjectID)
			if !out.TokenExpiresAt.IsZero() {
				_, _ = fmt.Fprintf(w, "token expires: %s\n", out.TokenExpiresAt.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newDashboardCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the dashboard once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, _, err := loadApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()
			view, err := app.DashboardCLI.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			if reason, ok := app.Navigator.Pending(); ok {
				return errors.New(reason)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newWatchCmd(configPath *string) *cobra.Command {
	var metricsAddr string
	var height int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the dashboard until interrupted or the session ends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app, cfg, err := loadApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer app.Close()
			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}

			group, groupCtx := errgroup.WithContext(ctx)
			watchCtx, cancelWatch := context.WithCancel(groupCtx)
			defer cancelWatch()
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: app.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				group.Go(func() error {
					app.Log.Info("serving metrics", zap.String("addr", metricsAddr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				group.Go(func() error {
					<-watchCtx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}
			group.Go(func() error {
				defer cancelWatch()
				return app.DashboardCLI.Watch(watchCtx, height, func(view dashboarddto.ViewOutput) {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "── %s ──\n", time.Now().Format("15:04:05"))
					printView(cmd.OutOrStdout(), view)
				})
			})
			if err := group.Wait(); err != nil {
				return err
			}
			if reason, ok := app.Navigator.Pending(); ok {
				return errors.New(reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&height, "height", 0, "terminal rows available for bookings")
	return cmd
}

func newMockAPICmd() *cobra.Command {
	var addr, level string
	var tick time.Duration
	var seed uint64
	cmd := &cobra.Command{
		Use:   "mockapi",
		Short: "Serve a local back office with login, dashboard data and live pushes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(logger.Options{Level: level, Name: "dispatchdesk"})
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			api := mockapi.New(mockapi.Config{Tick: tick, Seed: seed}, log)
			defer api.Close()
			listener, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{Handler: api.Handler(), ReadHeaderTimeout: 5 * time.Second}
			log.Info("mock back office listening",
				zap.String("api", "http://"+listener.Addr().String()+"/api/"),
				zap.String("push", "ws://"+listener.Addr().String()+"/app/local"),
				zap.String("password", mockapi.SeedPassword))

			group, groupCtx := errgroup.WithContext(ctx)
			group.Go(func() error { return api.Run(groupCtx) })
			group.Go(func() error {
				if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			group.Go(func() error {
				<-groupCtx.Done()
				api.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return group.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8089", "listen address")
	cmd.Flags().DurationVar(&tick, "tick", 5*time.Second, "interval of simulated booking activity (0 disables)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVar(&level, "log-level", "info", "log level")
	return cmd
}

func printView(w io.Writer, view dashboarddto.ViewOutput) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range view.Cards {
		_, _ = fmt.Fprintf(tw, "%s\t%d\n", c.Title, c.Value)
	}
	v := view.Verification
	_, _ = fmt.Fprintf(tw, "Verified riders\t%d (%d%%)\n", v.Verified, v.VerifiedPct)
	_, _ = fmt.Fprintf(tw, "Pending riders\t%d (%d%%)\n", v.Pending, v.PendingPct)
	_ = tw.Flush()

	if len(view.Bookings) > 0 {
		_, _ = fmt.Fprintf(w, "\nRecent bookings (%d of %d)\n", len(view.Bookings), view.TotalBookings)
		_, _ = fmt.Fprintln(tw, "RIDE\tCUSTOMER\tRIDER\tSTATUS\tFARE\tCREATED")
		for _, b := range view.Bookings {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", b.RideID, b.Customer, b.Rider, b.Status, b.Fare, b.CreatedAt)
		}
		_ = tw.Flush()
	}
	line := "live: " + view.Live
	if view.Source != "" {
		line += fmt.Sprintf("  source: %s #%d", view.Source, view.Seq)
	}
	if view.LastError != "" {
		line += "  error: " + view.LastError
	}
	_, _ = fmt.Fprintln(w, line)
}
