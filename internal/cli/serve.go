package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/plushub/internal/adapters/http/api"
	"github.com/okian/plushub/internal/adapters/http/swagger"
	service "github.com/okian/plushub/internal/app"
	"github.com/okian/plushub/internal/config"
	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/voting"
	"github.com/okian/plushub/pkg/logger"
	"github.com/okian/plushub/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plushub HTTP API",
		Long: `Run the plushub HTTP API until SIGINT or SIGTERM.

Configuration is layered from defaults, the YAML file and PLUSHUB_* env vars.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := rootOpts.cfg
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to listen", err)
			}
			return serve(ctx, cfg, ln)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides addr)")
	return cmd
}

// configureMetrics applies metric naming and buckets from configuration.
func configureMetrics(cfg *config.Config) {
	metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsBucketsMS),
	)
}

// newService builds the service from configuration.
func newService(cfg *config.Config) *service.Service {
	opts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithAdminID(model.UserID(cfg.AdminID)),
		service.WithDescriptionLimit(cfg.DescriptionLimit),
		service.WithNotificationWorkers(cfg.NotificationWorkers),
		service.WithNotificationQueueSize(cfg.NotificationQueueSize),
		service.WithQueryCacheSize(cfg.QueryCacheSize),
		service.WithVotingWindow(voting.New(
			voting.WithStartHourUTC(cfg.VotingStartHourUTC),
			voting.WithDuration(time.Duration(cfg.VotingDurationHours)*time.Hour),
		)),
	}
	if cfg.Store == config.StoreSQLite {
		opts = append(opts, service.WithSQLitePath(cfg.StorePath))
	}
	return service.New(opts...)
}

// serve runs the API on ln until ctx ends, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	log := logger.Named("server")
	configureMetrics(cfg)

	svc := newService(cfg)
	if err := svc.Start(ctx); err != nil {
		_ = ln.Close()
		return WrapExitError(ExitCommandError, "failed to start service", err)
	}
	defer svc.Stop()

	if cfg.SeedPath != "" {
		if err := svc.LoadSeedFile(ctx, cfg.SeedPath); err != nil {
			_ = ln.Close()
			return WrapExitError(ExitCommandError, "failed to load seed", err)
		}
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)

	srv := &http.Server{
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return WrapExitError(ExitFailure, "HTTP server failed", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater refreshes process gauges until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}

// startServiceMetricsUpdater refreshes queue and cache gauges. GetStats
// updates them as a side effect.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.GetStats()
		}
	}
}
