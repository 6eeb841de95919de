package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/maxvaer/dirscan/internal/api"
	"github.com/maxvaer/dirscan/internal/config"
	"github.com/maxvaer/dirscan/internal/logger"
	"github.com/maxvaer/dirscan/internal/metrics"
	"github.com/maxvaer/dirscan/internal/scanner"
	"github.com/maxvaer/dirscan/internal/storage"
	"github.com/maxvaer/dirscan/internal/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve [flags]",
	Short: "Serve scan sessions over an HTTP JSON API",
	Example: `  dirscan serve
  dirscan serve --listen 127.0.0.1:9000 --db dirscan.db --session-ttl 30m
  DIRSCAN_MAX_SESSIONS=10 dirscan serve --metrics=false`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := resolveOptions(cmd)
		if err != nil {
			return err
		}
		log, err := logger.New(opts.Log, opts.NoColor)
		if err != nil {
			return err
		}
		defer log.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		return serve(ctx, opts, log.Zerolog())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	d := config.Defaults()
	f := serveCmd.Flags()
	f.StringVar(&flagOpts.Server.Listen, "listen", d.Server.Listen, "Address to listen on")
	f.StringVar(&flagOpts.Server.DatabasePath, "db", "", "SQLite file for the scan history (disabled when empty)")
	f.DurationVar(&flagOpts.Server.SessionTTL, "session-ttl", d.Server.SessionTTL, "Keep finished sessions queryable for this long (0 keeps them)")
	f.IntVar(&flagOpts.Server.MaxSessions, "max-sessions", d.Server.MaxSessions, "Maximum sessions held at once (0 for no limit)")
	f.BoolVar(&flagOpts.Server.Metrics, "metrics", d.Server.Metrics, "Expose Prometheus metrics on /metrics")
}

// serve runs the API until ctx is cancelled, then drains the server and the
// running sessions within the shutdown grace period.
func serve(ctx context.Context, opts *config.Options, log zerolog.Logger) error {
	cfg := scanner.RegistryConfig{
		Options:         opts,
		TTL:             opts.Server.SessionTTL,
		JanitorInterval: opts.Server.JanitorInterval,
		MaxSessions:     opts.Server.MaxSessions,
		RecentResults:   opts.Server.RecentResults,
		Logger:          log,
	}

	var metricsHandler http.Handler
	if opts.Server.Metrics {
		collector, err := metrics.New()
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
		cfg.Observer = collector
		metricsHandler = collector.Handler()
	}

	var archive storage.Archive
	if opts.Server.DatabasePath != "" {
		store, err := sqlite.New(ctx, opts.Server.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer store.Close()
		archive = store
		log.Info().Str("path", opts.Server.DatabasePath).Msg("scan history enabled")
	}
	cfg.OnFinish = storage.SaveOnFinish(archive, log)

	reg := scanner.NewRegistry(cfg)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go reg.Run(janitorCtx)

	srv := api.NewServer(opts.Server.Listen, api.Deps{
		Registry: reg,
		Archive:  archive,
		Metrics:  metricsHandler,
		Logger:   log,
	})
	errCh, err := srv.Start()
	if err != nil {
		_ = reg.Close(context.Background())
		return fmt.Errorf("starting HTTP server: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.Server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	if err := reg.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("sessions did not finish before the grace period")
	}
	log.Info().Msg("server stopped")
	return serveErr
}
