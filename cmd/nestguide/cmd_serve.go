package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/nestguide/internal/logging"
	"github.com/kingrea/nestguide/internal/server"
	"github.com/kingrea/nestguide/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	statsInterval   = time.Minute
)

func newServeCmd(rt *rootState) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the triage session API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			catalog, err := rt.loadCatalog()
			if err != nil {
				return err
			}
			settings := server.SettingsFromConfig(rt.cfg)
			if cmd.Flags().Changed("port") {
				settings.Port = port
			}
			emitter, err := rt.openEmitter(ctx, rt.logger)
			if err != nil {
				return err
			}
			defer closeEmitter(emitter, rt.logger)

			srv, err := server.New(catalog, settings,
				server.WithRecorder(emitter),
				server.WithLogger(logging.NewPrintf(rt.logger.Named("server"))),
				server.WithIntakeLogger(rt.logger.Named("intake")),
			)
			if err != nil {
				return err
			}
			if err := srv.Start(ctx); err != nil {
				return err
			}
			rt.logger.Info("session API ready", zap.String("url", srv.BaseURL()))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				reportTelemetry(gctx, emitter, rt.logger)
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Override the listen port")
	return cmd
}

// reportTelemetry logs the emitter's delivery counters until ctx ends.
func reportTelemetry(ctx context.Context, emitter *telemetry.Emitter, logger *zap.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	var last telemetry.Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := emitter.Stats()
			if stats == last {
				continue
			}
			last = stats
			logger.Info("telemetry delivery",
				zap.Uint64("written", stats.Written),
				zap.Uint64("dropped", stats.Dropped),
				zap.Uint64("failed", stats.Failed),
			)
		}
	}
}
