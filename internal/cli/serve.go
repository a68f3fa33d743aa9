package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/metrics"
	"github.com/JonMunkholm/facturador/internal/spreadsheet"
	"github.com/JonMunkholm/facturador/internal/web"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return opts.serve(ctx)
		},
	}
}

func (o *options) serve(ctx context.Context) error {
	cfg := o.cfg

	client, err := o.issuer()
	if err != nil {
		return err
	}
	aliases, err := o.aliases()
	if err != nil {
		return err
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"issuance_endpoint", client.Endpoint(),
		"journal_enabled", cfg.Journal.Enabled(),
		"metrics_enabled", cfg.Metrics.Enabled,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	var (
		recorders core.Recorders
		webOpts   web.Options
	)
	if cfg.Metrics.Enabled {
		reg := metrics.NewRegistry()
		recorders = append(recorders, reg)
		webOpts.Metrics = reg.Handler()
	}

	jr, closeJournal, err := o.openJournal(ctx)
	if err != nil {
		return err
	}
	defer closeJournal()
	if jr != nil {
		recorders = append(recorders, jr)
		webOpts.Attempts = jr
	}

	service := core.NewService(core.ServiceConfig{
		Decoder:          spreadsheet.New(),
		Issuer:           client,
		Aliases:          aliases,
		Recorder:         recorders,
		IdleTTL:          cfg.Session.IdleTTL,
		MaxActiveBatches: cfg.Session.MaxActiveBatches,
	})
	server := web.NewServer(service, cfg, webOpts)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go service.RunSweeper(jobCtx, cfg.Session.SweepInterval)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop taking requests first so no new batch can start.
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	if status := service.ActiveStatus(); status.Active > 0 {
		slog.Info("waiting for submissions to complete", "active", status.Active)
	}
	if err := service.WaitForSubmissions(shutdownCtx); err != nil {
		slog.Warn("submissions did not complete in time", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
