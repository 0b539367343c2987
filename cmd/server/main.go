// Package main provides the server binary: the HTTP API, the websocket
// event feed and, when --rescore-interval is set, the periodic risk sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swap-risk-lab/internal/api"
	"swap-risk-lab/internal/app"
	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/orchestrator"
)

// EventSweepCompleted is published on the feed after every sweep.
const EventSweepCompleted = "sweep_completed"

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve the swap risk API",
		Long: `server exposes contracts, obligations, exposure and risk reports over
HTTP, accepts file uploads on /api/ingest and streams persistence events
on /ws.

With --rescore-interval every reference entity and counterparty is
re-scored on that interval and the results are appended to risk history.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.Bootstrap(cmd.Flags())
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}

	config.BindFlags(cmd.PersistentFlags())
	cmd.Flags().String(config.KeyAddr, ":8080", "HTTP listen address")
	cmd.Flags().StringSlice(flagName(config.KeyCORSOrigins), []string{"*"}, "Allowed CORS origins")
	cmd.Flags().Duration(flagName(config.KeyRescoreInterval), 0, "Re-score every subject on this interval (0 disables)")
	cmd.Flags().Int(config.KeyWorkers, 1, "Files ingested concurrently")
	cmd.Flags().String(config.KeyFieldMap, "", "YAML file overriding the column to field mapping")
	cmd.Flags().Bool(config.KeyNarrative, false, "Enable LLM narratives on ?narrative=true")
	return cmd
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := app.New(ctx, cfg, logger, time.Now)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(api.Options{
		Store:       a.Stores.Store,
		History:     a.Stores.History,
		Aggregator:  a.Aggregator,
		Reports:     a.Reports,
		Pipeline:    a.Pipeline,
		Feed:        a.Hub,
		Publisher:   a.Hub,
		Backend:     a.Stores.Backend,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.Named("api"),
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	if cfg.RescoreInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Sweep.RunEvery(ctx, cfg.RescoreInterval, func(s *orchestrator.Summary) {
				srv.RecordSweep(s)
				a.Hub.Publish(EventSweepCompleted, sweepEvent(s))
			})
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Addr),
			zap.String("store", a.Stores.Backend),
			zap.Duration("rescore_interval", cfg.RescoreInterval),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Close the feed first: hijacked websocket connections are not tracked
	// by http.Server.Shutdown.
	a.Hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
	logger.Info("shutdown complete")
	return nil
}

// SweepEvent is the payload of EventSweepCompleted.
type SweepEvent struct {
	FinishedAt     time.Time `json:"finished_at"`
	Contracts      int       `json:"contracts"`
	Entities       int       `json:"entities"`
	Counterparties int       `json:"counterparties"`
	Repaired       int       `json:"repaired"`
	Errors         int       `json:"errors"`
}

func sweepEvent(s *orchestrator.Summary) SweepEvent {
	ev := SweepEvent{
		FinishedAt:     s.FinishedAt,
		Contracts:      s.Contracts,
		Entities:       len(s.Entities),
		Counterparties: len(s.Counterparties),
		Errors:         len(s.Errors),
	}
	if s.Verification != nil {
		ev.Repaired = s.Verification.Repaired
	}
	return ev
}
