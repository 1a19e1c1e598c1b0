package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/contractreview/internal/api"
	"github.com/dgallion1/contractreview/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP review service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(os.Stdout, true)
		if err != nil {
			return err
		}
		defer a.Close()
		log := a.log

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Initialize pipeline.
		orch := pipeline.NewOrchestrator(a.cfg, a.reviewer, a.renderer, a.history, log)
		orch.Start(context.Background())

		// Initialize HTTP server.
		srv := api.NewServer(orch, a.history, a.client, log, a.cfg)
		httpServer := &http.Server{
			Addr:         ":" + a.cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting contractreview", "port", a.cfg.Port, "model_type", a.cfg.ModelType)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			orch.Stop()
			return err
		case <-ctx.Done():
		}

		// Graceful shutdown.
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}
		orch.Stop()
		return nil
	},
}
