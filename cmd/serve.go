package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pallav-m/surya-isolation/internal/config"
	"github.com/pallav-m/surya-isolation/internal/inference"
	"github.com/pallav-m/surya-isolation/internal/logger"
	"github.com/pallav-m/surya-isolation/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document understanding HTTP API",
	Long: `Start the HTTP API exposing the four document understanding tasks.

Endpoints:
  POST /run_inference  multipart image batch + task_type
  GET  /health         readiness check
  GET  /metrics        prometheus metrics`,
	Example: `  # Serve on the configured address (HTTP_HOST/HTTP_PORT, default :8000)
  surya-isolation serve

  # Override the listen address
  surya-isolation serve --host 127.0.0.1 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host (overrides HTTP_HOST)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides HTTP_PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.HTTPHost = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.HTTPPort = port
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("backend", cfg.ModelBackend).Msg("Loading predictors")
	engine, err := inference.BuildEngine(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize inference engine: %w", err)
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: server.New(engine, cfg.MaxBatchImages),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}
