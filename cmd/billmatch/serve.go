package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/certs"
	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/config"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the matching API over HTTP",
		Long: `Start a JSON API exposing scoring, candidate selection, classification,
aggregation and benchmarking, plus read access to stored runs.

Endpoints:
  GET  /health
  POST /api/score
  POST /api/select
  POST /api/classify
  POST /api/aggregate
  POST /api/benchmark
  GET  /api/runs
  GET  /api/runs/{id}`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", config.DefaultServerPort, "Port to listen on")
	cmd.Flags().StringSlice("allowed-origins", nil, "CORS origins allowed to call the API")
	cmd.Flags().Bool("no-runs", false, "Do not expose stored runs")
	cmd.Flags().Bool("tls", false, "Serve HTTPS with a self-signed localhost certificate")

	_ = viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.allowed_origins", cmd.Flags().Lookup("allowed-origins"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	port, err := config.ServerPort()
	if err != nil {
		return err
	}

	m, err := newMatcher()
	if err != nil {
		return err
	}

	cfg := api.DefaultConfig()
	cfg.Port = port
	if origins := viper.GetStringSlice("server.allowed_origins"); len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	var server *api.Server
	if noRuns, _ := cmd.Flags().GetBool("no-runs"); noRuns {
		server = api.NewServer(cfg, m, nil, slog.Default())
	} else {
		store, err := openStorage(ctx)
		if err != nil {
			return err
		}
		defer closeStorage(store)
		server = api.NewServer(cfg, m, store, slog.Default())
	}

	start := server.Start
	if useTLS, _ := cmd.Flags().GetBool("tls"); useTLS {
		configDir, err := configDirectory()
		if err != nil {
			return err
		}
		certStore := certs.NewFileStore(filepath.Join(configDir, "certs"))
		cert, err := certStore.Localhost()
		if err != nil {
			return fmt.Errorf("failed to prepare certificate: %w", err)
		}
		slog.Info("Serving HTTPS; trust the certificate to avoid browser warnings", "certificate", certStore.CertFile())
		start = func() error { return server.StartTLS(cert) }
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
