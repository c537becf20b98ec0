package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-agent/internal/adapter/httpapi"
	"task-agent/internal/di"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		addr            string
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent protocol over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if !cmd.Flags().Changed("addr") {
				addr = cfg.HTTPAddr
			}
			cfg.LogName = "serve"
			return serve(cmd.Context(), cfg, addr, shutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	return cmd
}

func serve(ctx context.Context, cfg di.Config, addr string, shutdownTimeout time.Duration) error {
	container, err := di.NewContainer(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer container.Close()

	routerCfg := httpapi.DefaultConfig()
	routerCfg.JSONLog = cfg.LogFormat == "json"
	routerCfg.LogLevel = cfg.LogLevel

	server := &http.Server{
		Addr:              addr,
		Handler:           container.Router(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		container.Logger.Info("Listening", "addr", addr)
		serverErrCh <- server.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	container.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serverErrCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
