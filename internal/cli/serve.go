package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/goliatone/go-formengine/internal/config"
	"github.com/goliatone/go-formengine/internal/logging"
)

func cmdServe() *cli.Command {
	var configPath string
	var addr string

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP form server",
		Flags: []cli.Flag{
			configFlag(&configPath),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "HTTP server address (overrides the config file)",
				Sources:     cli.EnvVars("FORMENGINE_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logging.Default().Info("Loaded configuration", "config", cfg)

			eng, err := newEngine(ctx, cfg, nil)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize form engine")
			}
			defer func() {
				if err := eng.Close(); err != nil {
					logging.Default().Error("failed to close storage", "error", err.Error())
				}
			}()

			server := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           eng.handler(),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", cfg.Server.Addr, "forms", eng.orch.Forms())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)
			case <-ctx.Done():
				logging.Default().Info("Context cancelled, shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}
			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}
