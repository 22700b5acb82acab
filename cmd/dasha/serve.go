package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/okian/dasha/internal/adapters/http/api"
	"github.com/okian/dasha/internal/adapters/http/swagger"
	"github.com/okian/dasha/internal/config"
	"github.com/okian/dasha/pkg/logger"
	"github.com/okian/dasha/pkg/tracing"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the timeline API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				c.cfg.Addr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides config addr)")
	return cmd
}

func (c *cli) serve(ctx context.Context) error {
	log := c.log
	cfg := c.cfg

	shutdownTracing, err := tracing.Setup(ctx, "dasha", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn(sctx, "tracing shutdown failed", logger.Error(err))
		}
	}()

	svc, err := c.newService(ctx)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	if c.configPath != "" {
		werr := config.Watch(ctx, c.configPath, func(next *config.Config, err error) {
			if err != nil {
				log.Warn(ctx, "config reload failed", logger.Error(err))
				return
			}
			if err := logger.SetLevelString(next.LogLevel); err != nil {
				log.Warn(ctx, "invalid log_level on reload", logger.String("log_level", next.LogLevel))
				return
			}
			log.Info(ctx, "config reloaded", logger.String("log_level", next.LogLevel))
		})
		if werr != nil {
			log.Warn(ctx, "config watch disabled", logger.Error(werr))
		}
	}

	r := chi.NewRouter()
	api.NewServer(svc, svc, api.WithLogger(log.Named("api"))).Register(r)
	swagger.Register(r)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	log.Info(ctx, "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error(sctx, "HTTP server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(sctx); err != nil {
		log.Error(sctx, "service stop failed", logger.Error(err))
	}
	return serveErr
}
