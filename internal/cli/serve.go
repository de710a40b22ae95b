package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"deepsite_server/internal/api"
	"deepsite_server/internal/logger"
	"deepsite_server/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	// The server logs to stdout like any long-running service.
	a.logger = logger.Init(a.cfg.LogLevel, a.cfg.LogFormat)

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	store := a.store()
	broker := api.NewBroker()
	defer broker.Close()

	handler := api.NewAPIHandler(api.Deps{
		Generator:         a.generator(),
		Store:             store,
		Sessions:          session.NewManager(a.sessionDefaults()),
		Deployers:         a.deployers(),
		Broker:            broker,
		DefaultAPIKey:     a.cfg.OpenRouterAPIKey,
		GenerationTimeout: a.cfg.GenerationTimeout,
		Logger:            a.logger,
	})

	server := &http.Server{
		Addr:    a.cfg.ServerAddress,
		Handler: api.NewRouter(handler, a.cfg.AllowedOrigins()),
		// Set timeouts to prevent slow client attacks
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := store.Watch(gCtx, broker.PublishProjectChange); err != nil {
			a.logger.Warn("project watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		a.logger.Info("starting API server", slog.String("address", a.cfg.ServerAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		broker.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("API server forced shutdown", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("server stopped with error", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
