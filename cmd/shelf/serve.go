package main

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
	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/shelf/internal/api"
	"github.com/phrazzld/shelf/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, replaying queue records left by a previous run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, g.config, g.logger)
			if err != nil {
				return err
			}
			if g.loader.Watch(app.settings, g.logger) {
				g.logger.Info("watching config file for library settings")
			}
			return app.serve(ctx)
		},
	}
}

// serve runs the HTTP server and queue recovery until ctx is done, then
// shuts the server down and drains the queue.
func (app *application) serve(ctx context.Context) error {
	library, err := service.NewLibraryService(app.queue, app.logger)
	if err != nil {
		return err
	}
	router := api.NewRouter(api.RouterDeps{
		Library:  api.NewLibraryHandler(library),
		Queue:    api.NewQueueHandler(app.queue, app.settings),
		Gatherer: app.registry,
		Logger:   app.logger,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats := <-app.queue.RecoverAsync(gctx)
		if stats.Resubmitted > 0 || stats.Malformed > 0 {
			app.logger.Info("replayed queue records from previous run",
				"resubmitted", stats.Resubmitted,
				"dropped", stats.Dropped,
				"malformed", stats.Malformed)
		}
		return nil
	})

	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	serveErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.close(closeCtx); err != nil {
		app.logger.Error("shutdown incomplete", "error", err)
		return errors.Join(serveErr, err)
	}
	app.logger.Info("server shutdown completed")
	return serveErr
}
