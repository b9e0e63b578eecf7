package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"designsense-go/internal/config"
	"designsense-go/internal/database"
	"designsense-go/internal/events"
	logger "designsense-go/internal/logging"
	"designsense-go/internal/metrics"
	"designsense-go/internal/repository"
	"designsense-go/internal/router"
	"designsense-go/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}
}

func runServe(f *rootFlags) error {
	loader, conf, log, level, err := bootstrap(f)
	if err != nil {
		return err
	}
	defer log.Sync()

	loader.Watch(log, func(next *config.Config) {
		if err := logger.SetLevel(level, next.Logging.Level); err != nil {
			log.Warn("Ignoring invalid log level", zap.String("level", next.Logging.Level), zap.Error(err))
			return
		}
		log.Info("Log level updated", zap.String("level", level.String()))
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(ctx, conf.Database, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := pool.Close(closeCtx); err != nil {
			log.Warn("Error closing database", zap.Error(err))
		}
	}()

	m := metrics.New()

	publisher, err := events.NewPublisher(conf.Events, log, m)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if err := publisher.Close(closeCtx); err != nil {
			log.Warn("Error flushing attempt events", zap.Error(err))
		}
	}()

	store := pool.Store()
	bank := repository.NewCachedBank(store, conf.Cache.TTL, m)
	services.NewBankWarmer(log, bank, conf.Cache.TTL).Start(ctx)

	svc := services.NewSubmissionService(services.SubmissionDeps{
		Bank:      bank,
		Catalog:   store,
		Attempts:  store,
		Publisher: publisher,
		Recorder:  m,
		Log:       log,
	})

	gin.SetMode(gin.ReleaseMode)
	r := router.Setup(log, conf.Server, router.Deps{DesignTest: svc, DB: pool, Metrics: m})

	srv := &http.Server{Addr: ":" + conf.Server.Port, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr), zap.String("driver", pool.Driver()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("Failed to run server", zap.Error(err))
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown failed", zap.Error(err))
	}
	return nil
}
