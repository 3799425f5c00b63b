package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "RateSync/internal/domain/repository"
	"RateSync/internal/usecase"
	"RateSync/pkg/config"
	xhttp "RateSync/pkg/http"
	applogger "RateSync/pkg/logger"
	"RateSync/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	store       drepo.RateStore
	publisher   drepo.Publisher
	refresher   *usecase.Refresher
	collector   *usecase.QuoteCollector
	jobQueue    *queue.RedisQueue
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	store drepo.RateStore,
	publisher drepo.Publisher,
	refresher *usecase.Refresher,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		publisher:   publisher,
		refresher:   refresher,
		httpHandler: handler,
	}
}

// SetQuoteCollector wires the optional live quote collector.
func (a *App) SetQuoteCollector(c *usecase.QuoteCollector) { a.collector = c }

// SetJobQueue wires the optional background job queue.
func (a *App) SetJobQueue(q *queue.RedisQueue) { a.jobQueue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Scheduled refresh keeps the trailing window warm.
	go a.refresher.Run(ctx)
	a.logger.Info("refresher started",
		applogger.Strings("currencies", a.cfg.Sync.Currencies),
	)

	// Live quotes are optional; historical sync works without them.
	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Warn("quote collector start failed", applogger.Error(err))
		} else {
			a.logger.Info("quote collector started",
				applogger.String("url", a.cfg.Quotes.WebSocketURL),
			)
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Start(); err != nil {
			a.logger.Warn("job queue start failed", applogger.Error(err))
		} else {
			a.logger.Info("job queue started")
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("quote collector stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("publisher close error", applogger.Error(err))
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
