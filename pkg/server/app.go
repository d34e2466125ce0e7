package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TickFuse/internal/usecase"
	pkgch "TickFuse/pkg/clickhouse"
	"TickFuse/pkg/config"
	xhttp "TickFuse/pkg/http"
	pkgkafka "TickFuse/pkg/kafka"
	applogger "TickFuse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Handlers groups the HTTP surfaces registered on the server.
type Handlers struct {
	Engine xhttp.Handler
	Stream xhttp.Handler
}

// RegisterRoutes registers every non-nil handler.
func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	if h.Engine != nil {
		h.Engine.RegisterRoutes(e)
	}
	if h.Stream != nil {
		h.Stream.RegisterRoutes(e)
	}
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engine     *usecase.Engine
	handlers   *Handlers
	consumer   *pkgkafka.Consumer
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.Engine,
	handlers *Handlers,
	consumer *pkgkafka.Consumer,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		handlers: handlers,
		consumer: consumer,
		chClient: chClient,
		producer: producer,
	}
}

// Run starts the engine and HTTP server and blocks until interrupted or
// the engine hits a fatal error.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.engine.Start(ctx); err != nil {
		a.log.Error("engine start failed", applogger.Error(err))
		return err
	}
	a.log.Info("engine started",
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.String("environment", a.cfg.Environment),
	)

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka mirror consumer started", applogger.String("topic", a.cfg.Kafka.Topic))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithLogger(a.log),
	}
	if a.cfg.Server.Host != "" {
		opts = append(opts, xhttp.WithHost(a.cfg.Server.Host))
	}
	if a.cfg.Server.SlowRequest > 0 {
		opts = append(opts, xhttp.WithSlowRequest(a.cfg.Server.SlowRequest))
	}
	a.httpServer = xhttp.NewServer(a.handlers, opts...)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// watch for engine fatal errors alongside shutdown signals
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var runErr error
	for runErr == nil {
		select {
		case <-sigCh:
			a.log.Info("shutdown signal received")
			return a.shutdown(ctx)
		case <-ticker.C:
			if err := a.engine.Err(); err != nil {
				a.log.Error("engine fatal error", applogger.Error(err))
				runErr = err
			}
		}
	}
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("shutdown error", applogger.Error(err))
	}
	return runErr
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
