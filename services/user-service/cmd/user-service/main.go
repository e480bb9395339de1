package main

import (
	"context"
	"net/http"
	"time"

	"github.com/avdupont/shopmesh/libs/config"
	"github.com/avdupont/shopmesh/libs/httpx"
	"github.com/avdupont/shopmesh/libs/kafkax"
	otelx "github.com/avdupont/shopmesh/libs/otel"
	"github.com/avdupont/shopmesh/libs/runtime"
	"github.com/avdupont/shopmesh/services/user-service/internal/handlers"
	"github.com/avdupont/shopmesh/services/user-service/internal/outbox"
	"github.com/avdupont/shopmesh/services/user-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "user-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	repo := storage.NewMemoryRepository()
	queue := outbox.NewQueue(config.Int("OUTBOX_CAPACITY", 1024), logger)

	publisher := outbox.NewPublisher(queue, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: time.Duration(config.Int("OUTBOX_POLL_SECONDS", 2)) * time.Second,
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	httpHandler := handlers.New(logger, repo, queue)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/users", httpHandler.Users)
	mux.HandleFunc("/users/", httpHandler.UserByID)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "users")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
