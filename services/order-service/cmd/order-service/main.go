package main

import (
	"context"
	"net/http"
	"time"

	"github.com/avdupont/shopmesh/libs/config"
	"github.com/avdupont/shopmesh/libs/events"
	"github.com/avdupont/shopmesh/libs/httpx"
	"github.com/avdupont/shopmesh/libs/kafkax"
	otelx "github.com/avdupont/shopmesh/libs/otel"
	"github.com/avdupont/shopmesh/libs/runtime"
	"github.com/avdupont/shopmesh/services/order-service/internal/consumer"
	"github.com/avdupont/shopmesh/services/order-service/internal/handlers"
	"github.com/avdupont/shopmesh/services/order-service/internal/inbox"
	"github.com/avdupont/shopmesh/services/order-service/internal/replica"
	"github.com/avdupont/shopmesh/services/order-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "order-service")
	port, err := config.Port("PORT", "8083")
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
	cache := replica.NewCache()

	eventConsumer := consumer.New(logger, inbox.NewRecorder(), consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "order-service"),
		Topic:   config.String("KAFKA_CONSUME_TOPIC", events.TopicUserCreated),
	}, consumer.UserCreatedHandler(logger, cache))
	go eventConsumer.Run(ctx)

	httpHandler := handlers.New(logger, repo, cache)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/orders", httpHandler.Orders)
	mux.HandleFunc("/orders/", httpHandler.OrderByID)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "orders")
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
