package main

import (
	"context"
	"net/http"
	"time"

	"github.com/avdupont/shopmesh/libs/config"
	"github.com/avdupont/shopmesh/libs/httpx"
	otelx "github.com/avdupont/shopmesh/libs/otel"
	"github.com/avdupont/shopmesh/libs/runtime"
	"github.com/avdupont/shopmesh/services/product-service/internal/handlers"
	"github.com/avdupont/shopmesh/services/product-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "product-service")
	port, err := config.Port("PORT", "8082")
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
	httpHandler := handlers.New(logger, repo)

	mux := runtime.NewBaseMuxWithReady()
	mux.HandleFunc("/products", httpHandler.Products)
	mux.HandleFunc("/products/", httpHandler.ProductByID)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "products")
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
