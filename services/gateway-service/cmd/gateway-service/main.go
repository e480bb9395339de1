package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/avdupont/shopmesh/libs/config"
	"github.com/avdupont/shopmesh/libs/httpx"
	otelx "github.com/avdupont/shopmesh/libs/otel"
	"github.com/avdupont/shopmesh/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	mux := runtime.NewBaseMuxWithReady()
	registerRoutes(mux, logger)

	bodyLimit := int64(1 << 20) // 1MB
	if v := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20); v > 0 {
		bodyLimit = int64(v)
	}
	requestTimeout := 10 * time.Second
	if v := config.Int("REQUEST_TIMEOUT_SECONDS", 10); v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	limitPerMinute := 60
	if v := config.Int("RATE_LIMIT_PER_MINUTE", 60); v > 0 {
		limitPerMinute = v
	}

	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v := config.Int("REDIS_DB", 0); v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, "gateway")
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

func registerRoutes(mux *http.ServeMux, logger *slog.Logger) {
	userURL := config.String("USER_URL", "http://user-service:8081")
	productURL := config.String("PRODUCT_URL", "http://product-service:8082")
	orderURL := config.String("ORDER_URL", "http://order-service:8083")

	otelTransport := otelhttp.NewTransport(http.DefaultTransport)

	// /api/v1/users/... → user-service /users/... and so on; each upstream
	// keeps its own unprefixed paths.
	registerProxy(mux, "/api/v1/users", newProxy(logger, "user-service", userURL, otelTransport))
	registerProxy(mux, "/api/v1/products", newProxy(logger, "product-service", productURL, otelTransport))
	registerProxy(mux, "/api/v1/orders", newProxy(logger, "order-service", orderURL, otelTransport))

	client := &http.Client{
		Transport: otelTransport,
		Timeout:   5 * time.Second,
	}
	mux.HandleFunc("/api/v1/dashboard", dashboardHandler(logger, client, userURL, productURL))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			httpx.Error(w, http.StatusNotFound, "route not found")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"message": "api gateway up",
			"routes": map[string]any{
				"users":     []string{"GET /api/v1/users", "GET /api/v1/users/{id}", "POST /api/v1/users"},
				"products":  []string{"GET /api/v1/products", "GET /api/v1/products/{id}", "POST /api/v1/products"},
				"orders":    []string{"GET /api/v1/orders", "GET /api/v1/orders/{id}", "POST /api/v1/orders"},
				"dashboard": []string{"GET /api/v1/dashboard"},
			},
		})
	})
}

// newProxy strips the /api/v1 prefix and forwards to the upstream. A dead
// upstream surfaces as a 502 envelope naming the service, never as a partial
// or hung response.
func newProxy(logger *slog.Logger, upstream, rawURL string, transport http.RoundTripper) http.Handler {
	target := mustParseURL(rawURL)
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.Transport = transport
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream unreachable", "upstream", upstream, "err", err)
		httpx.ErrorDetail(w, http.StatusBadGateway, "cannot reach "+upstream, err.Error())
	}

	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.URL.Path = strings.TrimPrefix(r.URL.Path, "/api/v1")
	}
	return proxy
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
