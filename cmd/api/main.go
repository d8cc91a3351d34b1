package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/ewaste-funnel/internal/auth"
	"github.com/joao-fontenele/ewaste-funnel/internal/config"
	"github.com/joao-fontenele/ewaste-funnel/internal/database"
	"github.com/joao-fontenele/ewaste-funnel/internal/directory"
	"github.com/joao-fontenele/ewaste-funnel/internal/messaging"
	"github.com/joao-fontenele/ewaste-funnel/internal/orders"
	"github.com/joao-fontenele/ewaste-funnel/internal/payfast"
	"github.com/joao-fontenele/ewaste-funnel/internal/posts"
	"github.com/joao-fontenele/ewaste-funnel/internal/telemetry"
)

const (
	serviceName    = "ewaste-api"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(serviceName, serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	instruments, err := telemetry.NewInstruments()
	if err != nil {
		logger.Error("failed to create instruments", "error", err)
		os.Exit(1)
	}

	connector := database.NewConnector(cfg.DatabaseURL, database.WithOpener(telemetry.OpenDB))
	defer func() { _ = connector.Close() }()

	var publisher orders.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := messaging.NewProducer(cfg.KafkaBrokers, cfg.OrderTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer
	} else {
		logger.Warn("KAFKA_BROKERS is empty, order notifications are disabled")
	}

	orderRepo := orders.NewOrderRepository(connector)
	ordersHandler := orders.NewHandler(orderRepo, publisher, instruments, logger)
	payfastHandler := payfast.NewHandler(orderRepo, publisher, cfg.PayFastPassphrase, instruments, logger)
	postsHandler := posts.NewHandler(posts.NewPostRepository(connector), logger)
	directoryHandler := directory.NewHandler(directory.NewEntryRepository(connector), logger)

	verifier := auth.NewJWTVerifier(cfg.AdminTokenSecret, cfg.AdminTokenIssuer, cfg.AdminTokenAudience)
	guard := auth.NewGuard(verifier, cfg.AdminEmails, logger)

	admin := func(h http.HandlerFunc) http.HandlerFunc { return telemetry.WithHTTPRoute(guard.Require(h)) }

	mux := http.NewServeMux()
	mux.HandleFunc("POST /pickup", telemetry.WithHTTPRoute(ordersHandler.HandlePickup))
	mux.HandleFunc("POST /quote", telemetry.WithHTTPRoute(ordersHandler.HandleQuote))
	mux.HandleFunc("POST /payfast/itn", telemetry.WithHTTPRoute(payfastHandler.HandleITN))
	mux.HandleFunc("GET /orders", admin(ordersHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", admin(ordersHandler.HandleGet))
	mux.HandleFunc("PATCH /orders/{id}", admin(ordersHandler.HandleUpdateStatus))
	mux.HandleFunc("GET /posts", telemetry.WithHTTPRoute(postsHandler.HandleList))
	mux.HandleFunc("POST /posts", admin(postsHandler.HandleCreate))
	mux.HandleFunc("GET /directory", telemetry.WithHTTPRoute(directoryHandler.HandleList))
	mux.HandleFunc("POST /directory", admin(directoryHandler.HandleCreate))
	mux.HandleFunc("GET /healthz", database.HealthHandler(connector))
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
			otelhttp.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting api", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
