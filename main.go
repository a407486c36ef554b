package main

import (
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"broker-pricing/internal/observability/logging"
	"broker-pricing/internal/observability/metrics"
	"broker-pricing/internal/pricing/application"
	pricing "broker-pricing/internal/pricing/domain"
	"broker-pricing/internal/pricing/infrastructure/excel"
	"broker-pricing/internal/pricing/infrastructure/memory"
	pricinghttp "broker-pricing/internal/pricing/interfaces/http"
)

func main() {
	_ = godotenv.Load()

	cfg, err := application.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	sessions := memory.NewSessionRepository()
	metrics.Init(sessions)

	calc, err := cfg.Calculator()
	if err != nil {
		logger.Fatal("tac calculator error", zap.Error(err))
	}
	resolver, err := cfg.Resolver()
	if err != nil {
		logger.Fatal("term resolver error", zap.Error(err))
	}
	defaults, ignored, err := pricing.NewUpliftSet(cfg.DefaultUplifts)
	if err != nil {
		logger.Fatal("default uplifts error", zap.Error(err))
	}
	for _, entry := range ignored {
		logger.Warn("default uplift ignored", zap.String("component", entry.Component))
	}

	service, err := application.NewService(
		sessions,
		excel.NewReader(logger),
		calc,
		resolver,
		application.WithLogger(logger),
		application.WithDefaultUplifts(defaults),
		application.WithDefaultSheet(cfg.DefaultSheet),
	)
	if err != nil {
		logger.Fatal("pricing service error", zap.Error(err))
	}
	pricingHandler, err := pricinghttp.NewHandler(service, excel.WriteBrokerWorkbook,
		pricinghttp.WithLogger(logger),
		pricinghttp.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	if err != nil {
		logger.Fatal("pricing handler error", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/pricing/sessions", pricingHandler)
	mux.Handle("/api/v1/pricing/sessions/", pricingHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("http listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("term_policy", string(cfg.TermPolicy)),
		zap.String("uplift_mode", string(cfg.UpliftMode)))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
