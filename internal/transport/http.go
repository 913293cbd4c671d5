package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/batikstore/backend/internal/config"
	"github.com/batikstore/backend/internal/handler"
)

// NewRouter assembles the HTTP surface: standard chi middleware, prometheus
// instrumentation, the domain handlers, a health probe and the metrics
// endpoint.
func NewRouter(orders *handler.OrderHandler, payments *handler.PaymentHandler, products *handler.ProductHandler, settings *handler.SettingsHandler) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(prometheusMiddleware)

	orders.RegisterRoutes(router)
	payments.RegisterRoutes(router)
	products.RegisterRoutes(router)
	settings.RegisterRoutes(router)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// NewServer wraps the router in an http.Server with the configured timeouts.
func NewServer(cfg config.AppConfig, router chi.Router) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
}
