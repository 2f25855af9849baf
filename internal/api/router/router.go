package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/gmx-sms-connector/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/gmx-sms-connector/internal/http/middleware"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Connector      *handlers.ConnectorHandler
	MetricsHandler http.Handler
	// APISecret enables bearer auth on /v1 when set.
	APISecret string
	// SendLimiter throttles POST /v1/messages and /v1/outbox when set.
	SendLimiter *httpmiddleware.SendLimiter
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Connector == nil {
		return r
	}
	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(httpmiddleware.APIJWT(cfg.APISecret))
		v1.Get("/connector", cfg.Connector.Status)
		v1.Post("/bootstrap", cfg.Connector.Bootstrap)
		v1.Post("/update", cfg.Connector.Update)
		v1.Post("/messages/length", cfg.Connector.Length)

		v1.Group(func(send chi.Router) {
			if cfg.SendLimiter != nil {
				send.Use(cfg.SendLimiter.Middleware)
			}
			send.Post("/messages", cfg.Connector.Send)
			send.Post("/outbox", cfg.Connector.Enqueue)
		})
	})
	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
