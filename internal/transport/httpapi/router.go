package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"trackme/realtime/internal/config"
	"trackme/realtime/internal/metrics"
)

// Pinger is anything the health check can reach out and touch.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter wires the service's HTTP surface: the websocket endpoint
// (optionally behind API-key auth), health, and metrics.
func NewRouter(cfg *config.Config, wsHandler http.Handler, authMW *AuthMiddleware, stores ...Pinger) *mux.Router {
	router := mux.NewRouter()

	if cfg.AuthRequired {
		wsHandler = authMW.Wrap(wsHandler)
	}
	router.Handle("/ws", wsHandler).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		for _, s := range stores {
			if err := s.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("store unreachable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.HandleFunc("/metrics", metrics.HandleMetrics).Methods("GET")

	return router
}
