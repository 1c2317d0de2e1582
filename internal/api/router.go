package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/qualmom/internal/api/handlers"
	"github.com/wonny/qualmom/pkg/logger"
)

// Pinger checks a backing store (database.DB)
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the route handlers. Scheduler and DB may be nil.
type Handlers struct {
	Rebalance *handlers.RebalanceHandler
	Strategy  *handlers.StrategyHandler
	Scheduler *handlers.SchedulerHandler
	DB        Pinger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(h.DB)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Rebalance endpoints
	api.HandleFunc("/rebalance/latest", h.Rebalance.GetLatest).Methods("GET")
	api.HandleFunc("/rebalance/cycles", h.Rebalance.ListCycles).Methods("GET")
	api.HandleFunc("/rebalance/weights", h.Rebalance.GetWeights).Methods("GET")

	// Strategy
	api.HandleFunc("/strategy", h.Strategy.GetStrategy).Methods("GET")

	// Scheduler (스케줄러와 같은 프로세스에서만)
	if h.Scheduler != nil {
		api.HandleFunc("/scheduler/jobs", h.Scheduler.GetJobs).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		body := map[string]interface{}{
			"service": "qualmom-api",
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				status, code = "degraded", http.StatusServiceUnavailable
				body["database"] = err.Error()
			} else {
				body["database"] = "ok"
			}
		}
		body["status"] = status

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
