package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/handler"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/auth"
	"github.com/honeynil/KudosClassroom/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(h *handler.Handler, issuer *auth.TokenIssuer, cfg *config.Config) http.Handler {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(auth.Authenticate(issuer))

	limiter := NewRateLimiter(cfg.Limits.LoginPerSecond, cfg.Limits.LoginBurst)
	r.Use(limiter.Limit("/login", "/refresh_token"))

	h.RegisterPublicRoutes(r)
	h.RegisterProtectedRoutes(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return cors(cfg.CORSOrigin)(r)
}

// metricsMiddleware labels requests with the route template so that path ids
// do not explode the label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		// Записываем ответ для получения статуса
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)
		if recorder.status == 0 {
			recorder.status = http.StatusOK
		}

		status := fmt.Sprintf("%d", recorder.status)
		observability.HTTPRequests.WithLabelValues(r.Method, endpoint, status).Inc()
		observability.HTTPDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// cors answers preflight requests itself, before routing, because the routes
// only accept their own methods.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := origin
			// credentials cannot be combined with a wildcard origin
			if allowed == "*" && r.Header.Get("Origin") != "" {
				allowed = r.Header.Get("Origin")
			}
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "OPTIONS, GET, POST, PUT, PATCH, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if allowed != "*" {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder для захвата статуса ответа
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
