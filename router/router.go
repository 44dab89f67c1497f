package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mallardmetrics/config"
	"github.com/tomtom215/mallardmetrics/handler"
	gwmw "github.com/tomtom215/mallardmetrics/middleware"
)

// statsTimeout bounds every analytical query endpoint.
const statsTimeout = 30 * time.Second

// New builds the chi router with the full middleware chain and every
// route from spec §6: CORS → security headers → request ID → recover →
// request logger → max body size. Per-site rate limiting happens inside
// eventHandler's orchestrator, against the parsed body's site_id, not
// here.
func New(cfg *config.Config, appLogger zerolog.Logger, eventHandler *handler.EventHandler, statsHandler *handler.StatsHandler, metricsHandler http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	r.Use(gwmw.CORS(cfg.AllowedOrigins))
	r.Use(gwmw.SecurityHeaders)
	r.Use(gwmw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mwRequestLogger(appLogger))

	r.Get("/healthz", handler.Healthz)
	if metricsHandler != nil {
		r.Get("/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(mwMaxBodySize(cfg.MaxBodyBytes))

		r.Post("/event", eventHandler.Track)

		r.Route("/stats", func(r chi.Router) {
			r.Use(gwmw.Timeout(statsTimeout))
			r.Get("/main", statsHandler.Main)
			r.Get("/breakdown", statsHandler.Breakdown)
			r.Get("/timeseries", statsHandler.Timeseries)
			r.Get("/flow", statsHandler.Flow)
			r.Get("/sessions", statsHandler.Sessions)
			r.Get("/funnel", statsHandler.Funnel)
			r.Get("/retention", statsHandler.Retention)
			r.Get("/sequences", statsHandler.Sequences)
			r.Get("/export", statsHandler.Export)
		})
	})

	return r
}

func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 64 * 1024
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 && r.ContentLength > maxBytes {
				http.Error(w, `{"error":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			reqID := chimw.GetReqID(r.Context())
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", reqID).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
