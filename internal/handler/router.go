// Package handler provides the HTTP API of the Amethyst CDN.
package handler

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/amethyst-cdn/internal/auth"
	"github.com/prn-tf/amethyst-cdn/internal/config"
	"github.com/prn-tf/amethyst-cdn/internal/metrics"
	"github.com/prn-tf/amethyst-cdn/internal/service"
)

// Handler serves the CDN endpoints.
type Handler struct {
	identity        *service.IdentityService
	content         *service.ContentService
	delivery        *service.DeliveryService
	guard           *auth.Guard
	portal          config.PortalConfig
	maxBody         int64
	multipartMemory int64
	logger          zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	IdentityService *service.IdentityService
	ContentService  *service.ContentService
	DeliveryService *service.DeliveryService
	Guard           *auth.Guard
	Metrics         *metrics.Metrics

	Portal    config.PortalConfig
	Server    config.ServerConfig
	CORS      config.CORSConfig
	RateLimit bool

	Logger zerolog.Logger
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(cfg RouterConfig) http.Handler {
	h := &Handler{
		identity:        cfg.IdentityService,
		content:         cfg.ContentService,
		delivery:        cfg.DeliveryService,
		guard:           cfg.Guard,
		portal:          cfg.Portal,
		maxBody:         cfg.Server.MaxBodySize,
		multipartMemory: cfg.Server.MultipartMemory,
		logger:          cfg.Logger.With().Str("component", "router").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(accessLog)
	r.Use(recoverer)
	r.Use(cfg.Metrics.Middleware)

	if len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         300,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errMethodNotAllowed)
	})

	h.mount(r, cfg.RateLimit)

	return r
}

// accessLog logs one line per request.
func accessLog(next http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("ip", r.RemoteAddr).
			Msg("request")
	})(next)
}

// recoverer turns handler panics into 500 responses.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			hlog.FromRequest(r).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("path", r.URL.Path).
				Msg("handler panicked")
			writeError(w, r, errInternal)
		}()
		next.ServeHTTP(w, r)
	})
}
