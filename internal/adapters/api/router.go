package api

import (
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/floroz/gavel-live/pkg/auth"
)

// RouterConfig collects everything the HTTP surface is built from
type RouterConfig struct {
	REST           *Handler
	Clock          *ClockServiceHandler
	History        *BidHistoryServiceHandler
	Live           http.Handler // websocket endpoint, mounted at /ws
	Validator      auth.TokenValidator
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the service's HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Connect-Protocol-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.NotFound(notFound)

	r.Get("/health", cfg.REST.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/items", cfg.REST.listItems)
		r.Get("/items/server-time", cfg.REST.serverTime)
		r.Get("/items/{id}", cfg.REST.getItem)
		r.With(auth.RequireUser(cfg.Validator)).Get("/bids/my", cfg.REST.myBids)
	})

	if cfg.Clock != nil {
		path, handler := cfg.Clock.Mount()
		r.Mount(path, handler)
	}
	if cfg.History != nil {
		path, handler := cfg.History.Mount(connect.WithInterceptors(auth.NewAuthInterceptor(cfg.Validator)))
		r.Mount(path, handler)
	}
	if cfg.Live != nil {
		r.Handle("/ws", cfg.Live)
	}

	return r
}

// requestLogger logs one line per request. Websocket upgrades are logged when
// the connection closes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
