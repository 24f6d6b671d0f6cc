// Package api exposes the basis tracker over HTTP: facility search,
// report submission, aggregated trends, and saved facilities.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grainstats/basis-tracker/internal/basis"
	"github.com/grainstats/basis-tracker/internal/store"
	"github.com/grainstats/basis-tracker/pkg/geocode"
)

// Server wires the aggregation service, store, and geocoder into an
// HTTP router.
type Server struct {
	svc       *basis.Service
	store     store.Store
	geocoder  geocode.Client
	startedAt time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithGeocoder enables the /api/v1/geocode endpoint.
func WithGeocoder(c geocode.Client) ServerOption {
	return func(s *Server) { s.geocoder = c }
}

// NewServer builds the HTTP server.
func NewServer(svc *basis.Service, st store.Store, opts ...ServerOption) *Server {
	s := &Server{
		svc:       svc,
		store:     st,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/zips/{zip}", s.handleZipLookup)
		r.Get("/geocode", s.handleGeocode)

		r.Route("/facilities", func(r chi.Router) {
			r.Get("/nearby", s.handleNearby)
			r.Post("/", s.handleCreateFacility)
			r.Get("/{id}", s.handleGetFacility)
			r.Get("/{id}/basis", s.handleCurrentBasis)
			r.Get("/{id}/trend", s.handleTrend)
			r.Get("/{id}/stats", s.handleStats)
			r.Get("/{id}/summary", s.handleSummary)
		})

		r.Post("/reports", s.handleSubmitReport)

		r.Route("/users/{userID}/saved-facilities", func(r chi.Router) {
			r.Get("/", s.handleListSaved)
			r.Post("/", s.handleSaveFacility)
		})
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return eris.Wrap(err, "api: shutdown")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "api: listen")
		}
		return nil
	}
}

// requestLogger logs each request with method, path, status, and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)))
	})
}
