// Package api exposes the registry lookup over HTTP.
//
// Routes:
//
//	GET /healthz                                  → liveness
//	GET /api/v1/certificates?q=&brand=&page=&page_size= → paginated search
//	GET /api/v1/certificates/{number}             → latest record, 404 when unknown
//	GET /api/v1/certificates/{number}/validation  → autofill, 422 when expired
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/logging"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/lookup"
	"github.com/Cemag-pcp/projeto-epi-sub000/internal/registry"
)

// Lookup is the read side the handlers need.
type Lookup interface {
	ByNumber(ctx context.Context, number string) (registry.Record, error)
	Search(ctx context.Context, q lookup.Query) (lookup.Page, error)
	Validate(ctx context.Context, number string, now time.Time) (lookup.Autofill, error)
}

// Config controls server startup.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server wraps http.Server with the lookup routes.
type Server struct {
	cfg    Config
	router chi.Router
	lookup Lookup
	log    zerolog.Logger
	now    func() time.Time
}

// NewServer builds the router.
func NewServer(cfg Config, l Lookup, log zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		lookup: l,
		log:    logging.Component(log, "api"),
		now:    time.Now,
	}
	s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1/certificates", func(r chi.Router) {
		r.Get("/", s.handleSearch)
		r.Get("/{number}", s.handleGet)
		r.Get("/{number}/validation", s.handleValidate)
	})
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}
