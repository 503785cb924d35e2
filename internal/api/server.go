// Package api exposes profiles, searches, runs and the CRM export over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/profile-sync/internal/crm"
	"github.com/sells-group/profile-sync/internal/model"
	"github.com/sells-group/profile-sync/internal/runner"
	"github.com/sells-group/profile-sync/internal/store"
)

// Store is the persistence the handlers read and edit directly.
type Store interface {
	store.ProfileStore
	store.CampaignStore
}

// Runner starts background runs and reports their status.
type Runner interface {
	StartScrape(ctx context.Context, req runner.ScrapeRequest) (string, error)
	StartEnrich(ctx context.Context) (string, error)
	Status(ctx context.Context, id string) (*model.Run, error)
}

// Exporter sends profiles to the CRM.
type Exporter interface {
	Export(ctx context.Context, sel crm.Selection) (*crm.Result, error)
}

var (
	_ Runner   = (*runner.Service)(nil)
	_ Exporter = (*crm.Exporter)(nil)
)

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins. The default allows all.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// Server holds the handler dependencies.
type Server struct {
	store    Store
	runs     Runner
	exporter Exporter
	origins  []string
}

// NewServer creates a Server. exporter may be nil when Salesforce is not
// configured; the CRM endpoint then answers 503.
func NewServer(st Store, runs Runner, exporter Exporter, opts ...Option) *Server {
	s := &Server{store: st, runs: runs, exporter: exporter, origins: []string{"*"}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Origin", "X-Requested-With"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.handleListProfiles)
			r.Get("/export", s.handleExportProfiles)
			r.Get("/{id}", s.handleGetProfile)
			r.Delete("/{id}", s.handleDeleteProfile)
		})

		r.Post("/run-scraper", s.handleRunScraper)
		r.Post("/run-email-search", s.handleRunEmailSearch)
		r.Get("/runs/{id}", s.handleGetRun)

		r.Route("/searches", func(r chi.Router) {
			r.Get("/", s.handleListSearches)
			r.Post("/", s.handleCreateSearch)
			r.Get("/statistics", s.handleSearchStats)
			r.Get("/{id}", s.handleGetSearch)
			r.Put("/{id}", s.handleUpdateSearch)
			r.Delete("/{id}", s.handleDeleteSearch)
			r.Get("/{id}/profiles", s.handleSearchProfiles)
		})

		r.Post("/send-to-crm", s.handleSendToCRM)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
