// Package server exposes the artist registry over HTTP.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/artists-registry/internal/enhance"
	"github.com/joseph-ayodele/artists-registry/internal/entity"
	"github.com/joseph-ayodele/artists-registry/internal/extract"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
	"github.com/joseph-ayodele/artists-registry/internal/repository"
	"github.com/joseph-ayodele/artists-registry/internal/services/artists"
)

// ArtistService is the slice of the artists service the handlers use.
type ArtistService interface {
	Upload(ctx context.Context, in artists.UploadInput) (*entity.Artist, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Artist, error)
	List(ctx context.Context, f artists.ListFilter) (artists.Page[*entity.Artist], error)
	ListPublic(ctx context.Context, search string, page, limit int) (artists.Page[entity.PublicArtist], error)
	Update(ctx context.Context, id uuid.UUID, in artists.UpdateInput) (*entity.Artist, error)
	Verify(ctx context.Context, id uuid.UUID, by string) (*entity.Artist, error)
	Reprocess(ctx context.Context, id uuid.UUID) (*entity.Artist, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (artists.Stats, error)
	ExtractOnce(ctx context.Context, filename string, r io.Reader) (extract.ExtractionResult, error)
}

type Exporter interface {
	ExportArtistsXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error)
}

// Enhancer backs the on-demand AI endpoints used while an operator edits a
// profile.
type Enhancer interface {
	Enhance(ctx context.Context, raw string, fields normalize.Fields) (enhance.Enhanced, error)
	EnhanceField(ctx context.Context, field, value string, hints map[string]string) (enhance.FieldResult, error)
	Summarize(ctx context.Context, in enhance.SummaryInput) (enhance.Summary, error)
	Comprehensive(ctx context.Context, raw string, fields normalize.Fields) (enhance.Profile, error)
	ProviderStatus() []enhance.ProviderStatus
}

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

// Instrumenter wraps the router with request metrics and serves them.
type Instrumenter interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

type Server struct {
	artists   ArtistService
	exporter  Exporter
	enhancer  Enhancer
	health    HealthFunc
	metrics   Instrumenter
	maxUpload int64
	logger    *slog.Logger
}

type Option func(*Server)

func WithExporter(e Exporter) Option { return func(s *Server) { s.exporter = e } }

func WithEnhancer(e Enhancer) Option { return func(s *Server) { s.enhancer = e } }

func WithHealth(h HealthFunc) Option { return func(s *Server) { s.health = h } }

func WithMetrics(m Instrumenter) Option { return func(s *Server) { s.metrics = m } }

// WithMaxUploadBytes bounds multipart bodies; the service enforces the
// exact document limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

func New(svc ArtistService, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{artists: svc, maxUpload: 10 << 20, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.extractOnce)
		r.Get("/enhance/providers", s.enhanceProviders)
		r.Route("/artists", func(r chi.Router) {
			r.Post("/upload", s.uploadArtist)
			r.Get("/", s.listArtists)
			r.Get("/public", s.listPublicArtists)
			r.Get("/stats", s.artistStats)
			r.Get("/export.xlsx", s.exportArtists)
			r.Post("/enhance-field", s.enhanceField)
			r.Post("/enhance-all", s.enhanceAll)
			r.Post("/generate-summary", s.generateSummary)
			r.Post("/comprehensive-details", s.comprehensiveDetails)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getArtist)
				r.Put("/", s.updateArtist)
				r.Delete("/", s.deleteArtist)
				r.Post("/verify", s.verifyArtist)
				r.Post("/reprocess", s.reprocessArtist)
			})
		})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log(r).Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
