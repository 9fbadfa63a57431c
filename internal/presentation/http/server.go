package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	sitedata "seoflood/app/internal/data/site"
	"seoflood/app/internal/domain/session"
)

// SiteDirectory reads back published sites.
type SiteDirectory interface {
	ListSites(ctx context.Context, ownerID string) ([]sitedata.Site, error)
	ListPages(ctx context.Context, siteID string) ([]sitedata.Page, error)
	Ping(ctx context.Context) error
}

// Options configures the HTTP server wiring.
type Options struct {
	Sessions session.Service
	Sites    SiteDirectory
	// Metrics is served on /metrics when set.
	Metrics     stdhttp.Handler
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimiter RateLimiterSettings
	// LLMEnabled is reported by the health check.
	LLMEnabled bool
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the JSON API via Huma.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	sessions    session.Service
	sites       SiteDirectory
	logger      *logrus.Logger
	sentry      *sentry.Hub
	rateLimiter *RateLimiter
	llmEnabled  bool
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, eris.New("session service is required")
	}
	if opts.Sites == nil {
		return nil, eris.New("site directory is required")
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("seoflood", "1.0.0")
	config.Info.Description = "Keyword expansion, landing page generation and batch delivery."

	srv := &Server{
		api:         humago.New(mux, config),
		mux:         mux,
		sessions:    opts.Sessions,
		sites:       opts.Sites,
		logger:      opts.Logger,
		sentry:      opts.SentryHub,
		rateLimiter: NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL),
		llmEnabled:  opts.LLMEnabled,
	}

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerSessionRoutes()
	s.registerKeywordRoutes()
	s.registerBatchRoutes()
	s.registerSiteRoutes()
	s.registerHealthRoute()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}
