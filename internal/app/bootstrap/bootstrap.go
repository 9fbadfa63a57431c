package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"seoflood/app/internal/config"
	"seoflood/app/internal/data/database"
	"seoflood/app/internal/data/migrations"
	sitedata "seoflood/app/internal/data/site"
	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/keyword"
	"seoflood/app/internal/domain/page"
	"seoflood/app/internal/domain/session"
	"seoflood/app/internal/infrastructure/export"
	"seoflood/app/internal/infrastructure/llm/openai"
	"seoflood/app/internal/metrics"
	presentationhttp "seoflood/app/internal/presentation/http"
	"seoflood/app/internal/render"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	// Registry receives the service metrics. A fresh registry with process collectors is used when nil.
	Registry *prometheus.Registry
}

type Result struct {
	Sessions   session.Service
	HTTPServer *presentationhttp.Server
	Database   *gorm.DB
	Cleanup    func() error
}

// generative bundles the optional LLM collaborators.
type generative struct {
	copywriter page.Copywriter
	researcher keyword.Researcher
}

// Build composes the seoflood application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	cfg := deps.Config
	logger := deps.Logger

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	recorder := metrics.NewPrometheusRecorder(registry)

	db, err := database.Open(database.Options{Path: cfg.DBPath, Logger: logger})
	if err != nil {
		return Result{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := database.Close(db); closeErr != nil && logger != nil {
			logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if err := migrations.MigrateSites(ctx, db, logger); err != nil {
		return closeOnError(eris.Wrap(err, "running site migrations"))
	}

	repo, err := sitedata.NewRepository(db, logger, nil)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating site repository"))
	}

	gen, err := buildGenerative(cfg, logger)
	if err != nil {
		return closeOnError(err)
	}

	var synthesizer page.Synthesizer = page.NewTemplateSynthesizer(page.TemplateOptions{
		EnforceMetaLimits: cfg.EnforceMetaLimits,
	})
	if gen.copywriter != nil {
		synthesizer, err = page.NewCopywritingSynthesizer(page.CopywritingOptions{
			Base:       synthesizer,
			Copywriter: gen.copywriter,
			Logger:     logger,
			SentryHub:  deps.SentryHub,
			Metrics:    recorder,
		})
		if err != nil {
			return closeOnError(eris.Wrap(err, "creating copywriting synthesizer"))
		}
	}

	orchestrator, err := page.NewOrchestrator(page.OrchestratorOptions{
		Synthesizer: synthesizer,
		Logger:      logger,
		SentryHub:   deps.SentryHub,
		Metrics:     recorder,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating batch orchestrator"))
	}

	renderer := render.New()

	sink, err := export.NewDirectorySink(export.DirectorySinkOptions{Root: cfg.ExportDir, Logger: logger})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating export sink"))
	}

	manifest, err := export.NewManifestWriter(sink, nil)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating export manifest writer"))
	}

	exporter, err := delivery.NewExporter(delivery.ExporterOptions{
		Renderer:  renderer,
		Sink:      sink,
		NameFor:   export.NameFor,
		Manifest:  manifest,
		Stagger:   cfg.ExportStagger,
		Logger:    logger,
		SentryHub: deps.SentryHub,
		Metrics:   recorder,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating exporter"))
	}

	publisher, err := delivery.NewPublisher(delivery.PublisherOptions{
		Store:     repo,
		Renderer:  renderer,
		Logger:    logger,
		SentryHub: deps.SentryHub,
		Metrics:   recorder,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating publisher"))
	}

	defaults := page.DefaultSettings()
	defaults.PageCount = cfg.DefaultPageCount
	defaults.WordCount = cfg.DefaultWordCount

	sessions, err := session.NewService(session.Options{
		Orchestrator: orchestrator,
		Renderer:     renderer,
		Exporter:     exporter,
		Publisher:    publisher,
		Researcher:   gen.researcher,
		Defaults:     defaults,
		IdleTTL:      cfg.SessionTTL,
		Logger:       logger,
		SentryHub:    deps.SentryHub,
		Metrics:      recorder,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating session service"))
	}

	httpServer, err := presentationhttp.NewServer(presentationhttp.Options{
		Sessions:   sessions,
		Sites:      repo,
		Metrics:    metrics.HTTPHandler(registry),
		Logger:     logger,
		SentryHub:  deps.SentryHub,
		LLMEnabled: cfg.LLMEnabled(),
		RateLimiter: presentationhttp.RateLimiterSettings{
			Burst:             cfg.RateLimit.Burst,
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		sessions.Close()
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	cleanup := func() error {
		httpServer.Close()
		sessions.Close()
		return database.Close(db)
	}

	return Result{
		Sessions:   sessions,
		HTTPServer: httpServer,
		Database:   db,
		Cleanup:    cleanup,
	}, nil
}

// buildGenerative wires the LLM copywriter and researcher when an API key and model are configured.
func buildGenerative(cfg config.Config, logger *logrus.Logger) (generative, error) {
	if !cfg.LLMEnabled() {
		if logger != nil {
			logger.Info("LLM_API_KEY or LLM_MODELS not set, running template-only")
		}
		return generative{}, nil
	}

	client, err := openai.NewClient(openai.ClientOptions{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMEndpoint,
		Logger:  logger,
	})
	if err != nil {
		return generative{}, eris.Wrap(err, "creating llm client")
	}

	copyCompleter, err := openai.NewCompleter(openai.CompleterOptions{Client: client, Model: cfg.CopywriterModel()})
	if err != nil {
		return generative{}, eris.Wrap(err, "initialising copywriter completer")
	}

	researchCompleter, err := openai.NewCompleter(openai.CompleterOptions{Client: client, Model: cfg.ResearchModel()})
	if err != nil {
		return generative{}, eris.Wrap(err, "initialising research completer")
	}

	copywriter, err := openai.NewCopywriter(openai.CopywriterOptions{Completer: copyCompleter, Logger: logger})
	if err != nil {
		return generative{}, eris.Wrap(err, "initialising copywriter")
	}

	researcher, err := openai.NewResearcher(openai.ResearcherOptions{Completer: researchCompleter, Logger: logger})
	if err != nil {
		return generative{}, eris.Wrap(err, "initialising keyword researcher")
	}

	if logger != nil {
		logger.WithFields(logrus.Fields{
			"copywriter_model": cfg.CopywriterModel(),
			"research_model":   cfg.ResearchModel(),
			"base_url":         client.BaseURL(),
		}).Info("generative collaborator configured")
	}

	return generative{copywriter: copywriter, researcher: researcher}, nil
}
