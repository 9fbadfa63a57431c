package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/page"
	"seoflood/app/internal/metrics"
)

// SiteStatusPublished is the status given to sites created by a publish.
const SiteStatusPublished = "published"

// SiteInput is the site-level record written before any pages.
type SiteInput struct {
	OwnerID          string
	Name             string
	Category         string
	Status           string
	AvailableForRent bool
}

// PageInput is one rendered page handed to persistence.
type PageInput struct {
	Title           string
	Slug            string
	Content         string
	TargetKeyword   string
	MetaTitle       string
	MetaDescription string
	SchemaMarkup    *page.LocalBusiness
	RedirectToMain  bool
	Status          page.Status
}

// Persistence is the external record store a batch is published to.
type Persistence interface {
	CreateSite(ctx context.Context, site SiteInput) (string, error)
	CreatePages(ctx context.Context, siteID string, pages []PageInput) error
	DeleteSite(ctx context.Context, siteID string) error
}

// PublishRequest carries the caller-supplied parts of the site record.
type PublishRequest struct {
	OwnerID          string
	AvailableForRent bool
}

// PublishResult describes a successful publish.
type PublishResult struct {
	SiteID string `json:"siteId"`
	Pages  int    `json:"pages"`
}

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Store     Persistence
	Renderer  Renderer
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	Metrics   metrics.Recorder
	Now       func() time.Time
}

// Publisher persists a batch as one site plus its pages.
type Publisher struct {
	store     Persistence
	renderer  Renderer
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewPublisher validates options.
func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.Store == nil {
		return nil, eris.New("persistence store is required")
	}
	if opts.Renderer == nil {
		return nil, eris.New("renderer is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Publisher{
		store:     opts.Store,
		renderer:  opts.Renderer,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		metrics:   metrics.OrNoop(opts.Metrics),
		now:       now,
	}, nil
}

// SiteName derives the site record name from the generation context.
func SiteName(gen page.GenerationContext) string {
	name := strings.TrimSpace(gen.MainKeyword)
	if loc := strings.TrimSpace(gen.Location); loc != "" {
		name += " - " + loc
	}
	return name
}

// Publish writes the site, then its pages. When the page write fails the site is deleted
// again so a retry starts from a clean state. The batch is marked published only after
// both writes succeed; every write failure is reported as ErrPublishFailed.
func (p *Publisher) Publish(ctx context.Context, batch *page.Batch, req PublishRequest) (*PublishResult, error) {
	started := p.now()

	if err := validateBatch(batch); err != nil {
		return nil, eris.Wrapf(ErrPublishFailed, "validating batch: %v", err)
	}
	if batch.Published() {
		return nil, eris.Wrapf(ErrAlreadyPublished, "batch %s", batch.ID)
	}

	fields := logrus.Fields{"batch_id": batch.ID, "pages": batch.Len()}

	category := strings.TrimSpace(batch.Settings.Category)
	if category == "" {
		category = strings.TrimSpace(batch.Context.Category)
	}

	pages := make([]PageInput, 0, batch.Len())
	for _, record := range batch.Pages {
		pages = append(pages, PageInput{
			Title:           record.Title,
			Slug:            record.Slug,
			Content:         p.renderer.Render(record, batch.Settings, batch.Context),
			TargetKeyword:   record.Keyword,
			MetaTitle:       record.MetaTitle,
			MetaDescription: record.MetaDescription,
			SchemaMarkup:    record.SchemaMarkup,
			RedirectToMain:  batch.Settings.RedirectEnabled(),
			Status:          page.StatusPublished,
		})
	}

	if err := ctx.Err(); err != nil {
		p.metrics.ObservePublish(0, p.now().Sub(started), metrics.OutcomeCanceled)
		return nil, eris.Wrapf(ErrPublishFailed, "publish cancelled: %v", err)
	}

	siteID, err := p.store.CreateSite(ctx, SiteInput{
		OwnerID:          req.OwnerID,
		Name:             SiteName(batch.Context),
		Category:         category,
		Status:           SiteStatusPublished,
		AvailableForRent: req.AvailableForRent,
	})
	if err != nil {
		p.metrics.ObservePublish(0, p.now().Sub(started), metrics.OutcomeFailed)
		p.recordError(fields, err, "creating site")
		return nil, eris.Wrapf(ErrPublishFailed, "creating site: %v", err)
	}
	fields["site_id"] = siteID

	if err := ctx.Err(); err != nil {
		p.compensate(ctx, siteID, fields)
		p.metrics.ObservePublish(0, p.now().Sub(started), metrics.OutcomeCanceled)
		return nil, eris.Wrapf(ErrPublishFailed, "publish cancelled after site creation: %v", err)
	}

	if err := p.store.CreatePages(ctx, siteID, pages); err != nil {
		p.compensate(ctx, siteID, fields)
		p.metrics.ObservePublish(0, p.now().Sub(started), metrics.OutcomeFailed)
		p.recordError(fields, err, "creating pages")
		return nil, eris.Wrapf(ErrPublishFailed, "creating pages for site %s: %v", siteID, err)
	}

	batch.MarkPublished()

	duration := p.now().Sub(started)
	p.metrics.ObservePublish(batch.Len(), duration, metrics.OutcomeSuccess)
	if p.logger != nil {
		p.logger.WithFields(fields).WithField("duration", duration.String()).Info("batch published")
	}

	return &PublishResult{SiteID: siteID, Pages: batch.Len()}, nil
}

// compensate runs even when ctx is already cancelled.
func (p *Publisher) compensate(ctx context.Context, siteID string, fields logrus.Fields) {
	if err := p.store.DeleteSite(context.WithoutCancel(ctx), siteID); err != nil {
		p.recordError(fields, err, "deleting orphaned site")
		return
	}
	if p.logger != nil {
		p.logger.WithFields(fields).Warn("orphaned site removed after failed publish")
	}
}

func (p *Publisher) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if p.logger != nil {
		entry := p.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if p.sentryHub != nil {
		p.sentryHub.CaptureException(err)
	}
}
