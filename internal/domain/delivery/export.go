package delivery

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"seoflood/app/internal/domain/page"
	"seoflood/app/internal/metrics"
)

// Sink receives exported documents one at a time.
type Sink interface {
	Deliver(ctx context.Context, name string, content []byte) error
}

// ManifestWriter records an index of what an export delivered.
type ManifestWriter interface {
	WriteManifest(ctx context.Context, batch *page.Batch, items []ExportItem) (string, error)
}

// ExportItem describes the outcome of one document delivery.
type ExportItem struct {
	PageID  string `json:"pageId"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the item was not delivered.
func (i ExportItem) Failed() bool {
	return i.Error != ""
}

// ExportReport summarises a bulk export.
type ExportReport struct {
	Items     []ExportItem `json:"items"`
	Delivered int          `json:"delivered"`
	Failed    int          `json:"failed"`
	Manifest  string       `json:"manifest,omitempty"`
}

// ExporterOptions configures an Exporter.
type ExporterOptions struct {
	Renderer Renderer
	Sink     Sink
	// NameFor names the artifact for a record; required.
	NameFor func(batch *page.Batch, record page.PageRecord) string
	// Manifest is optional.
	Manifest  ManifestWriter
	Stagger   time.Duration
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	Metrics   metrics.Recorder
}

// Exporter renders every record of a batch and hands each to a Sink, pausing between
// deliveries so throttling hosts do not drop any of them.
type Exporter struct {
	renderer  Renderer
	sink      Sink
	nameFor   func(*page.Batch, page.PageRecord) string
	manifest  ManifestWriter
	stagger   time.Duration
	logger    *logrus.Logger
	sentryHub *sentry.Hub
	metrics   metrics.Recorder
}

// NewExporter validates options.
func NewExporter(opts ExporterOptions) (*Exporter, error) {
	if opts.Renderer == nil {
		return nil, eris.New("renderer is required")
	}
	if opts.Sink == nil {
		return nil, eris.New("export sink is required")
	}
	if opts.NameFor == nil {
		return nil, eris.New("export naming function is required")
	}
	if opts.Stagger < 0 {
		return nil, eris.New("export stagger must not be negative")
	}

	return &Exporter{
		renderer:  opts.Renderer,
		sink:      opts.Sink,
		nameFor:   opts.NameFor,
		manifest:  opts.Manifest,
		stagger:   opts.Stagger,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		metrics:   metrics.OrNoop(opts.Metrics),
	}, nil
}

// Export delivers every record in batch order. A failed item is recorded in the report
// and the remaining items are still delivered. Only cancellation stops the loop early,
// in which case the partial report is returned together with the context error.
func (e *Exporter) Export(ctx context.Context, batch *page.Batch) (*ExportReport, error) {
	if err := validateBatch(batch); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if e.stagger > 0 {
		limit = rate.Every(e.stagger)
	}
	limiter := rate.NewLimiter(limit, 1)

	report := &ExportReport{Items: make([]ExportItem, 0, batch.Len())}
	names := make(map[string]struct{}, batch.Len())
	for _, record := range batch.Pages {
		if err := limiter.Wait(ctx); err != nil {
			e.logError(logrus.Fields{"batch_id": batch.ID, "delivered": report.Delivered}, err, "export interrupted")
			return report, eris.Wrap(err, "waiting for export slot")
		}

		item := ExportItem{
			PageID:  record.ID,
			Slug:    record.Slug,
			Title:   record.Title,
			Keyword: record.Keyword,
			Name:    e.nameFor(batch, record),
		}

		if _, dup := names[item.Name]; dup && e.logger != nil {
			e.logger.WithFields(logrus.Fields{"batch_id": batch.ID, "name": item.Name}).Warn("export overwrites an earlier document with the same name")
		}
		names[item.Name] = struct{}{}

		document := e.renderer.Render(record, batch.Settings, batch.Context)
		if err := e.sink.Deliver(ctx, item.Name, []byte(document)); err != nil {
			wrapped := eris.Wrapf(ErrExportItemFailed, "delivering %s: %v", item.Name, err)
			item.Error = wrapped.Error()
			report.Failed++
			e.metrics.IncExportItem(false)
			e.recordError(logrus.Fields{"batch_id": batch.ID, "slug": record.Slug, "name": item.Name}, err, "export item failed")
		} else {
			report.Delivered++
			e.metrics.IncExportItem(true)
		}
		report.Items = append(report.Items, item)
	}

	if e.manifest != nil {
		location, err := e.manifest.WriteManifest(ctx, batch, report.Items)
		if err != nil {
			e.recordError(logrus.Fields{"batch_id": batch.ID}, err, "writing export manifest")
		} else {
			report.Manifest = location
		}
	}

	if e.logger != nil {
		e.logger.WithFields(logrus.Fields{
			"batch_id":  batch.ID,
			"delivered": report.Delivered,
			"failed":    report.Failed,
		}).Info("export complete")
	}

	return report, nil
}

func (e *Exporter) logError(fields logrus.Fields, err error, message string) {
	if e.logger == nil || err == nil {
		return
	}

	entry := e.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func (e *Exporter) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	e.logError(fields, err, message)
	if e.sentryHub != nil {
		e.sentryHub.CaptureException(err)
	}
}
