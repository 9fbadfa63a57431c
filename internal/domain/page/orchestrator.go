package page

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/metrics"
)

var (
	// ErrMissingMainKeyword indicates generation was requested without a main keyword.
	ErrMissingMainKeyword = eris.New("main keyword is required")
	// ErrEmptyKeywordSet indicates generation was requested with no keywords.
	ErrEmptyKeywordSet = eris.New("at least one target keyword is required")
)

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Synthesizer Synthesizer
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	Metrics     metrics.Recorder
	Now         func() time.Time
	NewBatchID  func() string
}

// Orchestrator drives the Synthesizer across a keyword list, one keyword at a time.
type Orchestrator struct {
	synthesizer Synthesizer
	logger      *logrus.Logger
	sentryHub   *sentry.Hub
	metrics     metrics.Recorder
	now         func() time.Time
	newBatchID  func() string
}

// NewOrchestrator validates options and applies defaults.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Synthesizer == nil {
		return nil, eris.New("page synthesizer is required")
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newBatchID := opts.NewBatchID
	if newBatchID == nil {
		newBatchID = uuid.NewString
	}

	return &Orchestrator{
		synthesizer: opts.Synthesizer,
		logger:      opts.Logger,
		sentryHub:   opts.SentryHub,
		metrics:     metrics.OrNoop(opts.Metrics),
		now:         now,
		newBatchID:  newBatchID,
	}, nil
}

// GenerateBatch synthesizes min(settings.PageCount, len(keywords)) records in keyword order.
// Any failure, including cancellation between steps, discards the whole batch.
func (o *Orchestrator) GenerateBatch(ctx context.Context, keywords []string, settings Settings, gen GenerationContext) (*Batch, error) {
	started := o.now()

	if strings.TrimSpace(gen.MainKeyword) == "" {
		o.metrics.ObserveBatch(0, 0, metrics.OutcomeRejected)
		return nil, ErrMissingMainKeyword
	}
	if len(keywords) == 0 {
		o.metrics.ObserveBatch(0, 0, metrics.OutcomeRejected)
		return nil, ErrEmptyKeywordSet
	}

	n := min(settings.PageCount, len(keywords))
	if n <= 0 {
		n = min(DefaultPageCount, len(keywords))
	}

	batch := &Batch{
		ID:       o.newBatchID(),
		Context:  gen,
		Settings: settings,
		Pages:    make([]PageRecord, 0, n),
	}
	fields := logrus.Fields{"batch_id": batch.ID, "main_keyword": gen.MainKeyword, "page_count": n}

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			o.metrics.ObserveBatch(0, o.now().Sub(started), metrics.OutcomeCanceled)
			o.logError(fields, err, "batch generation cancelled")
			return nil, eris.Wrapf(err, "generating batch after %d of %d pages", i, n)
		}

		record, err := o.synthesizer.Synthesize(ctx, keywords[i], settings, gen)
		if err != nil {
			outcome := metrics.OutcomeFailed
			if ctx.Err() != nil {
				outcome = metrics.OutcomeCanceled
			}
			o.metrics.ObserveBatch(0, o.now().Sub(started), outcome)
			o.recordError(logrus.Fields{"batch_id": batch.ID, "keyword": keywords[i]}, err, "synthesizing page")
			return nil, eris.Wrapf(err, "synthesizing page for keyword %q", keywords[i])
		}

		if _, dup := seen[record.ID]; dup {
			err := eris.Errorf("duplicate page id %q", record.ID)
			o.metrics.ObserveBatch(0, o.now().Sub(started), metrics.OutcomeFailed)
			o.recordError(logrus.Fields{"batch_id": batch.ID, "keyword": keywords[i]}, err, "validating page id")
			return nil, err
		}
		seen[record.ID] = struct{}{}

		record.Status = StatusGenerated
		batch.Pages = append(batch.Pages, record)
	}

	batch.CreatedAt = o.now()

	if collisions := batch.SlugCollisions(); len(collisions) > 0 && o.logger != nil {
		o.logger.WithFields(fields).WithField("slugs", collisions).Warn("batch contains colliding slugs")
	}

	o.metrics.ObserveBatch(n, batch.CreatedAt.Sub(started), metrics.OutcomeSuccess)
	if o.logger != nil {
		o.logger.WithFields(fields).WithField("duration", batch.CreatedAt.Sub(started).String()).Info("batch complete")
	}

	return batch, nil
}

func (o *Orchestrator) logError(fields logrus.Fields, err error, message string) {
	if o.logger == nil || err == nil {
		return
	}

	entry := o.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}

func (o *Orchestrator) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	o.logError(fields, err, message)
	if o.sentryHub != nil {
		o.sentryHub.CaptureException(err)
	}
}
