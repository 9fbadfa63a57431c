package page

import (
	"context"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/metrics"
)

// Copywriter writes an introduction HTML fragment for a synthesized record.
type Copywriter interface {
	WriteIntro(ctx context.Context, record PageRecord, settings Settings, gen GenerationContext) (string, error)
}

// CopywritingOptions configures a CopywritingSynthesizer.
type CopywritingOptions struct {
	Base       Synthesizer
	Copywriter Copywriter
	Logger     *logrus.Logger
	SentryHub  *sentry.Hub
	Metrics    metrics.Recorder
}

// CopywritingSynthesizer decorates a Synthesizer with a generated intro when SEO
// optimization is enabled. Copywriter failures fall back to the template intro.
type CopywritingSynthesizer struct {
	base       Synthesizer
	copywriter Copywriter
	logger     *logrus.Logger
	sentryHub  *sentry.Hub
	metrics    metrics.Recorder
}

var _ Synthesizer = (*CopywritingSynthesizer)(nil)

// NewCopywritingSynthesizer wires the decorator.
func NewCopywritingSynthesizer(opts CopywritingOptions) (*CopywritingSynthesizer, error) {
	if opts.Base == nil {
		return nil, eris.New("base synthesizer is required")
	}
	if opts.Copywriter == nil {
		return nil, eris.New("copywriter is required")
	}

	return &CopywritingSynthesizer{
		base:       opts.Base,
		copywriter: opts.Copywriter,
		logger:     opts.Logger,
		sentryHub:  opts.SentryHub,
		metrics:    metrics.OrNoop(opts.Metrics),
	}, nil
}

func (s *CopywritingSynthesizer) Synthesize(ctx context.Context, keyword string, settings Settings, gen GenerationContext) (PageRecord, error) {
	record, err := s.base.Synthesize(ctx, keyword, settings, gen)
	if err != nil {
		return PageRecord{}, err
	}

	if !settings.SEOOptimization {
		return record, nil
	}

	intro, err := s.copywriter.WriteIntro(ctx, record, settings, gen)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PageRecord{}, eris.Wrapf(ctxErr, "writing intro for keyword %q", record.Keyword)
		}
		s.recordFallback(logrus.Fields{"keyword": record.Keyword, "slug": record.Slug}, err)
		return record, nil
	}

	intro = strings.TrimSpace(intro)
	if intro == "" {
		s.recordFallback(logrus.Fields{"keyword": record.Keyword, "slug": record.Slug}, eris.New("copywriter returned empty intro"))
		return record, nil
	}

	record.IntroHTML = intro
	return record, nil
}

func (s *CopywritingSynthesizer) recordFallback(fields logrus.Fields, err error) {
	s.metrics.IncGenerativeFallback("copywriter")

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Warn("copywriter failed, using template intro")
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
