// Package session threads keywords, settings and batches through the page pipeline, one
// isolated session per logical user.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/keyword"
	"seoflood/app/internal/domain/page"
	"seoflood/app/internal/metrics"
)

const (
	defaultResearchLimit = 20
	maxResearchLimit     = 100

	sourceManual   = "manual"
	sourceImport   = "import"
	sourceExpand   = "expand"
	sourceResearch = "research"
)

// Service defines the session-scoped pipeline operations.
type Service interface {
	Create(ctx context.Context) (Snapshot, error)
	Get(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error

	SetContext(ctx context.Context, id string, update ContextUpdate) (Snapshot, error)
	UpdateSettings(ctx context.Context, id string, update SettingsUpdate) (Snapshot, error)

	AddKeyword(ctx context.Context, id, phrase string) (bool, error)
	RemoveKeyword(ctx context.Context, id, phrase string) (bool, error)
	ClearKeywords(ctx context.Context, id string) error
	ImportKeywords(ctx context.Context, id, text string) (keyword.ImportResult, error)
	ExpandKeywords(ctx context.Context, id, seed string) (keyword.ImportResult, error)
	ResearchKeywords(ctx context.Context, id string, limit int) (ResearchResult, error)

	Generate(ctx context.Context, id string) (*BatchSummary, error)
	ClearBatch(ctx context.Context, id string) error
	Preview(ctx context.Context, id, pageID string) (*delivery.Preview, error)
	Export(ctx context.Context, id string) (*delivery.ExportReport, error)
	Publish(ctx context.Context, id string, availableForRent bool) (*delivery.PublishResult, error)

	// PruneExpired drops sessions idle for longer than the configured TTL and returns how many were dropped.
	PruneExpired() int
	Close()
}

// ResearchResult reports how a research request populated the keyword store.
type ResearchResult struct {
	keyword.ImportResult
	Fallback bool `json:"fallback"`
}

// Options wires the session service.
type Options struct {
	Orchestrator *page.Orchestrator
	Renderer     delivery.Renderer
	Exporter     *delivery.Exporter
	Publisher    *delivery.Publisher
	// Researcher is optional; without one research always uses the deterministic expansion.
	Researcher keyword.Researcher
	Defaults   page.Settings
	// IdleTTL ends sessions that have not been used for this long. Zero keeps sessions until deleted.
	IdleTTL   time.Duration
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
	Metrics   metrics.Recorder
	Now       func() time.Time
	NewID     func() string
}

type service struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	orchestrator *page.Orchestrator
	renderer     delivery.Renderer
	exporter     *delivery.Exporter
	publisher    *delivery.Publisher
	researcher   keyword.Researcher
	defaults     page.Settings
	idleTTL      time.Duration
	logger       *logrus.Logger
	sentryHub    *sentry.Hub
	metrics      metrics.Recorder
	now          func() time.Time
	newID        func() string

	stop     chan struct{}
	stopOnce sync.Once
}

var _ Service = (*service)(nil)

// NewService validates options and returns an empty session registry.
func NewService(opts Options) (Service, error) {
	if opts.Orchestrator == nil {
		return nil, eris.New("batch orchestrator is required")
	}
	if opts.Renderer == nil {
		return nil, eris.New("renderer is required")
	}
	if opts.Exporter == nil {
		return nil, eris.New("exporter is required")
	}
	if opts.Publisher == nil {
		return nil, eris.New("publisher is required")
	}

	defaults := opts.Defaults
	if defaults.PageCount <= 0 {
		defaults.PageCount = page.DefaultPageCount
	}
	if defaults.WordCount <= 0 {
		defaults.WordCount = page.DefaultWordCount
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	svc := &service{
		sessions:     make(map[string]*Session),
		orchestrator: opts.Orchestrator,
		renderer:     opts.Renderer,
		exporter:     opts.Exporter,
		publisher:    opts.Publisher,
		researcher:   opts.Researcher,
		defaults:     defaults,
		idleTTL:      opts.IdleTTL,
		logger:       opts.Logger,
		sentryHub:    opts.SentryHub,
		metrics:      metrics.OrNoop(opts.Metrics),
		now:          now,
		newID:        newID,
		stop:         make(chan struct{}),
	}

	if svc.idleTTL > 0 {
		ticker := time.NewTicker(svc.idleTTL)
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					svc.PruneExpired()
				case <-svc.stop:
					return
				}
			}
		}()
	}

	return svc, nil
}

func (s *service) Create(ctx context.Context) (Snapshot, error) {
	sess := newSession(s.newID(), s.defaults, s.now())

	s.mu.Lock()
	if _, exists := s.sessions[sess.id]; exists {
		s.mu.Unlock()
		return Snapshot{}, eris.Errorf("session id collision: %s", sess.id)
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.WithField("session_id", sess.id).Info("session created")
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot(), nil
}

func (s *service) Get(ctx context.Context, id string) (Snapshot, error) {
	var snap Snapshot
	err := s.withSession(id, func(sess *Session) error {
		snap = sess.snapshot()
		return nil
	})
	return snap, err
}

func (s *service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return eris.Wrapf(ErrSessionNotFound, "session id %s", id)
	}
	if s.logger != nil {
		s.logger.WithField("session_id", id).Info("session ended")
	}
	return nil
}

func (s *service) SetContext(ctx context.Context, id string, update ContextUpdate) (Snapshot, error) {
	var snap Snapshot
	err := s.withSession(id, func(sess *Session) error {
		sess.gen = page.GenerationContext{
			MainKeyword: strings.TrimSpace(update.MainKeyword),
			Location:    strings.TrimSpace(update.Location),
			Category:    strings.TrimSpace(update.Category),
		}
		sess.ownerID = strings.TrimSpace(update.OwnerID)
		sess.updatedAt = s.now()
		snap = sess.snapshot()
		return nil
	})
	return snap, err
}

func (s *service) UpdateSettings(ctx context.Context, id string, update SettingsUpdate) (Snapshot, error) {
	var snap Snapshot
	err := s.withSession(id, func(sess *Session) error {
		next, err := update.apply(sess.settings)
		if err != nil {
			return err
		}
		sess.settings = next
		sess.updatedAt = s.now()
		snap = sess.snapshot()
		return nil
	})
	return snap, err
}

func (s *service) AddKeyword(ctx context.Context, id, phrase string) (bool, error) {
	var added bool
	err := s.withSession(id, func(sess *Session) error {
		added = sess.keywords.Add(phrase)
		if added {
			s.metrics.IncKeywordsAdded(sourceManual, 1)
			sess.updatedAt = s.now()
		}
		return nil
	})
	return added, err
}

func (s *service) RemoveKeyword(ctx context.Context, id, phrase string) (bool, error) {
	var removed bool
	err := s.withSession(id, func(sess *Session) error {
		removed = sess.keywords.Remove(phrase)
		if removed {
			sess.updatedAt = s.now()
		}
		return nil
	})
	return removed, err
}

func (s *service) ClearKeywords(ctx context.Context, id string) error {
	return s.withSession(id, func(sess *Session) error {
		sess.keywords.Clear()
		sess.updatedAt = s.now()
		return nil
	})
}

func (s *service) ImportKeywords(ctx context.Context, id, text string) (keyword.ImportResult, error) {
	var result keyword.ImportResult
	err := s.withSession(id, func(sess *Session) error {
		result = sess.keywords.ImportLines(text)
		s.recordAdded(sess, sourceImport, result)
		return nil
	})
	return result, err
}

// ExpandKeywords expands seed, or the session's main keyword when seed is blank.
func (s *service) ExpandKeywords(ctx context.Context, id, seed string) (keyword.ImportResult, error) {
	var result keyword.ImportResult
	err := s.withSession(id, func(sess *Session) error {
		if strings.TrimSpace(seed) == "" {
			seed = sess.gen.MainKeyword
		}

		var err error
		result, err = keyword.ExpandInto(sess.keywords, seed, sess.gen.Location)
		if err != nil {
			return err
		}
		s.recordAdded(sess, sourceExpand, result)
		return nil
	})
	return result, err
}

// ResearchKeywords asks the researcher for phrases around the main keyword and merges
// them into the store. Any researcher failure falls back to the deterministic expansion.
func (s *service) ResearchKeywords(ctx context.Context, id string, limit int) (ResearchResult, error) {
	if limit <= 0 {
		limit = defaultResearchLimit
	}
	if limit > maxResearchLimit {
		limit = maxResearchLimit
	}

	var result ResearchResult
	err := s.withSession(id, func(sess *Session) error {
		seed := strings.TrimSpace(sess.gen.MainKeyword)
		if seed == "" {
			return keyword.ErrMissingSeedKeyword
		}

		if s.researcher != nil {
			phrases, err := s.researcher.Research(ctx, seed, sess.gen.Location, limit)
			if err == nil && len(phrases) > 0 {
				if len(phrases) > limit {
					phrases = phrases[:limit]
				}
				result.ImportResult = sess.keywords.Merge(phrases)
				s.recordAdded(sess, sourceResearch, result.ImportResult)
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return eris.Wrap(ctxErr, "researching keywords")
			}
			if err == nil {
				err = eris.New("researcher returned no phrases")
			}
			s.metrics.IncGenerativeFallback(sourceResearch)
			s.logWarn(logrus.Fields{"session_id": sess.id, "seed": seed}, err, "keyword research failed, using expansion")
		}

		expanded, err := keyword.ExpandInto(sess.keywords, seed, sess.gen.Location)
		if err != nil {
			return err
		}
		result.ImportResult = expanded
		result.Fallback = true
		s.recordAdded(sess, sourceExpand, expanded)
		return nil
	})
	return result, err
}

// Generate replaces the session's batch. A failed run leaves the previous batch intact.
func (s *service) Generate(ctx context.Context, id string) (*BatchSummary, error) {
	var summary *BatchSummary
	err := s.withSession(id, func(sess *Session) error {
		batch, err := s.orchestrator.GenerateBatch(ctx, sess.keywords.Keywords(), sess.settings, sess.generationContext())
		if err != nil {
			return err
		}
		sess.batch = batch
		sess.updatedAt = s.now()
		summary = summarize(batch)
		return nil
	})
	return summary, err
}

func (s *service) ClearBatch(ctx context.Context, id string) error {
	return s.withSession(id, func(sess *Session) error {
		sess.batch = nil
		sess.updatedAt = s.now()
		return nil
	})
}

func (s *service) Preview(ctx context.Context, id, pageID string) (*delivery.Preview, error) {
	var preview *delivery.Preview
	err := s.withSession(id, func(sess *Session) error {
		if sess.batch == nil {
			return eris.Wrapf(ErrNoBatch, "session id %s", id)
		}
		var err error
		preview, err = delivery.RenderPreview(s.renderer, sess.batch, pageID)
		return err
	})
	return preview, err
}

func (s *service) Export(ctx context.Context, id string) (*delivery.ExportReport, error) {
	var report *delivery.ExportReport
	err := s.withSession(id, func(sess *Session) error {
		if sess.batch == nil {
			return eris.Wrapf(ErrNoBatch, "session id %s", id)
		}
		var err error
		report, err = s.exporter.Export(ctx, sess.batch)
		return err
	})
	return report, err
}

func (s *service) Publish(ctx context.Context, id string, availableForRent bool) (*delivery.PublishResult, error) {
	var result *delivery.PublishResult
	err := s.withSession(id, func(sess *Session) error {
		if sess.batch == nil {
			return eris.Wrapf(ErrNoBatch, "session id %s", id)
		}
		var err error
		result, err = s.publisher.Publish(ctx, sess.batch, delivery.PublishRequest{
			OwnerID:          sess.ownerID,
			AvailableForRent: availableForRent,
		})
		if err != nil {
			return err
		}
		sess.updatedAt = s.now()
		return nil
	})
	return result, err
}

// generationContext falls back to the settings category when the context has none.
func (sess *Session) generationContext() page.GenerationContext {
	gen := sess.gen
	if gen.Category == "" {
		gen.Category = sess.settings.Category
	}
	return gen
}

func (s *service) withSession(id string, fn func(sess *Session) error) error {
	key := strings.TrimSpace(id)

	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return eris.Wrapf(ErrSessionNotFound, "session id %s", id)
	}

	if s.expired(sess, s.now()) {
		s.mu.Lock()
		if s.sessions[key] == sess {
			delete(s.sessions, key)
		}
		s.mu.Unlock()
		s.logExpired(sess.id)
		return eris.Wrapf(ErrSessionNotFound, "session id %s", id)
	}

	sess.touch(s.now())
	defer func() { sess.touch(s.now()) }()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

func (s *service) expired(sess *Session, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(sess.lastSeenAt()) > s.idleTTL
}

// PruneExpired removes every session idle for longer than the TTL.
func (s *service) PruneExpired() int {
	if s.idleTTL <= 0 {
		return 0
	}

	now := s.now()
	var expired []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.logExpired(id)
	}
	return len(expired)
}

// Close stops the expiry loop. Sessions stay readable.
func (s *service) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *service) logExpired(id string) {
	if s.logger != nil {
		s.logger.WithField("session_id", id).Info("session expired")
	}
}

func (s *service) recordAdded(sess *Session, source string, result keyword.ImportResult) {
	if result.Added == 0 {
		return
	}
	s.metrics.IncKeywordsAdded(source, result.Added)
	sess.updatedAt = s.now()

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"session_id": sess.id,
			"source":     source,
			"added":      result.Added,
			"duplicates": result.Duplicates,
		}).Debug("keywords added")
	}
}

func (s *service) logWarn(fields logrus.Fields, err error, message string) {
	if s.logger == nil || err == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn(message)

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
