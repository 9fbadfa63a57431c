package session

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/delivery"
	"seoflood/app/internal/domain/keyword"
	"seoflood/app/internal/domain/page"
)

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubRenderer struct{}

func (stubRenderer) Render(record page.PageRecord, settings page.Settings, gen page.GenerationContext) string {
	return "<html>" + record.Slug + "</html>"
}

type memorySink struct {
	mu    sync.Mutex
	names []string
}

func (m *memorySink) Deliver(ctx context.Context, name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	return nil
}

type stubPersistence struct {
	pagesErr error
	deleted  []string
	pages    int
}

func (s *stubPersistence) CreateSite(ctx context.Context, site delivery.SiteInput) (string, error) {
	return "site-1", nil
}

func (s *stubPersistence) CreatePages(ctx context.Context, siteID string, pages []delivery.PageInput) error {
	if s.pagesErr != nil {
		return s.pagesErr
	}
	s.pages += len(pages)
	return nil
}

func (s *stubPersistence) DeleteSite(ctx context.Context, siteID string) error {
	s.deleted = append(s.deleted, siteID)
	return nil
}

type stubResearcher struct {
	phrases []string
	err     error
	calls   int
}

var _ keyword.Researcher = (*stubResearcher)(nil)

func (s *stubResearcher) Research(ctx context.Context, seed, location string, limit int) ([]string, error) {
	s.calls++
	return s.phrases, s.err
}

type fixture struct {
	svc   Service
	sink  *memorySink
	store *stubPersistence
}

func newFixture(t *testing.T, researcher keyword.Researcher, configure ...func(*Options)) fixture {
	t.Helper()

	logger := silentLogger()
	n := 0
	synth := page.NewTemplateSynthesizer(page.TemplateOptions{NewID: func() string {
		n++
		return fmt.Sprintf("page-%d", n)
	}})
	orch, err := page.NewOrchestrator(page.OrchestratorOptions{Synthesizer: synth, Logger: logger})
	if err != nil {
		t.Fatalf("NewOrchestrator returned error: %v", err)
	}

	sink := &memorySink{}
	exporter, err := delivery.NewExporter(delivery.ExporterOptions{
		Renderer: stubRenderer{},
		Sink:     sink,
		NameFor:  func(b *page.Batch, r page.PageRecord) string { return r.Slug + ".html" },
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("NewExporter returned error: %v", err)
	}

	store := &stubPersistence{}
	publisher, err := delivery.NewPublisher(delivery.PublisherOptions{Store: store, Renderer: stubRenderer{}, Logger: logger})
	if err != nil {
		t.Fatalf("NewPublisher returned error: %v", err)
	}

	opts := Options{
		Orchestrator: orch,
		Renderer:     stubRenderer{},
		Exporter:     exporter,
		Publisher:    publisher,
		Defaults:     page.DefaultSettings(),
		Logger:       logger,
	}
	if researcher != nil {
		opts.Researcher = researcher
	}
	for _, fn := range configure {
		fn(&opts)
	}

	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	t.Cleanup(svc.Close)

	return fixture{svc: svc, sink: sink, store: store}
}

func mustCreate(t *testing.T, svc Service) string {
	t.Helper()

	snap, err := svc.Create(context.Background())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return snap.ID
}

func TestNewServiceValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := NewService(Options{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}
}

func TestExpandScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	if _, err := f.svc.SetContext(ctx, id, ContextUpdate{MainKeyword: "plumber", Location: "Miami"}); err != nil {
		t.Fatalf("SetContext returned error: %v", err)
	}

	result, err := f.svc.ExpandKeywords(ctx, id, "")
	if err != nil {
		t.Fatalf("ExpandKeywords returned error: %v", err)
	}
	if result.Added == 0 || result.Added > 18 {
		t.Fatalf("expected between 1 and 18 new keywords, got %d", result.Added)
	}

	snap, err := f.svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	for _, want := range []string{"plumber near me", "plumber services in Miami"} {
		if !slices.Contains(snap.Keywords, want) {
			t.Fatalf("expected keywords to contain %q, got %v", want, snap.Keywords)
		}
	}
}

func TestExpandWithoutSeedFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	id := mustCreate(t, f.svc)

	if _, err := f.svc.ExpandKeywords(context.Background(), id, "  "); !eris.Is(err, keyword.ErrMissingSeedKeyword) {
		t.Fatalf("expected ErrMissingSeedKeyword, got %v", err)
	}

	snap, _ := f.svc.Get(context.Background(), id)
	if len(snap.Keywords) != 0 {
		t.Fatalf("expected no mutation, got %v", snap.Keywords)
	}
}

func TestKeywordEditing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	if added, _ := f.svc.AddKeyword(ctx, id, "dentist"); !added {
		t.Fatalf("expected first add to insert")
	}
	if added, _ := f.svc.AddKeyword(ctx, id, "dentist"); added {
		t.Fatalf("expected duplicate add to be a no-op")
	}

	result, err := f.svc.ImportKeywords(ctx, id, "dentist\r\nbest dentist\n\n  dentist reviews  \n")
	if err != nil {
		t.Fatalf("ImportKeywords returned error: %v", err)
	}
	if result.Added != 2 || result.Duplicates != 1 {
		t.Fatalf("expected 2 added and 1 duplicate, got %+v", result)
	}

	if removed, _ := f.svc.RemoveKeyword(ctx, id, "dentist"); !removed {
		t.Fatalf("expected remove to succeed")
	}

	snap, _ := f.svc.Get(ctx, id)
	if !slices.Equal(snap.Keywords, []string{"best dentist", "dentist reviews"}) {
		t.Fatalf("unexpected keywords %v", snap.Keywords)
	}

	if err := f.svc.ClearKeywords(ctx, id); err != nil {
		t.Fatalf("ClearKeywords returned error: %v", err)
	}
	snap, _ = f.svc.Get(ctx, id)
	if len(snap.Keywords) != 0 {
		t.Fatalf("expected keywords cleared, got %v", snap.Keywords)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	zero := 0
	if _, err := f.svc.UpdateSettings(ctx, id, SettingsUpdate{PageCount: &zero}); !eris.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings, got %v", err)
	}

	badURL := "not a url"
	if _, err := f.svc.UpdateSettings(ctx, id, SettingsUpdate{MainPageURL: &badURL}); !eris.Is(err, ErrInvalidSettings) {
		t.Fatalf("expected ErrInvalidSettings for url, got %v", err)
	}

	count := 5
	testimonials := true
	mainURL := " https://example.com "
	snap, err := f.svc.UpdateSettings(ctx, id, SettingsUpdate{PageCount: &count, IncludeTestimonials: &testimonials, MainPageURL: &mainURL})
	if err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if snap.Settings.PageCount != 5 || !snap.Settings.IncludeTestimonials || snap.Settings.MainPageURL != "https://example.com" {
		t.Fatalf("unexpected settings %+v", snap.Settings)
	}
	if snap.Settings.WordCount != page.DefaultWordCount || !snap.Settings.IncludeSchema {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", snap.Settings)
	}
}

func TestGenerateScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	count := 5
	if _, err := f.svc.UpdateSettings(ctx, id, SettingsUpdate{PageCount: &count}); err != nil {
		t.Fatalf("UpdateSettings returned error: %v", err)
	}
	if _, err := f.svc.SetContext(ctx, id, ContextUpdate{MainKeyword: "dentist"}); err != nil {
		t.Fatalf("SetContext returned error: %v", err)
	}
	f.svc.ImportKeywords(ctx, id, "best dentist\ndentist reviews")

	summary, err := f.svc.Generate(ctx, id)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(summary.Pages) != 2 || summary.Pages[0].Slug != "best-dentist" || summary.Pages[1].Slug != "dentist-reviews" {
		t.Fatalf("unexpected batch %+v", summary.Pages)
	}

	preview, err := f.svc.Preview(ctx, id, summary.Pages[1].ID)
	if err != nil {
		t.Fatalf("Preview returned error: %v", err)
	}
	if preview.Document != "<html>dentist-reviews</html>" {
		t.Fatalf("unexpected preview %q", preview.Document)
	}

	report, err := f.svc.Export(ctx, id)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if report.Delivered != 2 || !slices.Equal(f.sink.names, []string{"best-dentist.html", "dentist-reviews.html"}) {
		t.Fatalf("unexpected export %+v / %v", report, f.sink.names)
	}
}

func TestGenerateWithoutMainKeywordKeepsPreviousBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	f.svc.SetContext(ctx, id, ContextUpdate{MainKeyword: "dentist"})
	f.svc.AddKeyword(ctx, id, "best dentist")
	first, err := f.svc.Generate(ctx, id)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	f.svc.SetContext(ctx, id, ContextUpdate{MainKeyword: ""})
	if _, err := f.svc.Generate(ctx, id); !eris.Is(err, page.ErrMissingMainKeyword) {
		t.Fatalf("expected ErrMissingMainKeyword, got %v", err)
	}

	snap, _ := f.svc.Get(ctx, id)
	if snap.Batch == nil || snap.Batch.ID != first.ID {
		t.Fatalf("expected previous batch to survive a rejected run")
	}
}

func TestOperationsWithoutBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	if _, err := f.svc.Preview(ctx, id, "x"); !eris.Is(err, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch from preview, got %v", err)
	}
	if _, err := f.svc.Export(ctx, id); !eris.Is(err, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch from export, got %v", err)
	}
	if _, err := f.svc.Publish(ctx, id, false); !eris.Is(err, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch from publish, got %v", err)
	}
}

func TestPublishFailureLeavesBatchGenerated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.store.pagesErr = eris.New("insert failed")
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	f.svc.SetContext(ctx, id, ContextUpdate{MainKeyword: "plumber"})
	f.svc.AddKeyword(ctx, id, "plumber near me")
	if _, err := f.svc.Generate(ctx, id); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if _, err := f.svc.Publish(ctx, id, false); !eris.Is(err, delivery.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed, got %v", err)
	}

	snap, _ := f.svc.Get(ctx, id)
	if snap.Batch.Published || snap.Batch.Pages[0].Status != page.StatusGenerated {
		t.Fatalf("expected batch to remain generated, got %+v", snap.Batch)
	}

	f.store.pagesErr = nil
	result, err := f.svc.Publish(ctx, id, true)
	if err != nil {
		t.Fatalf("retry Publish returned error: %v", err)
	}
	if result.SiteID != "site-1" {
		t.Fatalf("unexpected result %+v", result)
	}
	snap, _ = f.svc.Get(ctx, id)
	if !snap.Batch.Published {
		t.Fatalf("expected batch to be published after retry")
	}
}

func TestResearchUsesResearcherAndFallsBack(t *testing.T) {
	t.Parallel()

	researcher := &stubResearcher{phrases: []string{"plumber cost miami", "plumber near me"}}
	f := newFixture(t, researcher)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	if _, err := f.svc.ResearchKeywords(ctx, id, 10); !eris.Is(err, keyword.ErrMissingSeedKeyword) {
		t.Fatalf("expected ErrMissingSeedKeyword without main keyword, got %v", err)
	}

	f.svc.SetContext(ctx, id, ContextUpdate{MainKeyword: "plumber", Location: "Miami"})
	result, err := f.svc.ResearchKeywords(ctx, id, 10)
	if err != nil {
		t.Fatalf("ResearchKeywords returned error: %v", err)
	}
	if result.Fallback || result.Added != 2 {
		t.Fatalf("expected researcher phrases to be merged, got %+v", result)
	}

	researcher.err = eris.New("model unavailable")
	result, err = f.svc.ResearchKeywords(ctx, id, 10)
	if err != nil {
		t.Fatalf("ResearchKeywords returned error: %v", err)
	}
	if !result.Fallback || result.Duplicates != 1 {
		t.Fatalf("expected expansion fallback with one duplicate, got %+v", result)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	a := mustCreate(t, f.svc)
	b := mustCreate(t, f.svc)

	f.svc.AddKeyword(ctx, a, "roofer")

	snap, _ := f.svc.Get(ctx, b)
	if len(snap.Keywords) != 0 {
		t.Fatalf("expected session b to be unaffected, got %v", snap.Keywords)
	}

	if err := f.svc.Delete(ctx, a); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := f.svc.Get(ctx, a); !eris.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := f.svc.Delete(ctx, a); !eris.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestConcurrentSessionAccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	id := mustCreate(t, f.svc)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.svc.AddKeyword(ctx, id, fmt.Sprintf("keyword %d", i))
			f.svc.Get(ctx, id)
		}(i)
	}
	wg.Wait()

	snap, _ := f.svc.Get(ctx, id)
	if len(snap.Keywords) != 20 {
		t.Fatalf("expected 20 keywords, got %d", len(snap.Keywords))
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestIdleSessionsExpire(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	f := newFixture(t, nil, func(opts *Options) {
		opts.IdleTTL = time.Hour
		opts.Now = clock.Now
	})
	ctx := context.Background()

	idle := mustCreate(t, f.svc)
	active := mustCreate(t, f.svc)
	if _, err := f.svc.ImportKeywords(ctx, idle, "best plumber\n"); err != nil {
		t.Fatalf("ImportKeywords returned error: %v", err)
	}

	clock.Advance(30 * time.Minute)
	if _, err := f.svc.Get(ctx, active); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}

	clock.Advance(45 * time.Minute)
	if _, err := f.svc.Get(ctx, idle); !eris.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle session to be expired, got %v", err)
	}
	if _, err := f.svc.Get(ctx, active); err != nil {
		t.Fatalf("expected recently used session to survive, got %v", err)
	}

	clock.Advance(2 * time.Hour)
	if removed := f.svc.PruneExpired(); removed != 1 {
		t.Fatalf("expected 1 pruned session, got %d", removed)
	}
	if _, err := f.svc.Get(ctx, active); !eris.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected pruned session to be gone, got %v", err)
	}
}

func TestPruneExpiredWithoutTTLKeepsSessions(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	f := newFixture(t, nil, func(opts *Options) { opts.Now = clock.Now })

	id := mustCreate(t, f.svc)
	clock.Advance(365 * 24 * time.Hour)

	if removed := f.svc.PruneExpired(); removed != 0 {
		t.Fatalf("expected no pruning without a TTL, got %d", removed)
	}
	if _, err := f.svc.Get(context.Background(), id); err != nil {
		t.Fatalf("expected session to survive, got %v", err)
	}

	f.svc.Close()
	f.svc.Close()
}
