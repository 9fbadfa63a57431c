package delivery

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"seoflood/app/internal/domain/page"
)

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type stubRenderer struct{}

var _ Renderer = stubRenderer{}

func (stubRenderer) Render(record page.PageRecord, settings page.Settings, gen page.GenerationContext) string {
	return "<html>" + record.Slug + "|" + gen.MainKeyword + "</html>"
}

func testBatch(t *testing.T, keywords ...string) *page.Batch {
	t.Helper()

	n := 0
	synth := page.NewTemplateSynthesizer(page.TemplateOptions{NewID: func() string {
		n++
		return "p" + string(rune('0'+n))
	}})
	orch, err := page.NewOrchestrator(page.OrchestratorOptions{Synthesizer: synth, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewOrchestrator returned error: %v", err)
	}

	settings := page.DefaultSettings()
	settings.MainPageURL = "https://example.com"
	settings.Category = "home services"

	batch, err := orch.GenerateBatch(context.Background(), keywords, settings, page.GenerationContext{MainKeyword: "plumber", Location: "Miami"})
	if err != nil {
		t.Fatalf("GenerateBatch returned error: %v", err)
	}
	return batch
}

func TestRenderPreview(t *testing.T) {
	t.Parallel()

	batch := testBatch(t, "plumber near me", "best plumber")

	preview, err := RenderPreview(stubRenderer{}, batch, "p2")
	if err != nil {
		t.Fatalf("RenderPreview returned error: %v", err)
	}
	if preview.Document != "<html>best-plumber|plumber</html>" {
		t.Fatalf("unexpected document %q", preview.Document)
	}
	if preview.Record.Status != page.StatusPreview {
		t.Fatalf("expected preview status, got %q", preview.Record.Status)
	}
	if batch.Pages[1].Status != page.StatusGenerated {
		t.Fatalf("expected batch record to stay generated, got %q", batch.Pages[1].Status)
	}

	if _, err := RenderPreview(stubRenderer{}, batch, "missing"); !eris.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if _, err := RenderPreview(stubRenderer{}, nil, "p1"); err == nil {
		t.Fatalf("expected error for missing batch")
	}
}

type memorySink struct {
	mu        sync.Mutex
	delivered map[string]string
	order     []string
	times     []time.Time
	failNames map[string]bool
	onDeliver func(name string)
}

var _ Sink = (*memorySink)(nil)

func newMemorySink() *memorySink {
	return &memorySink{delivered: make(map[string]string), failNames: make(map[string]bool)}
}

func (m *memorySink) Deliver(ctx context.Context, name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = append(m.order, name)
	m.times = append(m.times, time.Now())
	if m.onDeliver != nil {
		m.onDeliver(name)
	}
	if m.failNames[name] {
		return eris.New("disk full")
	}
	m.delivered[name] = string(content)
	return nil
}

type stubManifest struct {
	items []ExportItem
	err   error
}

func (s *stubManifest) WriteManifest(ctx context.Context, batch *page.Batch, items []ExportItem) (string, error) {
	s.items = items
	if s.err != nil {
		return "", s.err
	}
	return "index.md", nil
}

func nameBySlug(batch *page.Batch, record page.PageRecord) string {
	return record.Slug + ".html"
}

func TestExporterDeliversEveryItemInOrder(t *testing.T) {
	t.Parallel()

	batch := testBatch(t, "plumber near me", "best plumber", "plumber reviews")
	sink := newMemorySink()
	manifest := &stubManifest{}

	exporter, err := NewExporter(ExporterOptions{Renderer: stubRenderer{}, Sink: sink, NameFor: nameBySlug, Manifest: manifest, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewExporter returned error: %v", err)
	}

	report, err := exporter.Export(context.Background(), batch)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	want := []string{"plumber-near-me.html", "best-plumber.html", "plumber-reviews.html"}
	if diff := cmp.Diff(want, sink.order); diff != "" {
		t.Fatalf("unexpected delivery order (-want +got):\n%s", diff)
	}
	if report.Delivered != 3 || report.Failed != 0 {
		t.Fatalf("expected 3 delivered and 0 failed, got %d/%d", report.Delivered, report.Failed)
	}
	if report.Manifest != "index.md" || len(manifest.items) != 3 {
		t.Fatalf("expected manifest with 3 items, got %q / %d", report.Manifest, len(manifest.items))
	}
	if sink.delivered["best-plumber.html"] != "<html>best-plumber|plumber</html>" {
		t.Fatalf("unexpected content %q", sink.delivered["best-plumber.html"])
	}
}

func TestExporterContinuesAfterItemFailure(t *testing.T) {
	t.Parallel()

	batch := testBatch(t, "a", "b", "c")
	sink := newMemorySink()
	sink.failNames["b.html"] = true

	exporter, err := NewExporter(ExporterOptions{Renderer: stubRenderer{}, Sink: sink, NameFor: nameBySlug, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewExporter returned error: %v", err)
	}

	report, err := exporter.Export(context.Background(), batch)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	if report.Delivered != 2 || report.Failed != 1 {
		t.Fatalf("expected 2 delivered and 1 failed, got %d/%d", report.Delivered, report.Failed)
	}
	if !report.Items[1].Failed() || !strings.Contains(report.Items[1].Error, ErrExportItemFailed.Error()) {
		t.Fatalf("expected second item to carry export failure, got %+v", report.Items[1])
	}
	if _, ok := sink.delivered["c.html"]; !ok {
		t.Fatalf("expected items after the failure to be delivered")
	}
}

func TestExporterStaggersDeliveries(t *testing.T) {
	t.Parallel()

	batch := testBatch(t, "a", "b", "c")
	sink := newMemorySink()
	stagger := 20 * time.Millisecond

	exporter, err := NewExporter(ExporterOptions{Renderer: stubRenderer{}, Sink: sink, NameFor: nameBySlug, Stagger: stagger})
	if err != nil {
		t.Fatalf("NewExporter returned error: %v", err)
	}

	if _, err := exporter.Export(context.Background(), batch); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	// Allow some scheduler slack below the configured interval.
	minGap := stagger / 2
	for i := 1; i < len(sink.times); i++ {
		if gap := sink.times[i].Sub(sink.times[i-1]); gap < minGap {
			t.Fatalf("expected deliveries at least %s apart, got %s", minGap, gap)
		}
	}
}

func TestExporterStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batch := testBatch(t, "a", "b", "c")
	sink := newMemorySink()
	sink.onDeliver = func(name string) {
		if name == "a.html" {
			cancel()
		}
	}

	exporter, err := NewExporter(ExporterOptions{Renderer: stubRenderer{}, Sink: sink, NameFor: nameBySlug, Stagger: 10 * time.Millisecond, Logger: silentLogger()})
	if err != nil {
		t.Fatalf("NewExporter returned error: %v", err)
	}

	report, err := exporter.Export(ctx, batch)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if report == nil || report.Delivered != 1 {
		t.Fatalf("expected partial report with one delivery, got %+v", report)
	}
}

func TestNewExporterValidates(t *testing.T) {
	t.Parallel()

	cases := []ExporterOptions{
		{Sink: newMemorySink(), NameFor: nameBySlug},
		{Renderer: stubRenderer{}, NameFor: nameBySlug},
		{Renderer: stubRenderer{}, Sink: newMemorySink()},
		{Renderer: stubRenderer{}, Sink: newMemorySink(), NameFor: nameBySlug, Stagger: -time.Second},
	}
	for i, opts := range cases {
		if _, err := NewExporter(opts); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
