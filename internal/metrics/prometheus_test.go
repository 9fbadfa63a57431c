package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveBatch(12, 150*time.Millisecond, OutcomeSuccess)
	pr.ObserveBatch(0, time.Millisecond, OutcomeRejected)
	pr.IncKeywordsAdded("expand", 17)
	pr.IncExportItem(true)
	pr.IncExportItem(false)
	pr.ObservePublish(12, 40*time.Millisecond, OutcomeSuccess)
	pr.IncGenerativeFallback("copywriter")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("expected metrics, got none")
	}

	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{"seoflood_batch_duration_seconds", "seoflood_export_items_total", "seoflood_published_pages_total"} {
		if !names[want] {
			t.Fatalf("expected metric %s to be registered, got %v", want, names)
		}
	}
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncKeywordsAdded("manual", 1)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "seoflood_keywords_added_total") {
		t.Fatalf("expected keywords counter in scrape output, got %q", rec.Body.String())
	}
}

func TestNilRecorderMethodsAreSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.ObserveBatch(1, time.Second, OutcomeSuccess)
	pr.IncExportItem(true)

	OrNoop(nil).IncKeywordsAdded("manual", 1)
}
