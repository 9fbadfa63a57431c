package metrics

import (
	"net/http"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	batchDuration    *prom.HistogramVec
	batchPages       prom.Histogram
	keywordsAdded    *prom.CounterVec
	exportItems      *prom.CounterVec
	publishDuration  *prom.HistogramVec
	publishedPages   prom.Counter
	generativeFallbk *prom.CounterVec
}

var _ Recorder = (*PrometheusRecorder)(nil)

// NewPrometheusRecorder constructs and registers the pipeline metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.batchDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "seoflood",
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch generation runs by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.batchPages = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "seoflood",
			Name:      "batch_pages",
			Help:      "Number of pages produced per successful batch",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		})
		pr.keywordsAdded = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "seoflood",
			Name:      "keywords_added_total",
			Help:      "Keywords added to session stores by source",
		}, []string{"source"})
		pr.exportItems = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "seoflood",
			Name:      "export_items_total",
			Help:      "Exported documents by result",
		}, []string{"result"})
		pr.publishDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "seoflood",
			Name:      "publish_duration_seconds",
			Help:      "Duration of publish operations by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"})
		pr.publishedPages = prom.NewCounter(prom.CounterOpts{
			Namespace: "seoflood",
			Name:      "published_pages_total",
			Help:      "Pages persisted through successful publish operations",
		})
		pr.generativeFallbk = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "seoflood",
			Name:      "generative_fallbacks_total",
			Help:      "Times the template output replaced a failed generative call",
		}, []string{"operation"})
		reg.MustRegister(pr.batchDuration, pr.batchPages, pr.keywordsAdded, pr.exportItems, pr.publishDuration, pr.publishedPages, pr.generativeFallbk)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBatch(pages int, d time.Duration, outcome Outcome) {
	if p == nil || p.batchDuration == nil {
		return
	}
	p.batchDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		p.batchPages.Observe(float64(pages))
	}
}

func (p *PrometheusRecorder) IncKeywordsAdded(source string, n int) {
	if p == nil || p.keywordsAdded == nil || n <= 0 {
		return
	}
	p.keywordsAdded.WithLabelValues(source).Add(float64(n))
}

func (p *PrometheusRecorder) IncExportItem(success bool) {
	if p == nil || p.exportItems == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.exportItems.WithLabelValues(res).Inc()
}

func (p *PrometheusRecorder) ObservePublish(pages int, d time.Duration, outcome Outcome) {
	if p == nil || p.publishDuration == nil {
		return
	}
	p.publishDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
	if outcome == OutcomeSuccess {
		p.publishedPages.Add(float64(pages))
	}
}

func (p *PrometheusRecorder) IncGenerativeFallback(operation string) {
	if p == nil || p.generativeFallbk == nil {
		return
	}
	p.generativeFallbk.WithLabelValues(operation).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
