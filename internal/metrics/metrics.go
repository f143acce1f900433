// Package metrics collects Prometheus metrics for refreshes and archiving.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the repository and the archive worker report to.
type Recorder interface {
	RecordRefresh(kind string, err error)
	RecordRefreshLatency(kind string, d time.Duration)
	RecordArticlesFetched(n int)
	RecordSourcesInserted(n int)
	RecordArchive(outcome string)
}

const (
	KindHeadlines = "headlines"
	KindSources   = "sources"

	OutcomeArchived = "archived"
	OutcomeFailed   = "failed"
)

type Collector struct {
	refreshes       *prometheus.CounterVec
	refreshLatency  *prometheus.HistogramVec
	articlesFetched prometheus.Counter
	sourcesInserted prometheus.Counter
	archives        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_refresh_total",
			Help: "Provider refreshes by kind and result.",
		}, []string{"kind", "result"}),
		refreshLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "newsdesk_refresh_latency_seconds",
			Help:    "Provider refresh latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		articlesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_articles_fetched_total",
			Help: "Articles returned by the provider.",
		}),
		sourcesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsdesk_sources_inserted_total",
			Help: "Sources offered to the local cache.",
		}),
		archives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsdesk_archive_jobs_total",
			Help: "Archive jobs by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.refreshes,
		c.refreshLatency,
		c.articlesFetched,
		c.sourcesInserted,
		c.archives,
	)
	return c
}

func (c *Collector) RecordRefresh(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.refreshes.WithLabelValues(kind, result).Inc()
}

func (c *Collector) RecordRefreshLatency(kind string, d time.Duration) {
	c.refreshLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (c *Collector) RecordArticlesFetched(n int) {
	c.articlesFetched.Add(float64(n))
}

func (c *Collector) RecordSourcesInserted(n int) {
	c.sourcesInserted.Add(float64(n))
}

func (c *Collector) RecordArchive(outcome string) {
	c.archives.WithLabelValues(outcome).Inc()
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used by one-shot commands and tests.
type Nop struct{}

func (Nop) RecordRefresh(string, error)                {}
func (Nop) RecordRefreshLatency(string, time.Duration) {}
func (Nop) RecordArticlesFetched(int)                  {}
func (Nop) RecordSourcesInserted(int)                  {}
func (Nop) RecordArchive(string)                       {}
