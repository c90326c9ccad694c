// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"CTIScraper/internal/domain"
	"CTIScraper/internal/ports"
)

const namespace = "cti_scraper"

// Prometheus records pipeline outcomes on its own registry.
type Prometheus struct {
	registry          *prometheus.Registry
	sourcePolls       *prometheus.CounterVec
	pollDuration      *prometheus.HistogramVec
	articlesSaved     prometheus.Counter
	duplicatesSkipped prometheus.Counter
	chunksClassified  *prometheus.CounterVec
}

var _ ports.Metrics = (*Prometheus)(nil)

// NewPrometheus registers every collector plus the Go runtime collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		sourcePolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_polls_total",
				Help:      "Poll attempts by check method and result.",
			},
			[]string{"method", "result"},
		),
		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "source_poll_duration_seconds",
				Help:      "Wall time of one source poll.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"method"},
		),
		articlesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_saved_total",
			Help:      "Articles persisted after deduplication.",
		}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Candidates rejected as duplicates.",
		}),
		chunksClassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_classified_total",
				Help:      "Classified chunks by label.",
			},
			[]string{"label"},
		),
	}

	p.registry.MustRegister(
		p.sourcePolls,
		p.pollDuration,
		p.articlesSaved,
		p.duplicatesSkipped,
		p.chunksClassified,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// SourcePolled counts one poll attempt.
func (p *Prometheus) SourcePolled(method domain.CheckMethod, success bool, latency time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	p.sourcePolls.WithLabelValues(string(method), result).Inc()
	p.pollDuration.WithLabelValues(string(method)).Observe(latency.Seconds())
}

func (p *Prometheus) ArticlesSaved(n int) {
	if n > 0 {
		p.articlesSaved.Add(float64(n))
	}
}

func (p *Prometheus) DuplicatesSkipped(n int) {
	if n > 0 {
		p.duplicatesSkipped.Add(float64(n))
	}
}

func (p *Prometheus) ChunksClassified(label string, n int) {
	if n > 0 {
		p.chunksClassified.WithLabelValues(label).Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry for extra collectors.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Noop discards every observation.
type Noop struct{}

var _ ports.Metrics = Noop{}

func (Noop) SourcePolled(domain.CheckMethod, bool, time.Duration) {}
func (Noop) ArticlesSaved(int)                                    {}
func (Noop) DuplicatesSkipped(int)                                {}
func (Noop) ChunksClassified(string, int)                         {}
