package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "arbor"

// Metrics records engine events as Prometheus metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	Saves            *prometheus.CounterVec
	SaveDuration     *prometheus.HistogramVec
	Evaluations      *prometheus.CounterVec
	VisibleQuestions prometheus.Histogram
	Navigations      *prometheus.CounterVec
	Heals            *prometheus.CounterVec
}

// NewMetrics registers the engine metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the engine metrics on reg. gatherer backs Handler.
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		// Labels: type (question_create, question_update, ...), status (ok, error)
		Saves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_total",
			Help:      "Backend writes by type and outcome",
		}, []string{"type", "status"}),
		SaveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Backend write latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"type"}),
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Flow evaluations by group and whether the flow halted",
		}, []string{"group", "halted"}),
		VisibleQuestions: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "visible_questions",
			Help:      "Visible questions per evaluation",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		// Labels: direction (forward, backward), outcome (moved, blocked, completed)
		Navigations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Session navigations by direction and outcome",
		}, []string{"direction", "outcome"}),
		Heals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "healed_references_total",
			Help:      "Logic tree references repaired on load",
		}, []string{"kind"}),
	}
}

// Hooks returns lifecycle hooks that feed the metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			m.Saves.WithLabelValues(string(e.Type), status).Inc()
			m.SaveDuration.WithLabelValues(string(e.Type)).Observe(e.Duration.Seconds())
		},
		OnEvaluate: func(_ context.Context, e *domain.EvaluateEvent) {
			halted := "false"
			if e.Halted {
				halted = "true"
			}
			m.Evaluations.WithLabelValues(e.GroupID, halted).Inc()
			m.VisibleQuestions.Observe(float64(e.Visible))
		},
		OnNavigate: func(_ context.Context, e *domain.NavigateEvent) {
			outcome := "moved"
			switch {
			case e.Blocked:
				outcome = "blocked"
			case e.Completed:
				outcome = "completed"
			}
			m.Navigations.WithLabelValues(e.Direction, outcome).Inc()
		},
		OnHeal: func(_ context.Context, e *domain.HealEvent) {
			m.Heals.WithLabelValues("relinked").Add(float64(e.Relinked))
			m.Heals.WithLabelValues("dangling").Add(float64(e.Dangling))
			m.Heals.WithLabelValues("reattached").Add(float64(e.Reattached))
		},
	}
}

// Handler exposes the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
