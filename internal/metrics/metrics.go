// Package metrics holds the prometheus collectors of the propagation
// engine.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "cascade"

const (
	MetricDepthCapHits      = "depth_cap_hits_total"
	MetricStepLimitHits     = "step_limit_hits_total"
	MetricTasks             = "tasks_total"
	MetricFieldEvaluations  = "field_evaluations_total"
	MetricOperationsApplied = "operations_applied_total"
	MetricOperationsFailed  = "operations_failed_total"
	MetricCacheEvictions    = "cache_scope_evictions_total"
	MetricRecordFetches     = "record_fetches_total"
)

// Evaluation outcomes.
const (
	OutcomeChanged   = "changed"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeError     = "error"
)

// Metrics is the set of engine collectors.
type Metrics struct {
	DepthCapHits      prometheus.Counter
	StepLimitHits     prometheus.Counter
	Tasks             prometheus.Counter
	FieldEvaluations  *prometheus.CounterVec
	OperationsApplied prometheus.Counter
	OperationsFailed  prometheus.Counter
	CacheEvictions    prometheus.Counter
	RecordFetches     prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DepthCapHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricDepthCapHits,
			Help:      "Cascades truncated by the propagation depth cap.",
		}),
		StepLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricStepLimitHits,
			Help:      "Operations stopped by the per-operation task quota.",
		}),
		Tasks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricTasks,
			Help:      "Propagation tasks processed.",
		}),
		FieldEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricFieldEvaluations,
			Help:      "Computed field evaluations by field kind and outcome.",
		}, []string{"kind", "outcome"}),
		OperationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricOperationsApplied,
			Help:      "Record updates committed to storage.",
		}),
		OperationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricOperationsFailed,
			Help:      "Record updates storage rejected.",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricCacheEvictions,
			Help:      "Cache scopes released by expiry instead of dispose.",
		}),
		RecordFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricRecordFetches,
			Help:      "Storage reads issued for records missing from the cache.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.DepthCapHits,
			m.StepLimitHits,
			m.Tasks,
			m.FieldEvaluations,
			m.OperationsApplied,
			m.OperationsFailed,
			m.CacheEvictions,
			m.RecordFetches,
		)
	}
	return m
}

// Evaluated counts one computed field evaluation.
func (m *Metrics) Evaluated(kind, outcome string) {
	m.FieldEvaluations.WithLabelValues(kind, outcome).Inc()
}

// WriteText writes every gathered metric family in the prometheus text
// exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
