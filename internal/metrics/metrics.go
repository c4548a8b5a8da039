// Package metrics exposes Prometheus counters for registry, oracle and issuer
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"carbon-scribe/credit-issuer/credit-issuer-backend/pkg/errs"
)

const namespace = "carbon_credit"

// Recorder counts operation outcomes. A nil *Recorder records nothing.
type Recorder struct {
	operations    *prometheus.CounterVec
	creditsMinted prometheus.Counter
	feederRuns    *prometheus.CounterVec
}

// New registers the collectors with reg. It returns nil when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		return nil
	}
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operations by component, operation and outcome.",
		}, []string{"component", "operation", "outcome"}),
		creditsMinted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_minted_total",
			Help:      "Credit tokens minted.",
		}),
		feederRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feeder_runs_total",
			Help:      "Average emissions factor feeder runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.operations, r.creditsMinted, r.feederRuns)
	return r
}

// Observe records the outcome of one operation. The outcome label is "ok",
// the error kind for rule violations, or "error".
func (r *Recorder) Observe(component, operation string, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(component, operation, outcome(err)).Inc()
}

func (r *Recorder) CreditsMinted(tokens uint64) {
	if r == nil {
		return
	}
	r.creditsMinted.Add(float64(tokens))
}

func (r *Recorder) FeederRun(err error) {
	if r == nil {
		return
	}
	r.feederRuns.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind, ok := errs.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}
