// Package metrics collects per-run counters for mutation operations and can
// render them in the Prometheus text exposition format at the end of a run.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Run holds the counters for a single engine run. A nil *Run is valid and
// records nothing, so callers can pass metrics through unconditionally.
type Run struct {
	registry *prometheus.Registry

	messagesDeleted prometheus.Counter
	messagesMoved   prometheus.Counter
	failures        *prometheus.CounterVec
	retries         prometheus.Counter
	queuesDeleted   prometheus.Counter
}

func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		messagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jmsqctl_messages_deleted_total",
			Help: "Messages deleted during this run.",
		}),
		messagesMoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jmsqctl_messages_moved_total",
			Help: "Messages moved during this run.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jmsqctl_message_failures_total",
			Help: "Per-message failures during this run, by kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jmsqctl_retries_total",
			Help: "Retried mutation attempts during this run.",
		}),
		queuesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jmsqctl_queues_deleted_total",
			Help: "Queues deleted during this run.",
		}),
	}
	r.registry.MustRegister(r.messagesDeleted, r.messagesMoved, r.failures, r.retries, r.queuesDeleted)
	return r
}

func (r *Run) MessageDeleted() {
	if r != nil {
		r.messagesDeleted.Inc()
	}
}

func (r *Run) MessageMoved() {
	if r != nil {
		r.messagesMoved.Inc()
	}
}

func (r *Run) Failure(kind string) {
	if r != nil {
		r.failures.WithLabelValues(kind).Inc()
	}
}

func (r *Run) Retry() {
	if r != nil {
		r.retries.Inc()
	}
}

func (r *Run) QueueDeleted() {
	if r != nil {
		r.queuesDeleted.Inc()
	}
}

// Write renders the run's counters in text exposition format.
func (r *Run) Write(w io.Writer) error {
	if r == nil {
		return nil
	}
	families, err := r.registry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
