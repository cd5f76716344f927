package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/embedlab/tact/ctrl"
	"github.com/embedlab/tact/eventbus"
	"github.com/embedlab/tact/hooking"
)

// Metrics is a hook that counts scheduler and event-bus activity for
// Prometheus. The same hook can be attached to both domains.
type Metrics struct {
	ticks           prometheus.Counter
	taskRuns        *prometheus.CounterVec
	taskPanics      *prometheus.CounterVec
	eventsDelivered *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "tact_scheduler_ticks_total",
			Help: "Number of completed scheduler ticks.",
		}),
		taskRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tact_task_runs_total",
			Help: "Number of completed task runs, per task.",
		}, []string{"task"}),
		taskPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tact_task_panics_total",
			Help: "Number of recovered task panics, per task.",
		}, []string{"task"}),
		eventsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tact_events_delivered_total",
			Help: "Number of events delivered through the bus, per type.",
		}, []string{"type"}),
	}
}

// Func updates the counters from scheduler and bus hook sites.
func (m *Metrics) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case ctrl.HookPosAfterTick:
		m.ticks.Inc()
	case ctrl.HookPosAfterTask:
		task := ctx.Item.(*ctrl.Task)
		m.taskRuns.WithLabelValues(task.Name()).Inc()
	case ctrl.HookPosTaskError:
		task := ctx.Item.(*ctrl.Task)
		m.taskPanics.WithLabelValues(task.Name()).Inc()
	case eventbus.HookPosAfterDelivery:
		e := ctx.Item.(eventbus.Event)
		m.eventsDelivered.WithLabelValues(e.Type).Inc()
	}
}

var _ hooking.Hook = (*Metrics)(nil)
