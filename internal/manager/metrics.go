package manager

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the Manager's worker-pool and task-assignment
// counters on a /metrics endpoint, independent of the TCP/UDP control
// protocol itself.
type Metrics struct {
	WorkersReady    prometheus.Gauge
	WorkersBusy     prometheus.Gauge
	WorkersDead     prometheus.Gauge
	TasksAssigned   prometheus.Counter
	TasksReassigned prometheus.Counter
}

// NewMetrics registers the Manager's gauges and counters against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WorkersReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapreduce", Subsystem: "manager", Name: "workers_ready",
			Help: "Number of workers currently in the Ready state.",
		}),
		WorkersBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapreduce", Subsystem: "manager", Name: "workers_busy",
			Help: "Number of workers currently in the Busy state.",
		}),
		WorkersDead: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mapreduce", Subsystem: "manager", Name: "workers_dead",
			Help: "Number of workers tombstoned as Dead.",
		}),
		TasksAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapreduce", Subsystem: "manager", Name: "tasks_assigned_total",
			Help: "Total number of task assignment messages sent to workers.",
		}),
		TasksReassigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mapreduce", Subsystem: "manager", Name: "tasks_reassigned_total",
			Help: "Total number of tasks pushed to a stage's replay queue.",
		}),
	}
	reg.MustRegister(m.WorkersReady, m.WorkersBusy, m.WorkersDead, m.TasksAssigned, m.TasksReassigned)
	return m
}

// Refresh recomputes the worker-state gauges from the registry's
// current population.
func (m *Metrics) Refresh(r *Registry) {
	var ready, busy, dead float64
	r.mu.Lock()
	for _, w := range r.workers {
		switch w.State {
		case Ready:
			ready++
		case Busy:
			busy++
		case Dead:
			dead++
		}
	}
	r.mu.Unlock()
	m.WorkersReady.Set(ready)
	m.WorkersBusy.Set(busy)
	m.WorkersDead.Set(dead)
}
