// Package metrics publishes per-task freshness results as Prometheus
// gauges. The store is constructed against an injected registry so the
// reconciler and the scrape handler share it without package-level state.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmgilman/driftwatch/internal/freshness"
)

// TaskResult pairs a resolved task with its freshness verdict.
type TaskResult struct {
	Job    string
	Group  string
	Task   string
	Result freshness.Result
}

// Store holds the freshness gauges. Publish replaces the whole label space
// in one critical section, so a scrape observes either the previous cycle's
// full set or the new one, never a partially cleared state.
type Store struct {
	mu sync.Mutex

	upToDate      *prometheus.GaugeVec
	outOfDate     *prometheus.GaugeVec
	versions      *prometheus.GaugeVec
	lastReconcile prometheus.Gauge
	cycleDuration prometheus.Gauge
}

// NewStore creates the gauges and registers them with reg.
func NewStore(reg prometheus.Registerer) *Store {
	s := &Store{
		upToDate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "driftwatch_up_to_date",
			Help: "Set to 1 for tasks running the newest published image version, 0 otherwise.",
		}, []string{"job", "group", "task"}),
		outOfDate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "driftwatch_out_of_date",
			Help: "Set to 1 for tasks with a newer published image version available, 0 otherwise.",
		}, []string{"job", "group", "task"}),
		versions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "driftwatch_versions",
			Help: "Current and newest known image version per task.",
		}, []string{"job", "group", "task", "current", "newest"}),
		lastReconcile: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_last_reconcile_timestamp_seconds",
			Help: "Unix time of the last completed reconciliation cycle.",
		}),
		cycleDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftwatch_reconcile_duration_seconds",
			Help: "Wall-clock duration of the last reconciliation cycle.",
		}),
	}

	reg.MustRegister(s.upToDate, s.outOfDate, s.versions, s.lastReconcile, s.cycleDuration)
	return s
}

// Publish clears every previously-set series and sets fresh values for the
// given results. Clearing first prevents stale series for tasks that were
// redeployed or removed since the last cycle.
func (s *Store) Publish(results []TaskResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upToDate.Reset()
	s.outOfDate.Reset()
	s.versions.Reset()

	for _, r := range results {
		labels := prometheus.Labels{"job": r.Job, "group": r.Group, "task": r.Task}

		switch v := r.Result.(type) {
		case freshness.UpToDate:
			s.upToDate.With(labels).Set(1)
			s.outOfDate.With(labels).Set(0)
			s.versions.With(prometheus.Labels{
				"job": r.Job, "group": r.Group, "task": r.Task,
				"current": v.Version, "newest": v.Version,
			}).Set(1)
		case freshness.OutOfDate:
			s.upToDate.With(labels).Set(0)
			s.outOfDate.With(labels).Set(1)
			s.versions.With(prometheus.Labels{
				"job": r.Job, "group": r.Group, "task": r.Task,
				"current": v.Current, "newest": v.Newest,
			}).Set(1)
		}
	}

	s.lastReconcile.SetToCurrentTime()
}

// ObserveCycle records the duration of a completed cycle.
func (s *Store) ObserveCycle(d time.Duration) {
	s.cycleDuration.Set(d.Seconds())
}
