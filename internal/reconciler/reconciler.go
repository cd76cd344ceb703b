// Package reconciler runs the periodic cycle that walks every Nomad job,
// resolves per-task image freshness, and republishes the metrics store.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/jmgilman/driftwatch/internal/freshness"
	"github.com/jmgilman/driftwatch/internal/image"
	"github.com/jmgilman/driftwatch/internal/metrics"
	"github.com/jmgilman/driftwatch/internal/nomad"
	"github.com/jmgilman/driftwatch/internal/slogger"
)

// DefaultInterval is the pause between reconciliation cycles.
const DefaultInterval = 15 * time.Minute

// Resolver classifies an image reference as up to date or out of date.
// *freshness.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, ref image.Reference) (freshness.Result, error)
}

// Publisher receives the full result set of a cycle. *metrics.Store
// satisfies it.
type Publisher interface {
	Publish(results []metrics.TaskResult)
	ObserveCycle(d time.Duration)
}

// Config wires the reconciler's collaborators.
type Config struct {
	Nomad    nomad.Client
	Resolver Resolver
	Store    Publisher

	// Interval between cycles. Defaults to DefaultInterval.
	Interval time.Duration

	// Notify optionally triggers an out-of-cycle reconciliation, e.g. from
	// the event-stream listener. May be nil.
	Notify <-chan struct{}
}

// Reconciler drives the reconciliation loop.
type Reconciler struct {
	nomad    nomad.Client
	resolver Resolver
	store    Publisher
	interval time.Duration
	notify   <-chan struct{}
}

// New creates a Reconciler from the given configuration.
func New(cfg Config) *Reconciler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		nomad:    cfg.Nomad,
		resolver: cfg.Resolver,
		store:    cfg.Store,
		interval: interval,
		notify:   cfg.Notify,
	}
}

// Run executes cycles until the context is cancelled: one immediately, then
// one per interval tick or notifier wake-up. A failed cycle is logged and
// the loop waits for the next trigger; it never stops the process.
func (r *Reconciler) Run(ctx context.Context) error {
	log := slogger.L(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("reconcile cycle aborted", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.notify:
			log.Debug("reconcile triggered by event stream")
		}
	}
}

// Cycle performs a single reconciliation pass. Job-list and job-detail
// failures abort the cycle; every per-task failure is absorbed here so one
// broken image never blocks its siblings.
func (r *Reconciler) Cycle(ctx context.Context) error {
	log := slogger.L(ctx)
	start := time.Now()

	stubs, err := r.nomad.Jobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	var results []metrics.TaskResult
	for _, stub := range stubs {
		if stub.ParentID != "" {
			// Dispatched and periodic instances would double-count their
			// parent's tasks.
			log.Debug("skipping child job", "job", stub.ID, "parent", stub.ParentID)
			continue
		}

		job, err := r.nomad.Job(ctx, stub.ID)
		if err != nil {
			return fmt.Errorf("read job %q: %w", stub.ID, err)
		}

		for _, group := range job.TaskGroups {
			for _, task := range group.Tasks {
				result, ok := r.resolveTask(ctx, job.Name, group.Name, task)
				if !ok {
					continue
				}
				results = append(results, metrics.TaskResult{
					Job:    job.Name,
					Group:  group.Name,
					Task:   task.Name,
					Result: result,
				})
			}
		}
	}

	r.store.Publish(results)
	r.store.ObserveCycle(time.Since(start))

	log.Info("reconcile complete",
		"jobs", len(stubs),
		"tasks", len(results),
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// resolveTask produces the freshness verdict for one task, or false when
// the task is skipped this cycle.
func (r *Reconciler) resolveTask(ctx context.Context, jobName, groupName string, task nomad.Task) (freshness.Result, bool) {
	log := slogger.L(ctx).With("job", jobName, "group", groupName, "task", task.Name)

	switch cfg := task.Config.(type) {
	case nomad.DockerConfig:
		ref, err := image.ParseReference(cfg.Image)
		if err != nil {
			log.Warn("skipping task with unparsable image", "image", cfg.Image, "error", err)
			return nil, false
		}

		result, err := r.resolver.Resolve(ctx, ref)
		if err != nil {
			log.Warn("skipping task with unresolved freshness", "image", cfg.Image, "error", err)
			return nil, false
		}
		return result, true

	case nomad.RawExecConfig:
		// Nothing to compare against; report trivially up to date.
		return freshness.UpToDate{Version: ""}, true

	case nomad.OtherConfig:
		log.Warn("skipping task with unsupported driver", "driver", cfg.Driver)
		return nil, false

	default:
		return nil, false
	}
}
