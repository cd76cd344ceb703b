package cmd

import (
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/driftwatch/internal/freshness"
	"github.com/jmgilman/driftwatch/internal/metrics"
	"github.com/jmgilman/driftwatch/internal/nomad"
	"github.com/jmgilman/driftwatch/internal/reconciler"
	"github.com/jmgilman/driftwatch/internal/registry"
	"github.com/jmgilman/driftwatch/internal/slogger"
)

// failStale is the --fail-stale flag value.
var failStale bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single reconciliation cycle and print the results",
	Long: `Run one reconciliation cycle against the configured Nomad cluster and
print every task's freshness verdict as a table, without starting the
metrics server. Useful for cron jobs and debugging.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&failStale, "fail-stale", false, "exit non-zero when any task is out of date")
	rootCmd.AddCommand(checkCmd)
}

// captureStore collects a cycle's results instead of publishing gauges.
type captureStore struct {
	results []metrics.TaskResult
}

func (c *captureStore) Publish(results []metrics.TaskResult) {
	c.results = results
}

func (c *captureStore) ObserveCycle(time.Duration) {}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx := slogger.WithLogger(cmd.Context(), logger)

	nomadClient := nomad.NewClient(nomad.ClientConfig{
		Address:    cfg.Nomad.Address,
		HTTPClient: &http.Client{Timeout: cfg.Registry.Timeout},
	})
	registryClient := registry.NewClient(registry.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.Registry.Timeout},
		Insecure:   cfg.Registry.Insecure,
	})

	store := &captureStore{}
	rec := reconciler.New(reconciler.Config{
		Nomad:    nomadClient,
		Resolver: freshness.NewResolver(registryClient),
		Store:    store,
	})

	start := time.Now()
	if err := rec.Cycle(ctx); err != nil {
		return fmt.Errorf("reconcile cycle failed: %w", err)
	}

	stale := 0
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tGROUP\tTASK\tSTATUS\tCURRENT\tNEWEST")
	for _, r := range store.results {
		switch v := r.Result.(type) {
		case freshness.UpToDate:
			fmt.Fprintf(w, "%s\t%s\t%s\tup-to-date\t%s\t%s\n", r.Job, r.Group, r.Task, v.Version, v.Version)
		case freshness.OutOfDate:
			stale++
			fmt.Fprintf(w, "%s\t%s\t%s\tout-of-date\t%s\t%s\n", r.Job, r.Group, r.Task, v.Current, v.Newest)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nChecked %d tasks in %v; %d out of date\n",
		len(store.results), time.Since(start).Round(time.Millisecond), stale)

	if failStale && stale > 0 {
		return fmt.Errorf("%d tasks are out of date", stale)
	}
	return nil
}
