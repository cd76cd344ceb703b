package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/driftwatch/internal/eventstream"
	"github.com/jmgilman/driftwatch/internal/freshness"
	"github.com/jmgilman/driftwatch/internal/metrics"
	"github.com/jmgilman/driftwatch/internal/nomad"
	"github.com/jmgilman/driftwatch/internal/reconciler"
	"github.com/jmgilman/driftwatch/internal/registry"
	"github.com/jmgilman/driftwatch/internal/slogger"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the freshness exporter daemon",
	Long: `Run the reconciliation loop and expose its results on the /metrics
endpoint until interrupted. SIGINT and SIGTERM trigger a graceful shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	ctx := slogger.WithLogger(cmd.Context(), logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	store := metrics.NewStore(reg)

	nomadClient := nomad.NewClient(nomad.ClientConfig{
		Address:    cfg.Nomad.Address,
		HTTPClient: &http.Client{Timeout: cfg.Registry.Timeout},
	})
	registryClient := registry.NewClient(registry.ClientConfig{
		HTTPClient: &http.Client{Timeout: cfg.Registry.Timeout},
		Insecure:   cfg.Registry.Insecure,
	})

	var (
		listener *eventstream.Listener
		notify   <-chan struct{}
	)
	if cfg.Nomad.EventStream {
		listener = eventstream.NewListener(eventstream.ListenerConfig{Address: cfg.Nomad.Address})
		notify = listener.Notify()
	}

	rec := reconciler.New(reconciler.Config{
		Nomad:    nomadClient,
		Resolver: freshness.NewResolver(registryClient),
		Store:    store,
		Interval: cfg.Reconcile.Interval,
		Notify:   notify,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting driftwatch",
		"nomad", cfg.Nomad.Address,
		"listen", cfg.Server.Listen,
		"interval", cfg.Reconcile.Interval,
		"event_stream", cfg.Nomad.EventStream)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rec.Run(ctx)
	})

	if listener != nil {
		g.Go(func() error {
			return listener.Run(ctx)
		})
	}

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
