package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/hotsteps/steps"
	"github.com/dshills/hotsteps/steps/action"
	"github.com/dshills/hotsteps/steps/emit"
	"github.com/dshills/hotsteps/steps/reload"
	"github.com/dshills/hotsteps/steps/script"
)

func runCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Run a step script and reconcile it on every save",
		Long: `Run executes every step of the script, then watches the file. When it
changes, steps from the first edit onwards are undone (newest first) and the
new steps run. Steps before the edit keep their results.

Commands read from stdin while running:
  goto <step>    undo or run steps until <step> is the last one run
  states         show every tracked step
  result <step>  show the stored result of a step
  quit           stop`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.Script.Path
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no script given: pass a path or set script.path")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.run(ctx, path, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.Bool("watch", true, "Reload the script when it changes")
	flags.Int("debounce-ms", 0, "Quiet period after a change before reloading")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.Bool("trace", false, "Log OpenTelemetry spans at debug level")

	_ = a.v.BindPFlag("script.watch", flags.Lookup("watch"))
	_ = a.v.BindPFlag("script.debounce_ms", flags.Lookup("debounce-ms"))
	_ = a.v.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	_ = a.v.BindPFlag("tracing.enabled", flags.Lookup("trace"))

	return cmd
}

func (a *app) run(ctx context.Context, path string, in io.Reader, out io.Writer) error {
	logger := a.logger

	journal, err := openJournal(a.cfg.Journal)
	if err != nil {
		return err
	}
	if journal != nil {
		defer func() { _ = journal.Close() }()
	}

	deps := engineDeps{journal: journal}

	var registry *prometheus.Registry
	if a.cfg.Metrics.Addr != "" {
		registry = prometheus.NewRegistry()
		deps.registry = registry
	}

	if tp := newTracerProvider(a.cfg.Tracing, logger); tp != nil {
		deps.spans = emit.NewOTelEmitter(tp.Tracer("hotsteps"))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = deps.spans.Flush(shutdownCtx)
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	engine, err := newEngine(a.cfg, logger, deps)
	if err != nil {
		return err
	}

	actions := action.Builtin(logger, &http.Client{Timeout: 30 * time.Second})
	load := func(p string) (steps.Sequence, error) {
		return script.LoadFile(p, actions)
	}

	seq, err := load(path)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	runner := reload.NewRunner(engine, logger)
	runner.Start(gctx)
	defer func() { _ = runner.Close() }()

	logger.Info("running script", "path", path, "steps", len(seq), "run_id", engine.RunID())
	if err := runner.Apply(gctx, seq); err != nil {
		// Stay up: saving a fixed script reconciles from here.
		logger.Error("script stopped at a failing step", "error", err)
	}
	if err := showStates(gctx, runner, out); err != nil {
		return err
	}

	if a.cfg.Script.Watch {
		w := reload.NewWatcher(path, load, runner, a.cfg.Script.Debounce(), logger)
		g.Go(func() error { return w.Run(gctx) })
	}
	if registry != nil {
		g.Go(func() error { return serveMetrics(gctx, a.cfg.Metrics.Addr, registry, logger) })
	}
	g.Go(func() error { return prompt(gctx, runner, in, out) })

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("metrics server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
