package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"ledgercore/internal/config"
	"ledgercore/internal/core"
	"ledgercore/internal/entropy"
	"ledgercore/internal/telemetry"
	"ledgercore/plugins/herd"
)

// node is an opened ledger with its observability wiring.
type node struct {
	cfg      config.Config
	logger   *slog.Logger
	svc      *core.Service
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	closers  []func(context.Context) error
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (a *app) openNode(ctx context.Context) (*node, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log, a.stderr)
	n := &node{cfg: cfg, logger: logger}

	creatureCfg, err := cfg.Ledger.CreatureConfig()
	if err != nil {
		return nil, err
	}
	seed, err := cfg.Ledger.Seed()
	if err != nil {
		return nil, err
	}
	engine := core.NewRulesEngineForClaims(cfg.Ledger.ClaimConfig())
	store, err := core.OpenLedgerStore(cfg.Storage, engine, logger.With("component", "badger"))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	n.closers = append(n.closers, func(context.Context) error { return store.Close() })

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithCreatureConfig(creatureCfg),
		core.WithClaimConfig(cfg.Ledger.ClaimConfig()),
		core.WithRandomness(entropy.NewSeedChain(seed)),
		core.WithAuditRecorder(core.NewSlogAuditRecorder(logger.With("component", "audit"))),
	}

	switch cfg.Telemetry.Metrics {
	case config.MetricsExpvar:
		n.expvar = core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(n.expvar))
	case config.MetricsPrometheus:
		n.registry = prometheus.NewRegistry()
		opts = append(opts, core.WithMetricsRecorder(telemetry.NewPrometheusRecorder(n.registry)))
	}
	if a.metricsOut != "" && n.registry == nil {
		n.expvar = nil
		n.registry = prometheus.NewRegistry()
		opts = append(opts, core.WithMetricsRecorder(telemetry.NewPrometheusRecorder(n.registry)))
	}

	switch cfg.Telemetry.Tracing {
	case config.TraceJSON:
		opts = append(opts, core.WithTracer(core.NewJSONTracer(a.stderr)))
	case config.TraceOpenTelemetry:
		provider, err := telemetry.NewProvider(telemetry.TracingConfig{Exporter: telemetry.ExporterStdout, Writer: a.stderr, ServiceName: "ledgercore"})
		if err != nil {
			_ = n.Close(ctx)
			return nil, err
		}
		n.closers = append(n.closers, provider.Shutdown)
		opts = append(opts, core.WithTracer(provider.Tracer()))
	}

	n.svc = core.NewService(store, opts...)
	if a.herdLimit > 0 {
		if _, err := n.svc.InstallPlugin(herd.New(a.herdLimit)); err != nil {
			_ = n.Close(ctx)
			return nil, err
		}
	}
	return n, nil
}

// closeNode writes the Prometheus textfile when requested and closes n.
func (a *app) closeNode(ctx context.Context, n *node) error {
	var errs []error
	if a.metricsOut != "" && n.registry != nil {
		if err := prometheus.WriteToTextfile(a.metricsOut, n.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if n.expvar != nil {
		for op, stats := range n.expvar.Snapshot().Operations {
			n.logger.Debug("operation metrics", "operation", op, "success", stats.Success, "errors", stats.Errors, "total_ms", stats.TotalMS)
		}
	}
	errs = append(errs, n.Close(ctx))
	return errors.Join(errs...)
}

// Close releases resources in reverse acquisition order.
func (n *node) Close(ctx context.Context) error {
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		errs = append(errs, n.closers[i](ctx))
	}
	n.closers = nil
	return errors.Join(errs...)
}

// withNode opens a node, runs fn and closes the node.
func (a *app) withNode(ctx context.Context, fn func(*node) error) (err error) {
	n, err := a.openNode(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.closeNode(ctx, n))
	}()
	return fn(n)
}
