package core

import (
	"context"
	"time"

	"ledgercore/internal/claims"
	"ledgercore/internal/creatures"
	"ledgercore/internal/entropy"
	"ledgercore/pkg/domain"
)

// Logger is the structured logging surface used by the service. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock supplies wall-clock time for audit timestamps and durations. It never
// influences ledger state.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus reports the outcome of an audited operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one dispatched operation.
type AuditEntry struct {
	Operation string
	Module    string
	Entity    domain.EntityType
	Action    domain.Action
	EntityID  string
	Caller    domain.AccountID
	Height    uint64
	Index     uint32
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes operation outcomes and latencies.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan ends a span with the operation outcome.
type TraceSpan interface {
	End(err error)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	clock      Clock
	logger     Logger
	audit      AuditRecorder
	metrics    MetricsRecorder
	tracer     Tracer
	randomness domain.RandomnessSource
	creatures  creatures.Config
	claims     claims.Config
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:      ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:     noopLogger{},
		audit:      noopAuditRecorder{},
		metrics:    noopMetricsRecorder{},
		tracer:     noopTracer{},
		randomness: entropy.NewSeedChain(domain.Seed{}),
		creatures:  creatures.DefaultConfig(),
		claims:     claims.DefaultConfig(),
	}
}

// WithClock overrides the clock used for audit timestamps and durations.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRandomness sets the per-block seed source.
func WithRandomness(source domain.RandomnessSource) Option {
	return func(o *serviceOptions) {
		if source != nil {
			o.randomness = source
		}
	}
}

// WithCreatureConfig sets the creature registry parameters.
func WithCreatureConfig(cfg creatures.Config) Option {
	return func(o *serviceOptions) { o.creatures = cfg }
}

// WithClaimConfig sets the claim registry parameters.
func WithClaimConfig(cfg claims.Config) Option {
	return func(o *serviceOptions) { o.claims = cfg }
}
