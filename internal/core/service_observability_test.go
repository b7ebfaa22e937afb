package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureAudit) Record(_ context.Context, entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

type metricCall struct {
	operation string
	success   bool
}

type captureMetrics struct {
	calls []metricCall
}

func (c *captureMetrics) Observe(_ context.Context, operation string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricCall{operation: operation, success: success})
}

type tickClock struct{ now time.Time }

func (c *tickClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func TestServiceRecordsAuditMetricsAndTraces(t *testing.T) {
	audit := &captureAudit{}
	metrics := &captureMetrics{}
	tracer := NewJSONTracer(nil)
	svc := newTestService(t,
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithClock(&tickClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}),
	)

	applyBlock(t, svc, 1,
		Extrinsic{Caller: "alice", Call: CreateCreature{}},
		Extrinsic{Caller: "bob", Call: TransferCreature{To: "bob", ID: 0}},
		Extrinsic{Caller: "alice", Call: CreateClaim{Claim: []byte{0xab, 0xcd}}},
	)

	var ops []string
	for _, e := range audit.entries {
		ops = append(ops, e.Operation+":"+string(e.Status))
	}
	want := "genesis:success,create:success,transfer:error,create_claim:success,apply_block:success"
	if got := strings.Join(ops, ","); got != want {
		t.Fatalf("audit operations = %s, want %s", got, want)
	}

	created := audit.entries[1]
	if created.Caller != "alice" || created.Height != 1 || created.Index != 0 || created.EntityID != "0" || created.Entity != EntityCreature {
		t.Fatalf("unexpected create entry %+v", created)
	}
	if created.Duration <= 0 || created.Timestamp.IsZero() {
		t.Fatalf("expected duration and timestamp, got %+v", created)
	}
	failed := audit.entries[2]
	if failed.Index != 1 || failed.EntityID != "0" || failed.Error == "" {
		t.Fatalf("unexpected failed entry %+v", failed)
	}
	if claim := audit.entries[3]; claim.EntityID != "abcd" || claim.Action != ActionCreate {
		t.Fatalf("unexpected claim entry %+v", claim)
	}

	if len(metrics.calls) != 5 || metrics.calls[2] != (metricCall{operation: "transfer", success: false}) {
		t.Fatalf("unexpected metrics %+v", metrics.calls)
	}

	spans := tracer.Entries()
	if len(spans) != 5 || spans[2].Status != "error" || spans[2].Error == "" {
		t.Fatalf("unexpected spans %+v", spans)
	}
	if spans[4].Operation != "apply_block" || spans[4].Status != "success" {
		t.Fatalf("unexpected block span %+v", spans[4])
	}
}

func TestServiceLogsThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := newTestService(t, WithLogger(logger))

	applyBlock(t, svc, 3,
		Extrinsic{Caller: "alice", Call: CreateClaim{Claim: []byte("x")}},
	)

	var sawFailure, sawBlock bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		switch rec["msg"] {
		case "operation failed":
			sawFailure = rec["operation"] == "create_claim" && rec["level"] == "WARN"
		case "block applied":
			sawBlock = rec["height"] == float64(3) && rec["failed"] == float64(1)
		}
	}
	if !sawFailure || !sawBlock {
		t.Fatalf("missing log records in %s", buf.String())
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if rec.Name() == "" || expvar.Get(rec.Name()) == nil {
		t.Fatalf("recorder not published as %q", rec.Name())
	}
	rec.Observe(context.Background(), "breed", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "breed", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	stats := rec.Snapshot().Operations
	if len(stats) != 1 {
		t.Fatalf("unexpected operations %+v", stats)
	}
	breed := stats["breed"]
	if breed.Success != 1 || breed.Errors != 1 || breed.TotalMS != 7 || breed.MaxMS != 5 {
		t.Fatalf("unexpected breed stats %+v", breed)
	}

	var published ExpvarMetricsSnapshot
	if err := json.Unmarshal([]byte(expvar.Get(rec.Name()).String()), &published); err != nil {
		t.Fatalf("decode expvar: %v", err)
	}
	if published.Operations["breed"].Success != 1 {
		t.Fatalf("published snapshot %+v", published)
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "revoke_claim")
	span.End(errors.New("claim not found"))

	var entry JSONTraceEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode span: %v", err)
	}
	if entry.Operation != "revoke_claim" || entry.Status != "error" || entry.Error != "claim not found" {
		t.Fatalf("unexpected span %+v", entry)
	}
	if entry.EndedAt.Before(entry.StartedAt) {
		t.Fatalf("span ends before it starts: %+v", entry)
	}
}

func TestSlogAuditRecorderLevels(t *testing.T) {
	var buf bytes.Buffer
	rec := NewSlogAuditRecorder(slog.New(slog.NewTextHandler(&buf, nil)))
	rec.Record(context.Background(), AuditEntry{Operation: "create", Caller: "alice", Status: AuditStatusSuccess})
	rec.Record(context.Background(), AuditEntry{Operation: "breed", Caller: "bob", Status: AuditStatusError, Error: "not owner"})

	out := buf.String()
	if !strings.Contains(out, "level=INFO msg=audit operation=create") {
		t.Fatalf("missing success record: %s", out)
	}
	if !strings.Contains(out, "level=WARN msg=audit operation=breed") || !strings.Contains(out, `error="not owner"`) {
		t.Fatalf("missing error record: %s", out)
	}
	if NewSlogAuditRecorder(nil) == nil {
		t.Fatalf("nil logger should fall back to the default")
	}
}
