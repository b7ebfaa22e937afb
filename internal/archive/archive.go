// Package archive writes ledger snapshots to a blob store and reads them
// back. Each snapshot is a single JSON document keyed by height and a
// random id, so keys sort by height.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledgercore/internal/blob"
	"ledgercore/pkg/domain"
)

// Format tags the document layout.
const Format = "ledgercore.snapshot/v1"

const (
	keyPrefix   = "snapshots/"
	contentType = "application/json"
)

// ErrNoSnapshots is returned by Latest when the store holds no snapshot.
var ErrNoSnapshots = errors.New("archive: no snapshots")

// Ledger is the state source and sink an Archiver works against.
type Ledger interface {
	ExportState(ctx context.Context) (domain.Snapshot, error)
	RestoreState(ctx context.Context, snapshot domain.Snapshot) error
}

// Document is the on-blob representation of a snapshot.
type Document struct {
	Format    string                 `json:"format"`
	ID        string                 `json:"id"`
	CreatedAt time.Time              `json:"created_at"`
	Height    uint64                 `json:"height"`
	Entries   []domain.SnapshotEntry `json:"entries"`
}

// Manifest describes a stored snapshot without its entries.
type Manifest struct {
	Key       string    `json:"key"`
	ID        string    `json:"id"`
	Height    uint64    `json:"height"`
	Entries   int       `json:"entries"`
	Size      int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Archiver moves snapshots between a Ledger and a blob store.
type Archiver struct {
	ledger Ledger
	store  blob.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option customises an Archiver.
type Option func(*Archiver)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an Archiver over ledger and store.
func New(ledger Ledger, store blob.Store, opts ...Option) *Archiver {
	a := &Archiver{
		ledger: ledger,
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the blob key of a snapshot. Heights are zero padded so
// lexical order matches height order.
func Key(height uint64, id string) string {
	return fmt.Sprintf("%s%020d-%s.json", keyPrefix, height, id)
}

func parseKey(key string) (uint64, string, bool) {
	name, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return 0, "", false
	}
	name, ok = strings.CutSuffix(name, ".json")
	if !ok {
		return 0, "", false
	}
	heightText, id, ok := strings.Cut(name, "-")
	if !ok {
		return 0, "", false
	}
	height, err := strconv.ParseUint(heightText, 10, 64)
	if err != nil {
		return 0, "", false
	}
	return height, id, true
}

// Export snapshots the ledger and uploads it.
func (a *Archiver) Export(ctx context.Context) (Manifest, error) {
	snapshot, err := a.ledger.ExportState(ctx)
	if err != nil {
		return Manifest{}, fmt.Errorf("export state: %w", err)
	}
	doc := Document{
		Format:    Format,
		ID:        a.newID(),
		CreatedAt: a.now(),
		Height:    snapshot.Height,
		Entries:   snapshot.Entries,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return Manifest{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := Key(doc.Height, doc.ID)
	info, err := a.store.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"height":     strconv.FormatUint(doc.Height, 10),
			"entries":    strconv.Itoa(len(doc.Entries)),
			"created-at": doc.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("upload snapshot: %w", err)
	}
	m := Manifest{Key: key, ID: doc.ID, Height: doc.Height, Entries: len(doc.Entries), Size: info.Size, CreatedAt: doc.CreatedAt}
	a.logger.Info("snapshot exported", "key", key, "height", m.Height, "entries", m.Entries, "bytes", m.Size, "driver", a.store.Driver())
	return m, nil
}

// List returns the stored snapshots in ascending height order. Blobs under
// the snapshot prefix that do not follow the key layout are skipped.
func (a *Archiver) List(ctx context.Context) ([]Manifest, error) {
	infos, err := a.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]Manifest, 0, len(infos))
	for _, info := range infos {
		height, id, ok := parseKey(info.Key)
		if !ok {
			continue
		}
		m := Manifest{Key: info.Key, ID: id, Height: height, Size: info.Size, CreatedAt: info.LastModified}
		if n, err := strconv.Atoi(info.Metadata["entries"]); err == nil {
			m.Entries = n
		}
		if ts, err := time.Parse(time.RFC3339Nano, info.Metadata["created-at"]); err == nil {
			m.CreatedAt = ts
		}
		out = append(out, m)
	}
	return out, nil
}

// Latest returns the manifest of the highest snapshot.
func (a *Archiver) Latest(ctx context.Context) (Manifest, error) {
	all, err := a.List(ctx)
	if err != nil {
		return Manifest{}, err
	}
	if len(all) == 0 {
		return Manifest{}, ErrNoSnapshots
	}
	return all[len(all)-1], nil
}

// Load downloads and decodes the snapshot at key.
func (a *Archiver) Load(ctx context.Context, key string) (Document, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("download snapshot: %w", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return Document{}, fmt.Errorf("read snapshot: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if doc.Format != Format {
		return Document{}, fmt.Errorf("snapshot %s has format %q, want %q", key, doc.Format, Format)
	}
	return doc, nil
}

// Restore replaces the ledger state with the snapshot at key. An empty key
// selects the latest snapshot.
func (a *Archiver) Restore(ctx context.Context, key string) (Manifest, error) {
	if key == "" {
		latest, err := a.Latest(ctx)
		if err != nil {
			return Manifest{}, err
		}
		key = latest.Key
	}
	doc, err := a.Load(ctx, key)
	if err != nil {
		return Manifest{}, err
	}
	if err := a.ledger.RestoreState(ctx, domain.Snapshot{Height: doc.Height, Entries: doc.Entries}); err != nil {
		return Manifest{}, fmt.Errorf("restore state: %w", err)
	}
	m := Manifest{Key: key, ID: doc.ID, Height: doc.Height, Entries: len(doc.Entries), CreatedAt: doc.CreatedAt}
	a.logger.Info("snapshot restored", "key", key, "height", m.Height, "entries", m.Entries)
	return m, nil
}
