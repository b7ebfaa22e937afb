package archive

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgercore/internal/blob"
	"ledgercore/internal/core"
	"ledgercore/pkg/domain"
)

func newLedger(t *testing.T) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	require.NoError(t, svc.InitGenesis(context.Background(), core.Genesis{
		Balances: map[core.AccountID]core.Balance{"alice": 50_000, "bob": 50_000},
	}))
	return svc
}

func applyCreates(t *testing.T, svc *core.Service, height uint64, callers ...core.AccountID) {
	t.Helper()
	block := core.Block{Height: height}
	for _, who := range callers {
		block.Extrinsics = append(block.Extrinsics, core.Extrinsic{Caller: who, Call: core.CreateCreature{}})
	}
	receipt, err := svc.ApplyBlock(context.Background(), block)
	require.NoError(t, err)
	require.Empty(t, receipt.Failed())
}

func fixedArchiver(svc *core.Service, store blob.Store) *Archiver {
	ids := []string{"first", "second", "third"}
	a := New(svc, store, WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }))
	a.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	return a
}

func TestExportRestoreRoundTrip(t *testing.T) {
	for _, store := range []blob.Store{blob.NewMemory(), blob.NewMockS3ForTests()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			ctx := context.Background()
			svc := newLedger(t)
			applyCreates(t, svc, 1, "alice", "bob")
			a := fixedArchiver(svc, store)

			m, err := a.Export(ctx)
			require.NoError(t, err)
			require.Equal(t, Key(1, "first"), m.Key)
			require.Equal(t, uint64(1), m.Height)
			require.Positive(t, m.Entries)

			before, err := svc.ExportState(ctx)
			require.NoError(t, err)

			applyCreates(t, svc, 2, "alice")
			count, err := svc.CreatureCount(ctx)
			require.NoError(t, err)
			require.Equal(t, domain.CreatureID(3), count)

			restored, err := a.Restore(ctx, "")
			require.NoError(t, err)
			require.Equal(t, m.Key, restored.Key)

			after, err := svc.ExportState(ctx)
			require.NoError(t, err)
			require.Equal(t, before, after)

			height, err := svc.Height(ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(1), height)
			holdings, err := svc.Holdings(ctx, "alice")
			require.NoError(t, err)
			require.Equal(t, []domain.CreatureID{0}, holdings)
		})
	}
}

func TestListOrdersByHeightAndSkipsForeignKeys(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	svc := newLedger(t)
	a := fixedArchiver(svc, store)

	applyCreates(t, svc, 9, "alice")
	_, err := a.Export(ctx)
	require.NoError(t, err)
	applyCreates(t, svc, 10, "bob")
	_, err = a.Export(ctx)
	require.NoError(t, err)
	_, err = store.Put(ctx, "snapshots/readme.txt", bytes.NewReader([]byte("notes")), blob.PutOptions{})
	require.NoError(t, err)

	list, err := a.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, uint64(9), list[0].Height)
	require.Equal(t, uint64(10), list[1].Height)
	require.Equal(t, "second", list[1].ID)

	latest, err := a.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, list[1], latest)
}

func TestLatestWithoutSnapshots(t *testing.T) {
	a := New(newLedger(t), blob.NewMemory())
	_, err := a.Latest(context.Background())
	require.True(t, errors.Is(err, ErrNoSnapshots))
	_, err = a.Restore(context.Background(), "")
	require.ErrorIs(t, err, ErrNoSnapshots)
}

func TestLoadRejectsForeignFormat(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemory()
	key := Key(1, "bad")
	_, err := store.Put(ctx, key, strings.NewReader(`{"format":"other","height":1}`), blob.PutOptions{})
	require.NoError(t, err)

	svc := newLedger(t)
	before, err := svc.ExportState(ctx)
	require.NoError(t, err)

	_, err = New(svc, store).Restore(ctx, key)
	require.ErrorContains(t, err, "format")

	after, err := svc.ExportState(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestRestoreRejectsUnknownTables(t *testing.T) {
	svc := newLedger(t)
	err := svc.RestoreState(context.Background(), domain.Snapshot{Entries: []domain.SnapshotEntry{{Table: "rogue", Key: []byte("k"), Value: []byte("v")}}})
	require.ErrorContains(t, err, "unknown table")
}

func TestParseKey(t *testing.T) {
	height, id, ok := parseKey(Key(42, "abc-def"))
	require.True(t, ok)
	require.Equal(t, uint64(42), height)
	require.Equal(t, "abc-def", id)

	for _, key := range []string{"other/1-a.json", "snapshots/x-a.json", "snapshots/1-a.txt", "snapshots/1.json"} {
		_, _, ok := parseKey(key)
		require.False(t, ok, key)
	}
}
