package core

import (
	"bytes"
	"context"
	"fmt"

	"ledgercore/pkg/domain"
)

// ExportState copies every ledger table out of committed state, ordered by
// table then key. It works against any backend.
func (s *Service) ExportState(ctx context.Context) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	_, err := s.run(ctx, &operation{name: "export_state"}, func(ctx context.Context) (domain.Result, error) {
		return domain.Result{}, s.store.View(ctx, func(view domain.KVReader) error {
			height, _, err := s.height.Get(view)
			if err != nil {
				return err
			}
			snapshot.Height = height
			for _, table := range s.Tables() {
				err := view.Iterate(table, nil, func(key, value []byte) error {
					snapshot.Entries = append(snapshot.Entries, domain.SnapshotEntry{
						Table: table,
						Key:   bytes.Clone(key),
						Value: bytes.Clone(value),
					})
					return nil
				})
				if err != nil {
					return fmt.Errorf("export %s: %w", table, err)
				}
			}
			return nil
		})
	})
	return snapshot, err
}

// RestoreState replaces the ledger contents with snapshot in one transaction.
// Entries for tables the runtime does not own are rejected.
func (s *Service) RestoreState(ctx context.Context, snapshot domain.Snapshot) error {
	known := make(map[domain.Table]bool)
	for _, table := range s.Tables() {
		known[table] = true
	}
	for _, entry := range snapshot.Entries {
		if !known[entry.Table] {
			return fmt.Errorf("restore: unknown table %q", entry.Table)
		}
	}
	_, err := s.run(ctx, &operation{name: "restore_state", height: snapshot.Height}, func(ctx context.Context) (domain.Result, error) {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			for _, table := range s.Tables() {
				var keys [][]byte
				err := tx.Iterate(table, nil, func(key, _ []byte) error {
					keys = append(keys, bytes.Clone(key))
					return nil
				})
				if err != nil {
					return err
				}
				for _, key := range keys {
					if err := tx.Delete(table, key); err != nil {
						return err
					}
				}
			}
			for _, entry := range snapshot.Entries {
				if err := tx.Put(entry.Table, entry.Key, entry.Value); err != nil {
					return err
				}
			}
			height, _, err := s.height.Get(tx)
			if err != nil {
				return err
			}
			if height != snapshot.Height {
				return fmt.Errorf("restore: snapshot declares height %d but carries %d", snapshot.Height, height)
			}
			return nil
		})
	})
	if err == nil {
		s.logger.Info("ledger state restored", "height", snapshot.Height, "entries", len(snapshot.Entries))
	}
	return err
}
