package cli

import (
	"context"

	"github.com/spf13/cobra"

	"ledgercore/internal/archive"
	"ledgercore/internal/blob"
)

func (a *app) withArchiver(ctx context.Context, fn func(*archive.Archiver) error) error {
	return a.withNode(ctx, func(n *node) error {
		store, err := blob.Open(ctx, n.cfg.Blob.BlobStoreConfig())
		if err != nil {
			return err
		}
		return fn(archive.New(n.svc, store, archive.WithLogger(n.logger)))
	})
}

func (a *app) exportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Archive a snapshot of the ledger to the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withArchiver(cmd.Context(), func(ar *archive.Archiver) error {
				m, err := ar.Export(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, m)
			})
		},
	}
}

func (a *app) restoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [key]",
		Short: "Replace the ledger state with an archived snapshot (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			return a.withArchiver(cmd.Context(), func(ar *archive.Archiver) error {
				m, err := ar.Restore(cmd.Context(), key)
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, m)
			})
		},
	}
}

func (a *app) snapshotsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List archived snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withArchiver(cmd.Context(), func(ar *archive.Archiver) error {
				list, err := ar.List(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, list)
			})
		},
	}
}
