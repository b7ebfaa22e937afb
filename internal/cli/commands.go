package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ledgercore/internal/core"
	"ledgercore/pkg/domain"
)

func (a *app) genesisCommand() *cobra.Command {
	var endow []string
	cmd := &cobra.Command{
		Use:     "genesis",
		Short:   "Endow genesis accounts (runs once per ledger)",
		Example: `  ledger genesis --endow alice=100000 --endow bob=100000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			genesis := core.Genesis{Balances: make(map[domain.AccountID]domain.Balance, len(endow))}
			for _, entry := range endow {
				who, amount, ok := strings.Cut(entry, "=")
				if !ok || who == "" {
					return fmt.Errorf("invalid endowment %q, want account=amount", entry)
				}
				value, err := strconv.ParseUint(amount, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid endowment %q: %w", entry, err)
				}
				genesis.Balances[domain.AccountID(who)] += domain.Balance(value)
			}
			return a.withNode(cmd.Context(), func(n *node) error {
				if err := n.svc.InitGenesis(cmd.Context(), genesis); err != nil {
					return err
				}
				return writeJSON(a.stdout, map[string]any{"accounts": len(genesis.Balances)})
			})
		},
	}
	cmd.Flags().StringArrayVar(&endow, "endow", nil, "account=amount, repeatable")
	return cmd
}

func (a *app) applyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <blocks.yaml>",
		Short: "Apply blocks of extrinsics from a YAML file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			specs, err := decodeBlocks(in)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withNode(ctx, func(n *node) error {
				last, err := n.svc.Height(ctx)
				if err != nil {
					return err
				}
				blocks, err := resolveBlocks(specs, last)
				if err != nil {
					return err
				}
				views := make([]blockView, 0, len(blocks))
				for _, block := range blocks {
					receipt, err := n.svc.ApplyBlock(ctx, block)
					if err != nil {
						return err
					}
					views = append(views, viewBlock(receipt))
				}
				return writeJSON(a.stdout, views)
			})
		},
	}
	cmd.Flags().StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics in textfile format to this path")
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the ledger height and creature count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withNode(ctx, func(n *node) error {
				height, err := n.svc.Height(ctx)
				if err != nil {
					return err
				}
				count, err := n.svc.CreatureCount(ctx)
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, map[string]any{
					"height":    height,
					"creatures": count,
					"storage":   n.cfg.Storage.Driver,
					"plugins":   n.svc.RegisteredPlugins(),
				})
			})
		},
	}
}

func parseCreatureID(text string) (domain.CreatureID, error) {
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid creature id %q", text)
	}
	return domain.CreatureID(v), nil
}

func (a *app) creatureCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "creature", Short: "Query creatures"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a creature",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseCreatureID(args[0])
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				return a.withNode(ctx, func(n *node) error {
					c, ok, err := n.svc.Creature(ctx, id)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("creature %d: %w", id, domain.ErrNotFound)
					}
					return writeJSON(a.stdout, viewCreature(c))
				})
			},
		},
		&cobra.Command{
			Use:   "holdings <account>",
			Short: "List the creatures an account holds",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				return a.withNode(ctx, func(n *node) error {
					ids, err := n.svc.Holdings(ctx, domain.AccountID(args[0]))
					if err != nil {
						return err
					}
					return writeJSON(a.stdout, nonNil(ids))
				})
			},
		},
		&cobra.Command{
			Use:   "family <id>",
			Short: "Show parents, siblings, partners and offspring of a creature",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseCreatureID(args[0])
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				return a.withNode(ctx, func(n *node) error {
					view := struct {
						ID        domain.CreatureID   `json:"id"`
						Parents   *domain.Parentage   `json:"parents,omitempty"`
						Siblings  []domain.CreatureID `json:"siblings"`
						Partners  []domain.CreatureID `json:"partners"`
						Offspring []domain.CreatureID `json:"offspring"`
					}{ID: id}
					if p, ok, err := n.svc.Parents(ctx, id); err != nil {
						return err
					} else if ok {
						view.Parents = &p
					}
					var err error
					if view.Siblings, err = n.svc.Siblings(ctx, id); err != nil {
						return err
					}
					if view.Partners, err = n.svc.Partners(ctx, id); err != nil {
						return err
					}
					if view.Offspring, err = n.svc.Offspring(ctx, id); err != nil {
						return err
					}
					view.Siblings, view.Partners, view.Offspring = nonNil(view.Siblings), nonNil(view.Partners), nonNil(view.Offspring)
					return writeJSON(a.stdout, view)
				})
			},
		},
	)
	return cmd
}

func nonNil(ids []domain.CreatureID) []domain.CreatureID {
	if ids == nil {
		return []domain.CreatureID{}
	}
	return ids
}

func (a *app) claimCommand() *cobra.Command {
	var asHex bool
	show := &cobra.Command{
		Use:   "show <claim>",
		Short: "Show the owner of a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, hexText := args[0], ""
			if asHex {
				text, hexText = "", args[0]
			}
			claim, err := parseClaim(text, hexText)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withNode(ctx, func(n *node) error {
				rec, ok, err := n.svc.Claim(ctx, claim)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("claim %x: %w", claim, domain.ErrClaimNotFound)
				}
				return writeJSON(a.stdout, rec)
			})
		},
	}
	show.Flags().BoolVar(&asHex, "hex", false, "interpret the claim argument as hex")
	cmd := &cobra.Command{Use: "claim", Short: "Query claims"}
	cmd.AddCommand(show)
	return cmd
}

func (a *app) balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the free and reserved balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withNode(ctx, func(n *node) error {
				acct, err := n.svc.Balance(ctx, domain.AccountID(args[0]))
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, acct)
			})
		},
	}
}

func (a *app) eventsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "events <height>",
		Short: "List the events committed at a height",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			height, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return errors.New("height must be an unsigned integer")
			}
			ctx := cmd.Context()
			return a.withNode(ctx, func(n *node) error {
				records, err := n.svc.Events(ctx, height)
				if err != nil {
					return err
				}
				return writeJSON(a.stdout, viewEvents(records))
			})
		},
	}
}
