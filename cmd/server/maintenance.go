package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitit/internal/clock"
	"github.com/mmynk/splitit/internal/jobs"
	"github.com/mmynk/splitit/internal/ledger"
	"github.com/mmynk/splitit/internal/storage"
)

func newExpireInvitesCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "expire-invites",
		Short:        "Mark overdue pending invitations as expired",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := jobs.ExpireInvitations(cmd.Context(), store, clock.Real(), logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d invitation(s)\n", n)
			return nil
		},
	}
}

func newCheckCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [group-id...]",
		Short: "Verify ledger invariants",
		Long: `Recompute every member balance and group total from the stored
expenses and report any group whose records disagree.

With no arguments every group is checked.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			store, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			var failed int
			err = store.WithTx(cmd.Context(), func(ctx context.Context, tx storage.Tx) error {
				groupIDs := args
				if len(groupIDs) == 0 {
					ids, err := tx.ListGroupIDs(ctx)
					if err != nil {
						return err
					}
					groupIDs = ids
				}
				for _, id := range groupIDs {
					if err := ledger.CheckInvariants(ctx, tx, id); err != nil {
						if !ledger.IsBusinessError(err) {
							return err
						}
						failed++
						fmt.Fprintf(out, "FAIL %s: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "ok   %s\n", id)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d group(s) failed the ledger check", failed)
			}
			return nil
		},
	}
}
