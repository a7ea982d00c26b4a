package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func pruneCmd(g *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old run snapshots and history",
		Long: `Remove run snapshots and history older than retention_days.

Failed runs and the most recent runs are always kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, _, err := g.service(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			res, err := svc.Prune(ctx, dryRun)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			fmt.Fprintf(w, "%s %d snapshot(s), kept %d.\n", verb, len(res.Snapshots.Deleted), len(res.Snapshots.Kept))
			for _, id := range res.Snapshots.Deleted {
				fmt.Fprintf(w, "  %s\n", id)
			}
			for _, e := range res.Snapshots.Errors {
				fmt.Fprintf(w, "  error: %s\n", e)
			}
			if !dryRun {
				fmt.Fprintf(w, "Removed %d run record(s).\n", res.Runs)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
	return cmd
}
