package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint/runstore"
)

func runsCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	cmd.AddCommand(runsListCmd(g))
	cmd.AddCommand(runsShowCmd(g))
	return cmd
}

func runsListCmd(g *globalFlags) *cobra.Command {
	var f runstore.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, _, err := g.service(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			runs, err := svc.ListRuns(ctx, f)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tPROJECT\tSTATUS\tSTARTED\tDURATION\tFAILED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.ProjectID, r.Status,
					r.StartedAt.Local().Format(time.DateTime),
					(time.Duration(r.DurationMS) * time.Millisecond).String(),
					strings.Join(r.FailedStages, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&f.ProjectID, "project", "p", "", "only runs for this project")
	cmd.Flags().StringVar(&f.Status, "status", "", "only runs with this status")
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "maximum runs to list")
	return cmd
}

func runsShowCmd(g *globalFlags) *cobra.Command {
	var withState bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its lifecycle events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, _, err := g.service(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close(ctx)

			run, err := svc.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			events, err := svc.RunEvents(ctx, args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"run": run, "events": events}
			if withState {
				st, err := svc.LoadState(args[0])
				if err != nil {
					return fmt.Errorf("load state snapshot: %w", err)
				}
				out["state"] = st
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&withState, "state", false, "include the final state snapshot")
	return cmd
}
