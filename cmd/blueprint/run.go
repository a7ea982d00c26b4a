package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint"
)

func runCmd(g *globalFlags) *cobra.Command {
	var (
		publish bool
		labels  []string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "run <project-id>",
		Short: "Generate the blueprint for one project",
		Long: `Generate the blueprint for one project.

The document is written to output_dir as Markdown and, when enabled, PDF.
Stage failures degrade the document instead of aborting the run.

Examples:
  blueprint run proj-42
  blueprint run proj-42 --publish --label architecture
  blueprint run proj-42 --set store=file --set fixtures_dir=./testdata`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			svc, _, _, err := g.service(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close(context.WithoutCancel(ctx))

			res, err := svc.Run(ctx, args[0], blueprint.RunOptions{
				Principal: "cli",
				Publish:   publish,
				Labels:    labels,
			})
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "file the blueprint as an issue with the configured provider")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "extra issue labels")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func printResult(w io.Writer, res *blueprint.Result) {
	fmt.Fprintf(w, "Run:       %s\n", res.RunID)
	fmt.Fprintf(w, "Project:   %s (%s)\n", res.ProjectID, res.Paradigm)
	fmt.Fprintf(w, "Status:    %s\n", res.Status)
	if len(res.FailedStages) > 0 {
		fmt.Fprintf(w, "Failed:    %s\n", strings.Join(res.FailedStages, ", "))
	}
	for _, format := range []string{"markdown", "pdf"} {
		if path, ok := res.FileInfo[format]; ok {
			fmt.Fprintf(w, "%-10s %s\n", strings.ToUpper(format[:1])+format[1:]+":", path)
		}
	}
	if res.IssueURL != "" {
		fmt.Fprintf(w, "Issue:     %s\n", res.IssueURL)
	}
	fmt.Fprintf(w, "Tokens:    %d in, %d out\n", res.Usage.InputTokens, res.Usage.OutputTokens)
	fmt.Fprintf(w, "Duration:  %s\n", res.EndedAt.Sub(res.StartedAt).Round(time.Millisecond))
}
