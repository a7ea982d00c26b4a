package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint"
)

func promptsCmd(g *globalFlags) *cobra.Command {
	var show string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "List prompt templates and where each is loaded from",
		Long: `List prompt templates and where each is loaded from.

Templates in prompts_dir, .blueprint/prompts or prompts replace the
embedded defaults of the same name. --show prints one template unrendered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := g.resolve()
			if err != nil {
				return err
			}
			loader := blueprint.Prompts(resolved.Get("prompts_dir"))
			out := cmd.OutOrStdout()

			if show != "" {
				text, _, err := loader.Source(show)
				if err != nil {
					return err
				}
				fmt.Fprint(out, text)
				return nil
			}
			if err := loader.Check(); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROMPT\tORIGIN")
			for _, name := range loader.Names() {
				_, origin, err := loader.Source(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\n", name, origin)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&show, "show", "", "print the named template")
	return cmd
}
