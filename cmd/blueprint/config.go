package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint/config"
)

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit settings",
	}
	cmd.AddCommand(configShowCmd(g))
	cmd.AddCommand(configSetCmd())
	cmd.AddCommand(configUnsetCmd())
	return cmd
}

func configShowCmd(g *globalFlags) *cobra.Command {
	var reveal, trace bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show every setting with its source, credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := g.resolve()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE")
			for _, key := range config.Keys() {
				value, source := resolved.GetWithSource(key)
				if !reveal {
					value = config.Mask(key, value)
				}
				if trace {
					source = overrideChain(resolved.Trace(key))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", key, value, source)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if _, err := config.Load(resolved); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nwarning: %v\n", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print credentials unmasked")
	cmd.Flags().BoolVar(&trace, "trace", false, "list every layer that set a key, winner first")
	return cmd
}

// overrideChain renders "flag > env > default" for a key's trace.
func overrideChain(trace []config.Setting) config.Source {
	parts := make([]string, 0, len(trace))
	for i := len(trace) - 1; i >= 0; i-- {
		parts = append(parts, string(trace[i].Source))
	}
	return config.Source(strings.Join(parts, " > "))
}

func configSetCmd() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Save a setting to the global or local config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := config.NewStandardResolver()
			saver := config.NewSaver(r)
			key, value := args[0], args[1]
			if local {
				if err := saver.SaveLocal(key, value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", key, r.LocalPath())
				return nil
			}
			if err := saver.SaveGlobal(key, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s = %s to %s\n", key, config.Mask(key, value), r.GlobalPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "write to the repository config instead of the global one")
	return cmd
}

func configUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a setting from the global config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := config.NewStandardResolver()
			if err := config.NewSaver(r).DeleteGlobalKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", args[0], r.GlobalPath())
			return nil
		},
	}
}
