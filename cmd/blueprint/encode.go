package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint/diagram"
)

func encodeCmd() *cobra.Command {
	var (
		decode    bool
		serverURL string
	)
	cmd := &cobra.Command{
		Use:   "encode [file]",
		Short: "Encode PlantUML source into a server token",
		Long: `Encode PlantUML source into the token PlantUML servers accept in
/png/<token> URLs. Reads standard input when no file is given.

Examples:
  blueprint encode diagram.puml
  blueprint encode --server https://plantuml.example.com < diagram.puml
  blueprint encode diagram.puml | blueprint encode --decode`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}

			if decode {
				src, err := diagram.Decode(strings.TrimSpace(string(data)))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), src)
				return nil
			}

			source := diagram.ExtractPlantUML(string(data))
			if err := diagram.Validate(source); err != nil {
				return err
			}
			token := diagram.Encode(source)
			if serverURL != "" {
				token = strings.TrimRight(serverURL, "/") + "/png/" + token
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&decode, "decode", "d", false, "decode a token back into source")
	cmd.Flags().StringVar(&serverURL, "server", "", "print a full image URL for this PlantUML server")
	return cmd
}
