package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint/auth"
)

func keysCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Create API credentials for the HTTP server",
	}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysTokenCmd(g))
	return cmd
}

func keysCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Generate an API key and the hash to configure as api_key_hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GenerateAPIKey(auth.APIKeyConfig{})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "API key:      %s\n", key.Secret)
			fmt.Fprintf(w, "Fingerprint:  %s\n", key.Fingerprint)
			fmt.Fprintf(w, "api_key_hash: %s\n\n", key.Hash)
			fmt.Fprintln(w, "The key is shown once. Configure the server with:")
			fmt.Fprintf(w, "  blueprint config set api_key_hash '%s'\n", key.Hash)
			return nil
		},
	}
}

func keysTokenCmd(g *globalFlags) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with jwt_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := g.resolve()
			if err != nil {
				return err
			}
			secret := resolved.Get("jwt_secret")
			if secret == "" {
				return errors.New("jwt_secret is not configured")
			}
			token, err := auth.GenerateAccessToken(auth.JWTConfig{
				Secret:         []byte(secret),
				AccessTokenTTL: ttl,
			}, subject, scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeRunsRead, auth.ScopeRunsWrite}, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default 12h)")
	return cmd
}
