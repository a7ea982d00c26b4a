package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint/auth"
	clierrors "github.com/randalmurphal/blueprint/errors"
	"github.com/randalmurphal/blueprint/server"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs, run history and live events over HTTP",
		Long: `Serve runs, run history and live events over HTTP.

Requests authenticate with a bearer token signed with jwt_secret or an API
key matching api_key_hash. With neither configured, every request is
accepted.

Examples:
  blueprint serve
  blueprint serve --addr :9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			svc, s, logger, err := g.service(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer svc.Close(context.WithoutCancel(ctx))

			if addr == "" {
				addr = s.Server.Addr
			}
			if err := auth.CheckAPIKeyHash(s.Server.APIKeyHash); err != nil {
				return clierrors.WrapConfigError(err)
			}
			authn := &auth.Authenticator{
				JWT:        auth.JWTConfig{Secret: []byte(s.Server.JWTSecret)},
				APIKeyHash: s.Server.APIKeyHash,
			}
			if !authn.Enabled() {
				logger.Warn("authentication disabled: set jwt_secret or api_key_hash")
			}
			srv := server.New(svc, server.Config{Addr: addr, Auth: authn, Logger: logger})

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default http_addr)")
	return cmd
}
