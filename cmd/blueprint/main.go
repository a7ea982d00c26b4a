// Command blueprint generates implementation blueprints from stored project
// artifacts and serves them over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/blueprint"
	"github.com/randalmurphal/blueprint/config"
	clierrors "github.com/randalmurphal/blueprint/errors"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	envFiles  []string
	overrides []string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "blueprint",
		Short:         "Generate implementation blueprints from project artifacts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	rootCmd.PersistentFlags().StringArrayVar(&g.overrides, "set", nil, "override a setting, key=value (repeatable)")

	rootCmd.AddCommand(runCmd(g))
	rootCmd.AddCommand(serveCmd(g))
	rootCmd.AddCommand(runsCmd(g))
	rootCmd.AddCommand(pruneCmd(g))
	rootCmd.AddCommand(configCmd(g))
	rootCmd.AddCommand(keysCmd(g))
	rootCmd.AddCommand(promptsCmd(g))
	rootCmd.AddCommand(encodeCmd())
	return rootCmd
}

// resolve loads dotenv files and resolves every key with flag overrides
// applied last.
func (g *globalFlags) resolve() (*config.Resolved, error) {
	if err := config.LoadDotEnv(g.envFiles...); err != nil {
		return nil, err
	}
	flags := make(map[string]string, len(g.overrides))
	for _, kv := range g.overrides {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want key=value", kv)
		}
		flags[strings.TrimSpace(k)] = v
	}
	return config.NewStandardResolver().ResolveWithFlags(flags), nil
}

func (g *globalFlags) settings() (*config.Settings, error) {
	resolved, err := g.resolve()
	if err != nil {
		return nil, err
	}
	s, err := config.Load(resolved)
	if err != nil {
		return nil, clierrors.WrapConfigError(err)
	}
	return s, nil
}

// service builds a Service from settings. The caller closes it.
func (g *globalFlags) service(ctx context.Context, stderr io.Writer) (*blueprint.Service, *config.Settings, *slog.Logger, error) {
	s, err := g.settings()
	if err != nil {
		return nil, nil, nil, err
	}
	logger := newLogger(stderr, s.Log)
	svc, err := blueprint.NewService(ctx, s, blueprint.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, clierrors.Wrap(err, collaborator(err, s))
	}
	return svc, s, logger, nil
}

// collaborator names the component behind a NewService failure.
func collaborator(err error, s *config.Settings) string {
	var ce *blueprint.ComponentError
	if !errors.As(err, &ce) {
		return "blueprint service"
	}
	switch ce.Component {
	case "artifact store":
		return s.Store.Kind + " store"
	case "publisher":
		return s.Publish.Provider + " publisher"
	default:
		return ce.Component
	}
}

// newLogger builds the process logger from settings.
func newLogger(w io.Writer, s config.LogSettings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if s.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
