// Package cli is the operator command line for the synergy graph. Commands
// build the same container as the API server and talk to the configured store.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"synergy-backend/infrastructure/config"
	"synergy-backend/infrastructure/di"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// NewRootCommand assembles synergyctl and its subcommands
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "synergyctl",
		Short:         "Inspect and maintain the synergy graph store",
		Long:          "synergyctl checks connectivity, lists persisted synergy edges and applies proposals against the configured document store. Configuration is read from the environment and CONFIG_FILE, exactly as the API server does.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "Print results as JSON")

	root.AddCommand(newCheckCommand())
	root.AddCommand(newConfigCommand())
	root.AddCommand(newEdgesCommand())
	root.AddCommand(newProposeCommand())
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// openContainer loads configuration and wires the stack. Metrics and tracing
// are off: commands are short lived.
func openContainer(ctx context.Context) (*di.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg.EnableMetrics = false
	cfg.EnableTracing = false
	cfg.HydrateOnStart = false

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize container: %w", err)
	}
	return container, nil
}

// withTimeout bounds a command by the store's init and operation timeouts
func withTimeout(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, cfg.InitTimeout+cfg.OperationTimeout)
}

func jsonOutput(cmd *cobra.Command) bool {
	enabled, _ := cmd.Flags().GetBool("json")
	return enabled
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
