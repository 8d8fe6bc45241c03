package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"synergy-backend/application/ports"
	"synergy-backend/application/services"
	"synergy-backend/domain/core/entities"
	"synergy-backend/infrastructure/config"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "synergyctl %s (commit: %s, built: %s)\n", Version, Commit, BuildDate)
		},
	}
}

// CheckResult is printed by the check command
type CheckResult struct {
	Store        string                 `json:"store"`
	Environment  string                 `json:"environment"`
	ConfigSource []string               `json:"config_source"`
	Health       ports.ConnectionHealth `json:"health"`
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, CONFIG_FILE and the environment are applied. The YAML output can be used as a CONFIG_FILE.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), cfg)
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and verify the store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Shutdown(context.Background()) //nolint:errcheck

			ctx, cancel := withTimeout(cmd.Context(), container.Config)
			defer cancel()
			_, acquireErr := container.Connection.Acquire(ctx)

			result := CheckResult{
				Store:        container.Config.ConnectionConfig().StoreName,
				Environment:  container.Config.Environment,
				ConfigSource: container.Config.LoadedFrom,
				Health:       container.Connection.Health(),
			}
			if jsonOutput(cmd) {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				status := "reachable"
				if acquireErr != nil {
					status = "unreachable"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "store %s: %s\n", result.Store, status)
				fmt.Fprintf(cmd.OutOrStdout(), "environment: %s\n", result.Environment)
			}
			return acquireErr
		},
	}
}

func newEdgesCommand() *cobra.Command {
	var (
		minScore float64
		domain   string
	)
	cmd := &cobra.Command{
		Use:   "edges",
		Short: "List persisted synergy edges",
		Long:  "List persisted synergy edges scoring at least --min-score (default: the configured synergy threshold).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}
			defer container.Shutdown(context.Background()) //nolint:errcheck

			if !cmd.Flags().Changed("min-score") {
				minScore = container.Config.SynergyThreshold
			}

			ctx, cancel := withTimeout(cmd.Context(), container.Config)
			defer cancel()

			var stored []entities.SynergyEdge
			err = container.Connection.Execute(ctx, services.OperationLoadEdges, func(ctx context.Context, store ports.DocumentStore) error {
				edges, err := store.LoadEdges(ctx, minScore)
				if err != nil {
					return err
				}
				stored = edges
				return nil
			})
			if err != nil {
				return err
			}

			edges := make([]entities.SynergyEdge, 0, len(stored))
			for _, edge := range stored {
				if domain == "" || edge.Source.String() == domain {
					edges = append(edges, edge)
				}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), edges)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tTARGET\tSCORE\tLAST UPDATED")
			for _, edge := range edges {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
					edge.Source, edge.Target,
					strconv.FormatFloat(edge.Score.Float64(), 'f', -1, 64),
					edge.LastUpdated.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Only list edges scoring at least this much")
	cmd.Flags().StringVar(&domain, "domain", "", "Only list edges leaving this domain")
	return cmd
}

func newProposeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "propose SOURCE TARGET SCORE",
		Short: "Propose an edge against the stored graph and persist the outcome",
		Long:  "Hydrates the graph from the store, applies the proposal with the configured threshold and capacity rules, then persists any resulting change.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid score %q: %w", args[2], err)
			}

			container, err := openContainer(cmd.Context())
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd.Context(), container.Config)
			defer cancel()

			decision, proposeErr := propose(ctx, container.Graph, args[0], args[1], score)
			// Shutdown persists whatever the proposal queued
			if err := container.Shutdown(ctx); err != nil {
				return errors.Join(proposeErr, err)
			}
			if proposeErr != nil {
				return proposeErr
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), decision)
			}
			out := cmd.OutOrStdout()
			switch {
			case decision.Admitted() && decision.Evicted != nil:
				fmt.Fprintf(out, "admitted %s->%s, evicted %s\n", args[0], args[1], decision.Evicted.Key())
			case decision.Admitted():
				fmt.Fprintf(out, "admitted %s->%s\n", args[0], args[1])
			default:
				fmt.Fprintf(out, "rejected %s->%s: %s\n", args[0], args[1], decision.Reason)
			}
			return nil
		},
	}
}

func propose(ctx context.Context, graph *services.SynergyGraph, source, target string, score float64) (services.Decision, error) {
	if _, err := graph.Load(ctx); err != nil {
		return services.Decision{}, err
	}
	return graph.ProposeEdge(ctx, source, target, score)
}
