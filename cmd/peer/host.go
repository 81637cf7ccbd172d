package main

import (
	"context"
	"fmt"

	"github.com/dkeye/duet/internal/app/orch"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewHostCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Register an identity and wait for the other side to join",
		Example: `  duet host
  CONFIG_ENV=prod duet host`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPeer(cmd.Context(), func(ctx context.Context, o *orch.Orchestrator) error {
				if err := o.HostSession(ctx); err != nil {
					return fmt.Errorf("host: %w", err)
				}
				color.New(color.FgGreen, color.Bold).Printf("Your id: %s\n", o.ID())
				color.New(color.Faint).Println("Share it, then wait for the other side to join. Ctrl+C to quit.")
				return nil
			})
		},
	}
}
