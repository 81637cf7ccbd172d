package main

import (
	"context"
	"fmt"

	"github.com/dkeye/duet/internal/app/orch"
	"github.com/dkeye/duet/internal/domain"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewJoinCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "join <remote-id>",
		Short:   "Call a hosting peer by its id",
		Example: `  duet join 550e8400-e29b-41d4-a716-446655440000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := domain.ParsePeerID(args[0])
			if err != nil {
				return err
			}
			return runPeer(cmd.Context(), func(ctx context.Context, o *orch.Orchestrator) error {
				color.New(color.Faint).Printf("Calling %s...\n", remote)
				if err := o.JoinSession(ctx, remote); err != nil {
					return fmt.Errorf("join: %w", err)
				}
				color.New(color.FgGreen).Println("Connected. Type to chat, Ctrl+C to quit.")
				return nil
			})
		},
	}
}
