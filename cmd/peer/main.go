package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "duet",
		Short:         "Two-party audio/video call with text chat",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(NewHostCommand(), NewJoinCommand())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
