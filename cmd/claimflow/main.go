package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/clearrail/claimflow/cmd/claimflow/internal/serve"
	"github.com/clearrail/claimflow/cmd/claimflow/internal/version"
)

func newClaimflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claimflow",
		Short: "claimflow - conversational rail delay compensation backend",
	}

	cmd.AddCommand(
		serve.NewServeCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	if err := newClaimflowCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
