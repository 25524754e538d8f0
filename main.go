package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(runCommand(newRootCmd()))
}

// runCommand executes cmd and maps its error to the process exit code
func runCommand(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("❌ Command failed")

		return 1
	}

	return 0
}
