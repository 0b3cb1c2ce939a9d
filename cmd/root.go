package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sacraltrack/server"
)

var rootCmd = &cobra.Command{
	Use:   "sacraltrack",
	Short: "Sacral Track is an audio ingestion and HLS streaming service.",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
