package cmd

import (
	"github.com/spf13/cobra"

	"sacraltrack/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP server",
	Long:  `Run the ingestion and streaming HTTP server, serving the upload API and stored playlists.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
