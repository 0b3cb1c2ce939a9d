package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"sacraltrack/config"
	"sacraltrack/storage"
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the object storage bucket",
	Long:  `Show object counts, total size and content type breakdown for the configured bucket.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Storage endpoint: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewClient(
			cfg.MinioEndpoint, cfg.MinioPublicEndpoint,
			cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioBucket, cfg.MinioRegion, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("Failed to create storage client: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		stats, err := client.Stats(ctx)
		if err != nil {
			log.Fatalf("Failed to collect bucket stats: %v", err)
		}

		fmt.Printf("\nObjects:       %d\n", stats.TotalObjects)
		fmt.Printf("Total size:    %s\n", storage.FormatSize(stats.TotalSize))
		if !stats.LastModified.IsZero() {
			fmt.Printf("Last modified: %s\n", stats.LastModified.Format(time.RFC3339))
		}
		if len(stats.TypeCounts) > 0 {
			fmt.Println("\nBy content type:")
			for contentType, count := range stats.TypeCounts {
				fmt.Printf("  %-40s %d\n", contentType, count)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(storageCmd)
}
