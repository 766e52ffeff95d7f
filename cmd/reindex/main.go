package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"pivision/internal/eventlog"
	"pivision/internal/store"
)

var (
	flagCaptures string
	flagDB       string
)

// reindex rebuilds the activity database from the on-disk snapshot archive.
// Detection metadata is not recoverable from the images, so rebuilt records
// carry a zero face count.
var rootCmd = &cobra.Command{
	Use:   "pivision-reindex",
	Short: "Rebuild the activity database from archived snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Reindexing snapshots from %s into %s\n", flagCaptures, flagDB)

		if err := os.MkdirAll(filepath.Dir(flagDB), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}

		activity, err := eventlog.Open(flagDB)
		if err != nil {
			return fmt.Errorf("failed to open activity database: %w", err)
		}
		defer activity.Close()

		files, err := os.ReadDir(flagCaptures)
		if err != nil {
			return fmt.Errorf("failed to read snapshot directory: %w", err)
		}

		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Reindexing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		inserted, skipped := 0, 0
		for _, file := range files {
			bar.Add(1)
			if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
				skipped++
				continue
			}

			ts, err := store.ParseSnapshotName(file.Name())
			if err != nil {
				skipped++
				continue
			}

			rec := &eventlog.Record{
				Timestamp: ts,
				Source:    "real",
				Filename:  file.Name(),
			}
			if err := activity.Insert(rec); err != nil {
				skipped++
				continue
			}
			inserted++
		}

		fmt.Printf("\nReindexed %d snapshots (%d skipped)\n", inserted, skipped)

		if stats, err := activity.Stats(); err == nil {
			fmt.Printf("Database now holds %v events\n", stats["total_events"])
		}

		return nil
	},
}

func init() {
	rootCmd.Flags().StringVarP(&flagCaptures, "captures", "c", filepath.Join("data", "captures"), "Snapshot archive directory")
	rootCmd.Flags().StringVarP(&flagDB, "db", "d", filepath.Join("data", "activity.db"), "Activity database path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
