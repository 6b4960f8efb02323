package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"novel-epub/downloader"
)

var cleanDir string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete chapter files with empty content",
	Long:  "Delete chapter files whose content is empty so the next download pass fetches them again",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cleanDir
		if dir == "" {
			dir = cfg.DownloadsDir
		}
		removed, err := downloader.Clean(dir, component("clean"))
		if err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
		fmt.Printf("%d empty chapter files removed\n", len(removed))
		return nil
	},
}

func init() {
	cleanCmd.Flags().StringVarP(&cleanDir, "dir-path", "d", "", "chapter directory (default {downloads_dir})")
	RootCmd.AddCommand(cleanCmd)
}
