package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"novel-epub/downloader")

type downloadArgs struct {
	URLsFile    string
	OutputDir   string
	Concurrency int
	MaxRetries  int
	SinglePass  bool
}

var dArgs downloadArgs

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download every chapter in a URL list",
	Long:  "Download every chapter in a URL list, retrying passes until each URL has a chapter file",
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&dArgs.URLsFile, "urls-file", "f", "", "URL list file (default {downloads_dir}/urls.txt)")
	downloadCmd.Flags().StringVarP(&dArgs.OutputDir, "output-dir", "o", "", "chapter directory (default {downloads_dir})")
	downloadCmd.Flags().IntVarP(&dArgs.Concurrency, "concurrency", "n", 0, "parallel downloads (default from config)")
	downloadCmd.Flags().IntVarP(&dArgs.MaxRetries, "max-retries", "r", 0, "download passes before giving up (default from config)")
	downloadCmd.Flags().BoolVar(&dArgs.SinglePass, "single-pass", false, "run one pass without checking completeness")
	RootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	urlsFile := dArgs.URLsFile
	if urlsFile == "" {
		urlsFile = filepath.Join(cfg.DownloadsDir, "urls.txt")
	}
	outputDir := dArgs.OutputDir
	if outputDir == "" {
		outputDir = cfg.DownloadsDir
	}
	concurrency := dArgs.Concurrency
	if concurrency == 0 {
		concurrency = cfg.DefaultConcurrency
	}
	maxRetries := dArgs.MaxRetries
	if maxRetries == 0 {
		maxRetries = cfg.DownloadMaxRetries
	}

	urls, err := downloader.Validate(urlsFile, concurrency, maxRetries)
	if err != nil {
		return err
	}

	pages, closer, err := openBrowser(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to start browser: %v", err)
	}
	defer closer.Close()

	d := downloader.New(pages, newImageFetcher(), cfg, component("downloader"))
	if dArgs.SinglePass {
		result, err := d.DownloadAll(cmd.Context(), urls, outputDir, concurrency)
		if err != nil {
			return err
		}
		fmt.Println(result)
		return nil
	}

	dir, err := downloader.NewValidator(d, cfg, component("validator")).EnsureComplete(cmd.Context(), urlsFile, outputDir, concurrency, maxRetries)
	if err != nil {
		return fmt.Errorf("failed to download chapters: %w", err)
	}
	fmt.Printf("All chapters downloaded to %s\n", dir)
	return nil
}
