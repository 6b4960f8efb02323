package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"novel-epub/pipeline"
)

type runArgs struct {
	APIURL      string `validate:"required"`
	PageFrom    int
	PageTo      int
	Title       string `validate:"required"`
	Author      string `validate:"required"`
	Concurrency int
	MaxRetries  int
	Cover       string
}

var runFlags runArgs

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline in the foreground",
	Long:  "Collect links, download chapters until complete, then build the EPUB. The run is recorded in the state store.",
	RunE:  runPipeline,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.APIURL, "api-url", "u", "", "listing API url")
	runCmd.Flags().IntVar(&runFlags.PageFrom, "from", 1, "first listing page")
	runCmd.Flags().IntVar(&runFlags.PageTo, "to", 1, "last listing page")
	runCmd.Flags().StringVarP(&runFlags.Title, "title", "t", "", "book title")
	runCmd.Flags().StringVarP(&runFlags.Author, "author", "a", "", "book author")
	runCmd.Flags().IntVarP(&runFlags.Concurrency, "concurrency", "n", 0, "parallel downloads (default from config)")
	runCmd.Flags().IntVarP(&runFlags.MaxRetries, "max-retries", "r", 0, "download passes before giving up (default from config)")
	runCmd.Flags().StringVar(&runFlags.Cover, "cover", "", "cover image path or url")
	RootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	req := pipeline.Request{
		APIURL:      runFlags.APIURL,
		PageFrom:    runFlags.PageFrom,
		PageTo:      runFlags.PageTo,
		Title:       runFlags.Title,
		Author:      runFlags.Author,
		Concurrency: runFlags.Concurrency,
		MaxRetries:  runFlags.MaxRetries,
		CoverPath:   runFlags.Cover,
	}
	if req.Concurrency == 0 {
		req.Concurrency = cfg.DefaultConcurrency
	}
	if req.MaxRetries == 0 {
		req.MaxRetries = cfg.DownloadMaxRetries
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	engine, err := newEngine(store)
	if err != nil {
		return err
	}
	defer engine.Close()

	run, err := engine.Run(cmd.Context(), req)
	if err != nil {
		if run != nil {
			return fmt.Errorf("run %s failed: %w", run.ID, err)
		}
		return err
	}
	fmt.Printf("Run %s completed: %s\n", run.ID, run.Result)
	return nil
}
