package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"novel-epub/browser"
	"novel-epub/collector"
	"novel-epub/config"
	"novel-epub/downloader"
	"novel-epub/epub"
	"novel-epub/pipeline"
	"novel-epub/utils"
)

const rateLimitWait = 2 * time.Second

type rootArgs struct {
	configPath string
	logLevel   string
	logFile    bool
}

var (
	rArgs   rootArgs
	cfg     *config.Config
	logger  *logrus.Logger
	logSink *os.File
)

var RootCmd = &cobra.Command{
	Use:               "novel-epub",
	Short:             "Download web novel chapters and package them as EPUB",
	Long:              "Collect chapter links from a listing API, download every chapter with a headless browser, and build an EPUB",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&rArgs.configPath, "config", "c", "", "config file (yaml or toml)")
	RootCmd.PersistentFlags().StringVar(&rArgs.logLevel, "log-level", "", "log level, overrides the config file")
	RootCmd.PersistentFlags().BoolVar(&rArgs.logFile, "log-file", false, "also write logs to {log_dir}/novel-epub.log")
}

func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}
	loaded, warnings, err := config.Load(rArgs.configPath)
	if err != nil {
		return err
	}
	if rArgs.logLevel != "" {
		loaded.LogLevel = rArgs.logLevel
	}
	cfg = loaded

	logger, err = utils.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	if rArgs.logFile {
		logSink, err = utils.TeeToFile(logger, cfg.LogDir, "novel-epub.log")
		if err != nil {
			return err
		}
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	return nil
}

func component(name string) *logrus.Entry {
	return logger.WithField("component", name)
}

func newClient() *resty.Client {
	return utils.NewRestyClient(config.Seconds(cfg.HTTPTimeout), cfg.UserAgent)
}

func newCollector() *collector.Collector {
	client := utils.RetryOnRateLimit(newClient(), 3, rateLimitWait)
	return collector.New(client, cfg.APIConcurrency, component("collector"))
}

func newImageFetcher() *downloader.HTTPImageFetcher {
	return downloader.NewImageFetcher(newClient(), cfg.ImageMaxRetries, config.Seconds(cfg.ImageInitialBackoff), component("images"))
}

func newAssembler() (*epub.Assembler, error) {
	return epub.NewAssembler(cfg, newClient(), component("epub"))
}

// openBrowser starts one headless browser for a download stage.
func openBrowser(ctx context.Context) (downloader.PageFetcher, io.Closer, error) {
	session, err := browser.NewSession(cfg.Browser, cfg.UserAgent, component("browser"))
	if err != nil {
		return nil, nil, err
	}
	return session, session, nil
}

func openStore() (*pipeline.Store, error) {
	store, err := pipeline.OpenStore(cfg.StateDir, component("store"))
	if err != nil {
		return nil, fmt.Errorf("%w (is another novel-epub process using %s?)", err, cfg.StateDir)
	}
	return store, nil
}

func newEngine(store *pipeline.Store) (*pipeline.Engine, error) {
	assembler, err := newAssembler()
	if err != nil {
		return nil, err
	}
	activities := pipeline.NewActivities(cfg, newCollector(), newImageFetcher(), assembler, openBrowser, component("pipeline"))
	return pipeline.NewEngine(cfg, store, activities, component("engine")), nil
}
