package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"novel-epub/utils"
)

type getURLsArgs struct {
	APIURL   string `validate:"required"`
	PageFrom int
	PageTo   int
	Output   string
}

var gArgs getURLsArgs

var getURLsCmd = &cobra.Command{
	Use:   "get-urls",
	Short: "Collect chapter links from the listing API",
	Long:  "Collect chapter links from the listing API and append them to a URL list file",
	RunE:  runGetURLs,
}

func init() {
	getURLsCmd.Flags().StringVarP(&gArgs.APIURL, "api-url", "u", "", "listing API url, the page query parameter is set per page")
	getURLsCmd.Flags().IntVar(&gArgs.PageFrom, "from", 1, "first page")
	getURLsCmd.Flags().IntVar(&gArgs.PageTo, "to", 1, "last page")
	getURLsCmd.Flags().StringVarP(&gArgs.Output, "output", "o", "", "URL list file (default {downloads_dir}/urls.txt)")
	RootCmd.AddCommand(getURLsCmd)
}

func runGetURLs(cmd *cobra.Command, args []string) error {
	if gArgs.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	if gArgs.PageFrom < 1 || gArgs.PageTo < gArgs.PageFrom {
		return fmt.Errorf("invalid page range %d-%d", gArgs.PageFrom, gArgs.PageTo)
	}
	output := gArgs.Output
	if output == "" {
		output = filepath.Join(cfg.DownloadsDir, "urls.txt")
	}
	n, err := newCollector().CollectToFile(cmd.Context(), gArgs.APIURL, gArgs.PageFrom, gArgs.PageTo, output)
	if err != nil {
		return fmt.Errorf("failed to collect chapter links: %v", err)
	}
	fmt.Printf("%d links appended to %s (%d total)\n", n, output, utils.CountURLs(output))
	return nil
}
