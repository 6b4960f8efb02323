package cmd

import (
	"github.com/spf13/cobra"

	"novel-epub/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the submission and status API",
	Long:  "Serve POST /make, GET /status/{id} and GET /download/{id}. Unfinished runs from a previous process are resumed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.ListenAddr = serveAddr
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

		if n, err := engine.Resume(cmd.Context()); err != nil {
			logger.Errorf("Failed to resume runs: %v", err)
		} else if n > 0 {
			logger.Infof("Resumed %d unfinished runs", n)
		}
		return server.New(cfg, engine, component("api")).ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "listen", "l", "", "listen address (default from config)")
	RootCmd.AddCommand(serveCmd)
}
