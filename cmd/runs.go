package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		runs, err := store.List()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"ID", "Title", "Status", "Step", "Updated", "Result / Error"})
		for _, run := range runs {
			detail := run.Result
			if run.Error != "" {
				detail = run.Error
			}
			t.AppendRow(table.Row{
				run.ID,
				run.Input.Title,
				run.State,
				run.Step,
				run.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
				detail,
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	RootCmd.AddCommand(runsCmd)
}
