package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"novel-epub/epub"
)

type convertArgs struct {
	DirPath string `validate:"required"`
	Output  string
	Title   string
	Author  string
	Cover   string
}

var cArgs convertArgs

var convertCmd = &cobra.Command{
	Use:     "convert",
	Aliases: []string{"pack"},
	Short:   "pack an epub file from a chapter directory",
	Long:    "pack an epub file from a directory of downloaded chapter files",
	RunE:    runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&cArgs.DirPath, "dir-path", "d", "", "chapter directory (default {downloads_dir})")
	convertCmd.Flags().StringVarP(&cArgs.Output, "output", "o", "", "epub file (default {epub_output_dir}/{author}_{title}.epub)")
	convertCmd.Flags().StringVarP(&cArgs.Title, "title", "t", "", "book title")
	convertCmd.Flags().StringVarP(&cArgs.Author, "author", "a", "", "book author")
	convertCmd.Flags().StringVar(&cArgs.Cover, "cover", "", "cover image path or url")
	RootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if cArgs.Title == "" || cArgs.Author == "" {
		return fmt.Errorf("title and author are required")
	}
	dir := cArgs.DirPath
	if dir == "" {
		dir = cfg.DownloadsDir
	}
	assembler, err := newAssembler()
	if err != nil {
		return err
	}
	path, err := assembler.Assemble(cmd.Context(), epub.Options{
		InputDir:   dir,
		OutputFile: cArgs.Output,
		Title:      cArgs.Title,
		Author:     cArgs.Author,
		CoverPath:  cArgs.Cover,
	})
	if err != nil {
		return fmt.Errorf("failed to create epub: %w", err)
	}
	fmt.Printf("EPUB written to %s\n", path)
	return nil
}
