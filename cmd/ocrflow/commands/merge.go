package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/minghan/ocrflow/internal/merger"
)

var mergePlain bool

var mergeCmd = &cobra.Command{
	Use:   "merge <txtDir> [output]",
	Short: "Merge per-page text files into one document",
	Long: `Concatenate the per-page text files in the directory, in page
order, into a single output file (default "final_ocr_result.txt"). By
default each page is preceded by a banner naming its source file; with
--plain pages are separated by a blank line only.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().BoolVar(&mergePlain, "plain", false, "omit file banners, separate pages with a blank line")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	outputPath := "final_ocr_result.txt"
	if len(args) > 1 {
		outputPath = args[1]
	}

	if _, err := os.Stat(inputDir); err != nil {
		cmd.SilenceUsage = true
		return fmt.Errorf("directory does not exist: %s", inputDir)
	}
	cmd.SilenceUsage = true

	var bar *progressbar.ProgressBar
	count, err := merger.Merge(inputDir, outputPath, mergePlain, func(n, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "merging")
		}
		_ = bar.Add(1)
	})
	if err != nil {
		if errors.Is(err, merger.ErrNoFiles) {
			return fmt.Errorf("no text files found in %s", inputDir)
		}
		return fmt.Errorf("merge failed: %w", err)
	}

	color.Green("Merge complete: %d files", count)
	fmt.Printf("Output file: %s\n", outputPath)
	return nil
}
