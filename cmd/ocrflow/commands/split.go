package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/minghan/ocrflow/internal/splitter"
)

var splitCmd = &cobra.Command{
	Use:   "split <input.pdf> [outputDir]",
	Short: "Split a multi-page PDF into single-page files",
	Long: `Split a multi-page PDF into single-page files named page_001.pdf,
page_002.pdf, ... in the output directory (default "pages").`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	outputDir := "pages"
	if len(args) > 1 {
		outputDir = args[1]
	}

	if _, err := os.Stat(inputPath); err != nil {
		cmd.SilenceUsage = true
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}
	cmd.SilenceUsage = true

	fmt.Printf("Reading PDF: %s\n", inputPath)

	var bar *progressbar.ProgressBar
	pageCount, err := splitter.Split(inputPath, outputDir, func(n, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "splitting")
		}
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("split failed: %w", err)
	}

	color.Green("Split complete: %d pages", pageCount)
	fmt.Printf("Output directory: %s\n", outputDir)
	return nil
}
