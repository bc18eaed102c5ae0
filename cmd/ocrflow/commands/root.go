package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ocrflow",
	Short: "Split, OCR and merge scanned PDF documents",
	Long: `ocrflow digitizes a scanned multi-page PDF in three stages:

  split   split the PDF into single-page files
  ocr     run each page through the OCR.space API (resumable)
  merge   concatenate the recognized text back into one document

Each stage reads and writes plain files, so stages can be rerun
independently. An interrupted OCR run picks up where it left off.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
