package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/minghan/ocrflow/internal/batch"
	"github.com/minghan/ocrflow/internal/config"
	"github.com/minghan/ocrflow/internal/ocrspace"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr <pdfDir>",
	Short: "OCR every single-page PDF in a directory",
	Long: `Run every single-page PDF in the directory through the OCR.space
API, writing one UTF-8 text file per page into the output directory
(default "ocr_text"). Pages whose text file already exists are skipped, so
an interrupted run can simply be restarted.

Requires OCR_API_KEY in the environment or a .env file.`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

func init() {
	rootCmd.AddCommand(ocrCmd)
}

func runOCR(cmd *cobra.Command, args []string) error {
	pdfDir := args[0]

	if _, err := os.Stat(pdfDir); err != nil {
		cmd.SilenceUsage = true
		return fmt.Errorf("directory does not exist: %s", pdfDir)
	}
	cmd.SilenceUsage = true

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := batch.NewRunner(cfg, ocrspace.New(cfg), logger)
	summary, err := runner.Run(ctx, pdfDir)
	if err != nil {
		if errors.Is(err, batch.ErrNoPages) {
			return fmt.Errorf("no pdf files found in %s", pdfDir)
		}
		return err
	}

	if summary.Failed > 0 {
		color.Red("Done with failures: %d/%d succeeded, %d failed", summary.Succeeded, summary.Total, summary.Failed)
	} else {
		color.Green("Done: %d/%d pages succeeded", summary.Succeeded, summary.Total)
	}
	fmt.Printf("Text files in: %s/\n", cfg.OutputDir)
	return nil
}
