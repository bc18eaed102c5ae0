// Package batch drives page-by-page OCR over a directory of single-page
// PDFs. Runs are resumable: a page whose text file already exists is skipped
// without any network activity, so an interrupted batch can simply be rerun.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minghan/ocrflow/internal/config"
	"github.com/minghan/ocrflow/internal/ocrspace"
)

// ErrNoPages is returned by Run when the input directory contains no page
// files.
var ErrNoPages = errors.New("no pdf files found")

// PageStatus is the terminal state of one page within a batch run.
type PageStatus int

const (
	StatusPending PageStatus = iota
	StatusSkipped // output already existed
	StatusSucceeded
	StatusFailed // all retries exhausted
)

func (s PageStatus) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Recognizer is the OCR dependency. *ocrspace.Client satisfies it.
type Recognizer interface {
	Recognize(ctx context.Context, pdfPath string) (string, error)
}

// Summary holds the final counts of a batch run.
type Summary struct {
	Total     int
	Skipped   int
	Succeeded int
	Failed    int
}

// Runner processes a directory of page files strictly in order, one at a
// time.
type Runner struct {
	cfg        config.Config
	recognizer Recognizer
	logger     *slog.Logger
}

// NewRunner creates a Runner. The logger receives every attempt, success and
// failure; pass a logger writing to both stdout and the batch log file.
func NewRunner(cfg config.Config, recognizer Recognizer, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		recognizer: recognizer,
		logger:     logger,
	}
}

// DiscoverPages lists the page files in dir, sorted lexicographically. The
// zero-padded page numbering makes that order equal to page order.
func DiscoverPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read page directory %s: %w", dir, err)
	}
	var pages []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".pdf") {
			pages = append(pages, entry.Name())
		}
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	sort.Strings(pages)
	return pages, nil
}

// Run processes every page file in pdfDir and returns the batch summary.
// Per-page failures are recorded and never abort the run.
func (r *Runner) Run(ctx context.Context, pdfDir string) (*Summary, error) {
	pages, err := DiscoverPages(pdfDir)
	if err != nil {
		if errors.Is(err, ErrNoPages) {
			r.logger.Error("No PDF files found.", "dir", pdfDir)
		}
		return nil, err
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	summary := &Summary{Total: len(pages)}
	r.logger.Info("Starting batch OCR run.", "total", summary.Total, "dir", pdfDir)

	for i, page := range pages {
		r.logger.Info(fmt.Sprintf("Progress: [%d/%d]", i+1, summary.Total), "page", page)

		status := r.ProcessPage(ctx, filepath.Join(pdfDir, page))
		switch status {
		case StatusSkipped:
			summary.Skipped++
			summary.Succeeded++
		case StatusSucceeded:
			summary.Succeeded++
		case StatusFailed:
			summary.Failed++
		}

		// Unconditional pause between requests to respect the API's rate
		// limit; nothing to pace after the last page.
		if i < len(pages)-1 {
			if err := sleepCtx(ctx, r.cfg.SleepTime); err != nil {
				return summary, err
			}
		}
	}

	r.logger.Info("Batch OCR run complete.",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"outputDir", r.cfg.OutputDir,
	)
	return summary, nil
}

// ProcessPage OCRs a single page file with bounded retries. The text output
// path is derived from the page filename; its existence marks the page as
// already processed.
func (r *Runner) ProcessPage(ctx context.Context, pdfPath string) PageStatus {
	filename := filepath.Base(pdfPath)
	txtPath := filepath.Join(r.cfg.OutputDir, filename+".txt")
	logCtx := r.logger.With("page", filename)

	if _, err := os.Stat(txtPath); err == nil {
		logCtx.Info("Skipping already processed page.")
		return StatusSkipped
	}

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		logCtx.Info(fmt.Sprintf("OCR attempt [%d/%d]", attempt, r.cfg.MaxRetries))

		text, err := r.recognizer.Recognize(ctx, pdfPath)
		if err == nil {
			if writeErr := os.WriteFile(txtPath, []byte(text), 0o644); writeErr != nil {
				logCtx.Error("Failed to write text output.", "error", writeErr)
				return StatusFailed
			}
			logCtx.Info("Page recognized.", "output", txtPath)
			return StatusSucceeded
		}

		logCtx.Error("OCR attempt failed.", "error", err)

		if attempt == r.cfg.MaxRetries {
			break
		}
		wait := r.backoff(err, attempt)
		logCtx.Info("Waiting before retry.", "wait", wait.String())
		if sleepErr := sleepCtx(ctx, wait); sleepErr != nil {
			logCtx.Error("Cancelled during backoff.", "error", sleepErr)
			return StatusFailed
		}
	}

	logCtx.Error("Page failed after all retries.")
	return StatusFailed
}

// backoff picks the wait before the next attempt. Structured API failures
// (including malformed responses) escalate with the attempt index, which
// suits an overloaded service; timeouts and transport errors get a flat
// wait, which suits a transient network fault.
func (r *Runner) backoff(err error, attempt int) time.Duration {
	var apiErr *ocrspace.APIError
	var malformedErr *ocrspace.MalformedResponseError
	if errors.As(err, &apiErr) || errors.As(err, &malformedErr) {
		return time.Duration(attempt) * r.cfg.RetryWaitUnit
	}
	return r.cfg.TransportWait
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
