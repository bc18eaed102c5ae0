// Package splitter turns a multi-page PDF into single-page PDFs named
// page_001.pdf, page_002.pdf, ... so that lexicographic filename order is
// page order.
package splitter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Split writes one PDF per page of inputPath into outputDir (created if
// absent) and returns the page count. The source is optimized with relaxed
// validation before splitting. If splitting fails mid-way, pages already
// written stay on disk.
func Split(inputPath, outputDir string, onPage func(n, total int)) (int, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "ocrflow-split-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	if err := optimizePDF(inputPath, optimizedPath); err != nil {
		return 0, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}

	pageCount, err := api.PageCountFile(optimizedPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}

	if err := api.SplitFile(optimizedPath, tempDir, 1, nil); err != nil {
		return 0, fmt.Errorf("failed to split PDF: %w", err)
	}

	// pdfcpu names the split files <base>_<n>.pdf without zero padding;
	// move them into place under the padded page naming scheme.
	splitBase := splitFileBase(optimizedPath)
	for i := 1; i <= pageCount; i++ {
		src := fmt.Sprintf("%s_%d.pdf", splitBase, i)
		dst := filepath.Join(outputDir, PageFileName(i))
		if err := movePage(src, dst); err != nil {
			return 0, fmt.Errorf("page %d: %w", i, err)
		}
		if onPage != nil {
			onPage(i, pageCount)
		}
	}

	return pageCount, nil
}

// PageFileName returns the canonical filename for the 1-based page index,
// zero-padded to three digits.
func PageFileName(index int) string {
	return fmt.Sprintf("page_%03d.pdf", index)
}

func splitFileBase(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

// movePage renames src to dst, falling back to copy+remove when the temp
// dir and the output dir sit on different filesystems.
func movePage(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read split page: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write page file: %w", err)
	}
	return os.Remove(src)
}
