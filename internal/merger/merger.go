// Package merger concatenates per-page OCR text files back into one
// document.
package merger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFiles is returned when the input directory holds no text files.
var ErrNoFiles = errors.New("no text files found")

const bannerRule = "============================================================"

// Merge concatenates the .txt files in inputDir, in lexicographic filename
// order, into outputPath. In plain mode pages are separated by a blank line
// only; otherwise each page is preceded by a banner naming its source file.
// Returns the number of files merged. No output is written when the
// directory has no text files.
func Merge(inputDir, outputPath string, plain bool, onFile func(n, total int)) (int, error) {
	names, err := listTextFiles(inputDir)
	if err != nil {
		return 0, err
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}

	var mergeErr error
	for i, name := range names {
		content, err := os.ReadFile(filepath.Join(inputDir, name))
		if err != nil {
			mergeErr = fmt.Errorf("failed to read %s: %w", name, err)
			break
		}
		if err := writePage(out, name, content, plain); err != nil {
			mergeErr = err
			break
		}
		if onFile != nil {
			onFile(i+1, len(names))
		}
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to finalize output file: %w", err)
	}
	if mergeErr != nil {
		return 0, mergeErr
	}
	return len(names), nil
}

func writePage(out *os.File, name string, content []byte, plain bool) error {
	if plain {
		if _, err := out.Write(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if _, err := out.WriteString("\n\n"); err != nil {
			return fmt.Errorf("failed to write separator: %w", err)
		}
		return nil
	}

	banner := fmt.Sprintf("\n%s\nFile: %s\n%s\n", bannerRule, name, bannerRule)
	if _, err := out.WriteString(banner); err != nil {
		return fmt.Errorf("failed to write banner: %w", err)
	}
	if _, err := out.Write(content); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func listTextFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".txt") {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrNoFiles
	}
	sort.Strings(names)
	return names, nil
}
