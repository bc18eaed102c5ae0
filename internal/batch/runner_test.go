package batch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghan/ocrflow/internal/config"
	"github.com/minghan/ocrflow/internal/ocrspace"
)

// fakeAPI simulates the OCR endpoint. Each page fails failures-many times
// before succeeding; -1 means it always fails.
type fakeAPI struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	order    []string
}

func newFakeAPI(failures map[string]int) *fakeAPI {
	return &fakeAPI{
		failures: failures,
		calls:    make(map[string]int),
	}
}

func (f *fakeAPI) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := header.Filename

		f.mu.Lock()
		f.calls[name]++
		call := f.calls[name]
		f.order = append(f.order, name)
		remaining := f.failures[name]
		f.mu.Unlock()

		if remaining == -1 || call <= remaining {
			w.Write([]byte(`{"OCRExitCode":3,"ErrorMessage":"simulated engine failure"}`))
			return
		}
		w.Write([]byte(`{"OCRExitCode":1,"ParsedResults":[{"ParsedText":"text of ` + name + `"}]}`))
	}
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func testRunner(t *testing.T, apiURL string) (*Runner, config.Config) {
	t.Helper()
	cfg := config.Config{
		APIKey:         "K-test",
		APIURL:         apiURL,
		Language:       "chs",
		Engine:         "2",
		Scale:          "true",
		RequestTimeout: 5 * time.Second,
		SleepTime:      0,
		MaxRetries:     3,
		RetryWaitUnit:  time.Millisecond,
		TransportWait:  time.Millisecond,
		OutputDir:      filepath.Join(t.TempDir(), "ocr_text"),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRunner(cfg, ocrspace.New(cfg), logger), cfg
}

func writePages(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4 "+name), 0o644))
	}
	return dir
}

func TestDiscoverPagesSortedAndFiltered(t *testing.T) {
	dir := writePages(t, "page_002.pdf", "page_010.pdf", "page_001.pdf", "notes.txt")

	pages, err := DiscoverPages(dir)

	require.NoError(t, err)
	assert.Equal(t, []string{"page_001.pdf", "page_002.pdf", "page_010.pdf"}, pages)
}

func TestDiscoverPagesEmpty(t *testing.T) {
	for _, dir := range []string{t.TempDir(), writePages(t, "readme.md")} {
		_, err := DiscoverPages(dir)
		assert.ErrorIs(t, err, ErrNoPages)
	}
}

func TestRunAllSucceed(t *testing.T) {
	api := newFakeAPI(nil)
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	runner, cfg := testRunner(t, srv.URL)
	dir := writePages(t, "page_001.pdf", "page_002.pdf", "page_003.pdf")

	summary, err := runner.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"page_001.pdf", "page_002.pdf", "page_003.pdf"}, api.order)

	for _, name := range []string{"page_001.pdf", "page_002.pdf", "page_003.pdf"} {
		content, err := os.ReadFile(filepath.Join(cfg.OutputDir, name+".txt"))
		require.NoError(t, err)
		assert.Equal(t, "text of "+name, string(content))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	api := newFakeAPI(nil)
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	runner, cfg := testRunner(t, srv.URL)
	dir := writePages(t, "page_001.pdf", "page_002.pdf")

	_, err := runner.Run(context.Background(), dir)
	require.NoError(t, err)
	firstCalls := api.totalCalls()

	first, err := os.ReadFile(filepath.Join(cfg.OutputDir, "page_001.pdf.txt"))
	require.NoError(t, err)

	summary, err := runner.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, firstCalls, api.totalCalls(), "second run must make zero network calls")
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)

	second, err := os.ReadFile(filepath.Join(cfg.OutputDir, "page_001.pdf.txt"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProcessPageRetriesThenSucceeds(t *testing.T) {
	const failuresBeforeSuccess = 2

	api := newFakeAPI(map[string]int{"page_001.pdf": failuresBeforeSuccess})
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	runner, cfg := testRunner(t, srv.URL)
	dir := writePages(t, "page_001.pdf")
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))

	status := runner.ProcessPage(context.Background(), filepath.Join(dir, "page_001.pdf"))

	assert.Equal(t, StatusSucceeded, status)
	assert.Equal(t, failuresBeforeSuccess+1, api.callCount("page_001.pdf"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "page_001.pdf.txt"))
}

func TestRunExhaustedRetriesDoesNotAbortBatch(t *testing.T) {
	api := newFakeAPI(map[string]int{"page_001.pdf": -1})
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	runner, cfg := testRunner(t, srv.URL)
	dir := writePages(t, "page_001.pdf", "page_002.pdf")

	summary, err := runner.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, cfg.MaxRetries, api.callCount("page_001.pdf"))
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "page_001.pdf.txt"))
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "page_002.pdf.txt"))
}

func TestProcessPageSkipsExistingWithoutNetwork(t *testing.T) {
	api := newFakeAPI(nil)
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	runner, cfg := testRunner(t, srv.URL)
	dir := writePages(t, "page_001.pdf")
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.OutputDir, "page_001.pdf.txt"), []byte("prior"), 0o644))

	status := runner.ProcessPage(context.Background(), filepath.Join(dir, "page_001.pdf"))

	assert.Equal(t, StatusSkipped, status)
	assert.Equal(t, 0, api.totalCalls())

	content, err := os.ReadFile(filepath.Join(cfg.OutputDir, "page_001.pdf.txt"))
	require.NoError(t, err)
	assert.Equal(t, "prior", string(content))
}

func TestRunEmptyDirectory(t *testing.T) {
	runner, cfg := testRunner(t, "http://127.0.0.1:0")

	_, err := runner.Run(context.Background(), t.TempDir())

	assert.ErrorIs(t, err, ErrNoPages)
	assert.NoDirExists(t, cfg.OutputDir, "no writes on an empty input directory")
}

func TestRunTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	runner, cfg := testRunner(t, srv.URL)
	dir := writePages(t, "page_001.pdf")

	summary, err := runner.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "page_001.pdf.txt"))
}

func TestBackoffSchedule(t *testing.T) {
	runner, cfg := testRunner(t, "http://127.0.0.1:0")
	cfg.RetryWaitUnit = 2 * time.Second
	cfg.TransportWait = 5 * time.Second
	runner.cfg = cfg

	apiErr := &ocrspace.APIError{Message: "busy"}
	malformed := &ocrspace.MalformedResponseError{Body: "<html>"}
	transport := assert.AnError

	assert.Equal(t, 2*time.Second, runner.backoff(apiErr, 1))
	assert.Equal(t, 4*time.Second, runner.backoff(apiErr, 2))
	assert.Equal(t, 2*time.Second, runner.backoff(malformed, 1))
	assert.Equal(t, 5*time.Second, runner.backoff(transport, 1))
	assert.Equal(t, 5*time.Second, runner.backoff(transport, 2))
}
