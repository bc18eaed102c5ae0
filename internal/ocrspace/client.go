// Package ocrspace is a minimal client for the OCR.space parse API.
package ocrspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/minghan/ocrflow/internal/config"
)

// exitCodeSuccess is the engine-level success indicator in the response.
const exitCodeSuccess = 1

// APIError is a structured failure reported by the OCR engine. It is
// retryable with an escalating backoff.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ocr api error: %s", e.Message)
}

// MalformedResponseError is a response body that could not be interpreted:
// either not JSON at all, or a success code with no parsed results. The raw
// body is kept for diagnostics. Treated like an API error for retry purposes.
type MalformedResponseError struct {
	Body string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed ocr response: %s", truncate(e.Body, 200))
}

// parseResponse mirrors the JSON shape of the OCR.space API.
type parseResponse struct {
	OCRExitCode   int            `json:"OCRExitCode"`
	ParsedResults []parsedResult `json:"ParsedResults"`
	ErrorMessage  errorMessage   `json:"ErrorMessage"`
}

type parsedResult struct {
	ParsedText string `json:"ParsedText"`
}

// errorMessage tolerates both encodings OCR.space uses: a plain string or an
// array of strings.
type errorMessage []string

func (m *errorMessage) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = errorMessage{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*m = errorMessage(many)
	return nil
}

func (m errorMessage) String() string {
	return strings.Join(m, "; ")
}

// Client submits single-page PDFs for recognition.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
}

// New creates a Client from the given configuration.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Recognize uploads the PDF at pdfPath and returns the recognized text.
// Failures are reported as *APIError, *MalformedResponseError, or a wrapped
// transport error.
func (c *Client) Recognize(ctx context.Context, pdfPath string) (string, error) {
	body, contentType, err := c.buildRequestBody(pdfPath)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ocr response: %w", err)
	}

	var parsed parseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &MalformedResponseError{Body: string(raw)}
	}

	if parsed.OCRExitCode != exitCodeSuccess {
		msg := parsed.ErrorMessage.String()
		if msg == "" {
			msg = fmt.Sprintf("exit code %d", parsed.OCRExitCode)
		}
		return "", &APIError{Message: msg}
	}
	if len(parsed.ParsedResults) == 0 {
		// Success code without any parsed text payload.
		return "", &MalformedResponseError{Body: string(raw)}
	}

	return parsed.ParsedResults[0].ParsedText, nil
}

// buildRequestBody assembles the multipart form: the page file plus the
// recognition parameters the API expects.
func (c *Client) buildRequestBody(pdfPath string) (*bytes.Buffer, string, error) {
	file, err := os.Open(pdfPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open page file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("failed to copy page file into request: %w", err)
	}

	fields := map[string]string{
		"apikey":    c.cfg.APIKey,
		"language":  c.cfg.Language,
		"OCREngine": c.cfg.Engine,
		"scale":     c.cfg.Scale,
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
