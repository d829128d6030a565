package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Line is one recognized text line with its position on the image
type Line struct {
	Text string `json:"text"`
	Top  int    `json:"top"`
	Left int    `json:"left"`
}

// Result is the raw OCR output for one image
type Result struct {
	Text  string `json:"text"`
	Lines []Line `json:"lines,omitempty"`
}

// SplitLines returns the recognized lines, falling back to splitting the
// full text when the backend returned no line geometry.
func (r *Result) SplitLines() []string {
	if len(r.Lines) > 0 {
		out := make([]string, 0, len(r.Lines))
		for _, l := range r.Lines {
			out = append(out, l.Text)
		}
		return out
	}
	return strings.Split(r.Text, "\n")
}

// Client recognizes text on a document photo
type Client interface {
	Detect(ctx context.Context, image []byte) (*Result, error)
}

// HTTPClient calls a remote vision endpoint
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

// NewHTTPClient creates an OCR client from configuration
func NewHTTPClient(cfg *config.OCRConfig, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  log.WithComponent("ocr-client"),
	}
}

type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// Detect posts the image to the vision endpoint and returns recognized text
func (c *HTTPClient) Detect(ctx context.Context, image []byte) (*Result, error) {
	start := time.Now()

	body, err := json.Marshal(detectRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode OCR request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detect", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("OCR endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	c.logger.Debug().
		Int("image_bytes", len(image)).
		Int("lines", len(result.Lines)).
		Dur("duration", time.Since(start)).
		Msg("OCR detect completed")

	return &result, nil
}
