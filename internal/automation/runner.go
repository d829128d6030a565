package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/stayflow/stayflow-backend/internal/pms"
	"github.com/stayflow/stayflow-backend/pkg/config"
	"github.com/stayflow/stayflow-backend/pkg/logger"
)

// Runner performs an online check-in through the property's web form when
// direct guest submission is unavailable. Remote action with a plain
// success-or-failure outcome.
type Runner interface {
	PerformCheckin(ctx context.Context, checkinURL string, guests []pms.Guest) error
}

// HTTPRunner delegates to a headless-browser runner service
type HTTPRunner struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewHTTPRunner creates a runner client from configuration
func NewHTTPRunner(cfg *config.AutomationConfig, log *logger.Logger) *HTTPRunner {
	return &HTTPRunner{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.WithComponent("automation-runner"),
	}
}

type checkinJob struct {
	CheckinURL string      `json:"checkin_url"`
	Guests     []pms.Guest `json:"guests"`
}

func (r *HTTPRunner) PerformCheckin(ctx context.Context, checkinURL string, guests []pms.Guest) error {
	payload, err := json.Marshal(checkinJob{CheckinURL: checkinURL, Guests: guests})
	if err != nil {
		return fmt.Errorf("failed to marshal check-in job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/checkin", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("automation runner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("automation runner returned %d: %s", resp.StatusCode, string(body))
	}

	r.logger.Info().
		Str("checkin_url", checkinURL).
		Int("guests", len(guests)).
		Msg("online check-in form submitted")

	return nil
}
