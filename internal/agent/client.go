package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// Client talks to the escalation agent backend and to the analysis
// collaborator that produces measurements. All calls are bounded by the
// configured timeout; callers decide how to recover from failures.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new escalation agent client
func NewClient(baseURL, authToken string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   baseURL,
		authToken: authToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// AnalyzeRequest is the body of the analyze-and-act escalation call.
type AnalyzeRequest struct {
	HealthAnalysisID  int    `json:"health_analysis_id"`
	AutoBookCritical  bool   `json:"auto_book_critical"`
	PreferredDatetime string `json:"preferred_datetime"`
}

// AnalyzeAndAct performs the remote escalation call. It makes a single
// attempt; recovery from failure belongs to the orchestrator, which falls
// back to locally generated recommendations.
func (c *Client) AnalyzeAndAct(ctx context.Context, req AnalyzeRequest) (*model.AgentResponse, error) {
	startTime := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	var resp model.AgentResponse
	if err := c.do(ctx, http.MethodPost, "/agent/analyze-and-act", body, &resp); err != nil {
		c.logger.Warn("escalation call failed",
			zap.Error(err),
			zap.Int("health_analysis_id", req.HealthAnalysisID),
			zap.Duration("elapsed", time.Since(startTime)),
		)
		return nil, fmt.Errorf("escalation call failed: %w", err)
	}

	c.logger.Info("escalation call completed",
		zap.Int("health_analysis_id", req.HealthAnalysisID),
		zap.String("priority_level", resp.AnalysisSummary.PriorityLevel),
		zap.Bool("appointment_booked", resp.AppointmentBooked != nil),
		zap.Duration("elapsed", time.Since(startTime)),
	)

	return &resp, nil
}

// FetchThresholds retrieves the configured critical-value rule table.
// Callers substitute the hard-coded default table on any failure.
func (c *Client) FetchThresholds(ctx context.Context) ([]model.ThresholdRule, error) {
	var resp struct {
		Thresholds []model.ThresholdRule `json:"thresholds"`
	}

	if err := c.do(ctx, http.MethodGet, "/agent/critical-thresholds", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch thresholds: %w", err)
	}

	c.logger.Info("thresholds fetched",
		zap.Int("rule_count", len(resp.Thresholds)),
	)

	return resp.Thresholds, nil
}

// Measurements retrieves the measurement set for one analysis from the
// analysis collaborator. This subsystem never produces measurements
// itself.
func (c *Client) Measurements(ctx context.Context, analysisID int) ([]model.Measurement, error) {
	var resp struct {
		Metrics []model.Measurement `json:"metrics"`
	}

	path := fmt.Sprintf("/analyses/%d/metrics", analysisID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch measurements for analysis %d: %w", analysisID, err)
	}

	c.logger.Info("measurements fetched",
		zap.Int("analysis_id", analysisID),
		zap.Int("measurement_count", len(resp.Metrics)),
	)

	return resp.Metrics, nil
}

// do executes one HTTP request against the agent backend and decodes the
// JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a bounded amount of the error body for logging context.
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(errBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
