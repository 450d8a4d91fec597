package api

// RATE SERVICE CLIENT

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fleetquote/internal/pricing"
	"fleetquote/internal/rates"
)

// Client talks to the rate configuration service. It implements
// rates.Source and pricing.PlanSource.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchRates retrieves the current calculation constants, vehicle-group
// tables and tax indices in one call.
func (c *Client) FetchRates(ctx context.Context) (rates.Snapshot, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET",
		fmt.Sprintf("%s/api/rates", c.baseURL),
		nil,
	)
	if err != nil {
		return rates.Snapshot{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rates.Snapshot{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rates.Snapshot{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var snap rates.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return rates.Snapshot{}, fmt.Errorf("decode response: %w", err)
	}

	return snap, nil
}

// FetchProtectionPlan retrieves one protection plan's monthly cost.
func (c *Client) FetchProtectionPlan(ctx context.Context, planID int64) (pricing.ProtectionPlan, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		"GET",
		fmt.Sprintf("%s/api/protection-plans/%d", c.baseURL, planID),
		nil,
	)
	if err != nil {
		return pricing.ProtectionPlan{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pricing.ProtectionPlan{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pricing.ProtectionPlan{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var plan pricing.ProtectionPlan
	if err := json.NewDecoder(resp.Body).Decode(&plan); err != nil {
		return pricing.ProtectionPlan{}, fmt.Errorf("decode response: %w", err)
	}

	return plan, nil
}

var (
	_ rates.Source       = (*Client)(nil)
	_ pricing.PlanSource = (*Client)(nil)
)
