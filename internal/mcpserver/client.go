package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for connecting to the PartnerHub API.
type Config struct {
	APIURL    string // Base URL, e.g. "http://localhost:8080"
	APIKey    string // Partner API key, e.g. "pk_..."
	PartnerID string // The partner the tools act on behalf of, e.g. "ptn_..."
}

// PartnerHubClient is a pure HTTP client for the PartnerHub API.
type PartnerHubClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewPartnerHubClient creates a new client for the PartnerHub API.
func NewPartnerHubClient(cfg Config) *PartnerHubClient {
	return &PartnerHubClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *PartnerHubClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// GetPartner returns the partner account with its effective rate.
func (c *PartnerHubClient) GetPartner(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/partners/"+c.cfg.PartnerID, nil, nil)
}

// GetTiers returns the tier catalog.
func (c *PartnerHubClient) GetTiers(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/tiers", nil, nil)
}

// CheckLimit asks whether the partner may consume delta more of a resource.
func (c *PartnerHubClient) CheckLimit(ctx context.Context, resource string, delta, current int) (json.RawMessage, error) {
	body := map[string]any{
		"resource": resource,
		"delta":    delta,
	}
	if current > 0 {
		body["current"] = current
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/partners/"+c.cfg.PartnerID+"/limit-check", nil, body)
}

// ListCustomers returns the partner's customers.
func (c *PartnerHubClient) ListCustomers(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/partners/"+c.cfg.PartnerID+"/customers", nil, nil)
}

// GetPerformance returns the partner's performance snapshot.
func (c *PartnerHubClient) GetPerformance(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/partners/"+c.cfg.PartnerID+"/performance", nil, nil)
}

// GetEligibility returns the partner's tier upgrade evaluation.
func (c *PartnerHubClient) GetEligibility(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/partners/"+c.cfg.PartnerID+"/eligibility", nil, nil)
}

// GetReport returns the partner's commission report for a window.
func (c *PartnerHubClient) GetReport(ctx context.Context, from, to, status string) (json.RawMessage, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	if status != "" {
		q.Set("status", status)
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/partners/"+c.cfg.PartnerID+"/report", q, nil)
}
