// Package billing talks to the subscription-status provider. Payment
// processing itself lives with the external processor; this client only reads
// plan tiers and feature entitlements.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds connection details for the subscription-status provider.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client queries subscription status over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// NewClient creates a subscription-status client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger.With().Str("component", "billing").Logger(),
	}
}

type subscriptionResponse struct {
	Plan         string `json:"plan"`
	Entitlements struct {
		Multiplayer bool `json:"multiplayer"`
	} `json:"entitlements"`
}

// CanPlayMultiplayer reports whether the user's plan includes multiplayer
// rooms. A missing subscription record means the free tier: no multiplayer.
func (c *Client) CanPlayMultiplayer(ctx context.Context, userID uuid.UUID) (bool, error) {
	if c.baseURL == "" {
		// No provider configured (local development): everything is allowed.
		return true, nil
	}

	url := fmt.Sprintf("%s/v1/subscriptions/%s", c.baseURL, userID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("subscription lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("subscription provider returned status %d", resp.StatusCode)
	}

	var payload subscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode subscription payload: %w", err)
	}

	return payload.Entitlements.Multiplayer, nil
}
