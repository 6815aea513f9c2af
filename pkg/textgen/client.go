package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"listingpilot/backend/internal/models"
)

var ErrNotConfigured = errors.New("text generation endpoint not configured")

// Client calls the description-generation service.
type Client struct {
	serviceURL string
	client     *http.Client
}

type generateRequest struct {
	Vehicle models.VehicleListing `json:"vehicle"`
}

// GenerateResponse is the service's reply body.
type GenerateResponse struct {
	Success     bool   `json:"success"`
	Description string `json:"description"`
	Error       string `json:"error,omitempty"`
}

func NewClient(serviceURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		serviceURL: strings.TrimSpace(serviceURL),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Generate asks the service for a listing description. Any non-2xx status,
// malformed body or empty description is an error.
func (c *Client) Generate(ctx context.Context, v models.VehicleListing) (string, error) {
	if c.serviceURL == "" {
		return "", ErrNotConfigured
	}

	jsonData, err := json.Marshal(generateRequest{Vehicle: v})
	if err != nil {
		return "", fmt.Errorf("encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call text generation service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("text generation service returned %d", resp.StatusCode)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}
	if !genResp.Success {
		return "", fmt.Errorf("text generation failed: %s", genResp.Error)
	}
	if strings.TrimSpace(genResp.Description) == "" {
		return "", errors.New("text generation returned an empty description")
	}
	return genResp.Description, nil
}
