package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// SuggestConfig controls the suggestion client.
type SuggestConfig struct {
	// Endpoint is the completion endpoint; the default answers with a JSON
	// array of the form [query, [suggestion, ...]].
	Endpoint string
	// Timeout bounds each request.
	Timeout time.Duration
}

// SuggestClient fetches follow-up query suggestions for a query string.
type SuggestClient struct {
	cfg    SuggestConfig
	client *http.Client
	logger *zap.Logger
}

// NewSuggestClient constructs a SuggestClient.
func NewSuggestClient(cfg SuggestConfig, logger *zap.Logger) *SuggestClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://suggestqueries.google.com/complete/search?client=firefox&ds=yt"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SuggestClient{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Suggest returns the suggestion list for query.
func (c *SuggestClient) Suggest(ctx context.Context, query string) ([]string, error) {
	endpoint := fmt.Sprintf("%s&q=%s", c.cfg.Endpoint, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build suggest request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggest request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read suggest body: %w", err)
	}

	// Reply shape: [query, [s1, s2, ...], ...extras].
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode suggest reply: %w", err)
	}
	if len(raw) < 2 {
		return nil, nil
	}
	var suggestions []string
	if err := json.Unmarshal(raw[1], &suggestions); err != nil {
		return nil, fmt.Errorf("decode suggestion list: %w", err)
	}
	return suggestions, nil
}
