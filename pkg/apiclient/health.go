package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/marmos91/fileserv/internal/cli/health"
)

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (*health.Response, error) {
	return c.probe(ctx, "/health")
}

// Ready calls the readiness probe. An unready server is not an error: the
// response carries the failing components.
func (c *Client) Ready(ctx context.Context) (*health.Response, error) {
	return c.probe(ctx, "/health/ready")
}

func (c *Client) probe(ctx context.Context, path string) (*health.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, decodeError(resp)
	}
	var out health.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &out, nil
}
