package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// GatewayChecker implements health checking for an external payment
// gateway. Gateways rarely expose a standard health endpoint, so we check
// that the base URL is reachable.
type GatewayChecker struct {
	name   string
	url    string
	client *http.Client
}

// NewGatewayChecker creates a new gateway health checker.
// The url should be the base URL of the gateway API.
func NewGatewayChecker(name, url string) *GatewayChecker {
	return &GatewayChecker{
		name: name,
		url:  url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck performs a reachability check on the gateway.
func (g *GatewayChecker) HealthCheck(ctx context.Context) error {
	if g.url == "" {
		return fmt.Errorf("%s url not configured", g.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", g.name, err)
	}
	defer resp.Body.Close()

	// Any response below 500 means the gateway is up; auth or routing
	// errors are expected for a bare GET on the base URL.
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%s unhealthy: unexpected status code %d", g.name, resp.StatusCode)
	}

	return nil
}
