package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// NodeReport is what a Node returns when asked for its current challenge
// solution and per-minute HMAC (spec §4.9, "Audit result consumption").
type NodeReport struct {
	Solution       string    `json:"solution"` // hex
	HMAC           string    `json:"hmac"`
	PublicURI      string    `json:"public_uri"`
	ObservedIP     string    `json:"observed_ip"` // the IP the Node saw this request arrive from
	ReportedAt     time.Time `json:"reported_at"`
	Version        int       `json:"version"`
}

// NodeClient queries a Node's `/audit` endpoint for its current report.
type NodeClient struct {
	http *http.Client
}

// NewNodeClient constructs a NodeClient with the given per-request timeout.
func NewNodeClient(timeout time.Duration) *NodeClient {
	return &NodeClient{http: &http.Client{Timeout: timeout}}
}

// Query asks publicURI for its current audit report.
func (c *NodeClient) Query(ctx context.Context, publicURI string) (*NodeReport, error) {
	u, err := url.Parse(publicURI)
	if err != nil {
		return nil, fmt.Errorf("audit: parse node uri: %w", err)
	}
	u.Path = "/audit"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("audit: build node request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("audit: query node: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audit: query node: status %d", resp.StatusCode)
	}

	var report NodeReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("audit: decode node report: %w", err)
	}
	return &report, nil
}
