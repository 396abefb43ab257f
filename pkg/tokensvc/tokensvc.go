// Copyright 2025 Certen Protocol
//
// Package tokensvc is a thin client for the external token-transfer/balance
// service spec §6 describes (`GET /balance/:addr`, `POST /transfer`). The
// teacher talks to its token ledger over a live `ethclient` JSON-RPC
// connection (pkg/ethereum/client.go); this spec's token service is a plain
// HTTP JSON collaborator instead, so the dial-a-node shape is replaced with
// a context+timeout+wrapped-error HTTP client built the same way.
package tokensvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client calls the external token-transfer/balance service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Balance fetches the on-chain balance (in grains) for addr.
func (c *Client) Balance(ctx context.Context, addr string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/balance/"+url.PathEscape(addr), nil)
	if err != nil {
		return 0, fmt.Errorf("tokensvc: build balance request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tokensvc: balance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("tokensvc: balance request: status %d", resp.StatusCode)
	}

	var out struct {
		Balance int64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("tokensvc: decode balance response: %w", err)
	}
	return out.Balance, nil
}

// Transfer moves value grains to toAddr, returning the resulting
// transaction id.
func (c *Client) Transfer(ctx context.Context, toAddr string, value int64) (string, error) {
	body, err := json.Marshal(struct {
		ToAddr string `json:"to_addr"`
		Value  int64  `json:"value"`
	}{ToAddr: toAddr, Value: value})
	if err != nil {
		return "", fmt.Errorf("tokensvc: marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/transfer", strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("tokensvc: build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("tokensvc: transfer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tokensvc: transfer request: status %d", resp.StatusCode)
	}

	var out struct {
		TrxID string `json:"trx_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("tokensvc: decode transfer response: %w", err)
	}
	return out.TrxID, nil
}
