// Package peer implements the HTTP client side of the replication
// protocol: pushes, delete propagation and the register handshake.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

const requestTimeout = 10 * time.Second

type Client struct {
	baseURL string
	apiKey  string
	siteURL string
	http    *http.Client
}

// NewClient returns nil when the hub URL or API key is missing, so
// callers treat replication as unconfigured rather than broken.
func NewClient(baseURL, apiKey, siteURL string) *Client {
	if baseURL == "" || apiKey == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		siteURL: siteURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

func (c *Client) Push(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResponse, error) {
	var out domain.SyncResponse
	if err := c.post(ctx, "/api/v1/sync/receive", payload, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, payload *domain.DeletePayload) (*domain.SyncResponse, error) {
	var out domain.SyncResponse
	if err := c.post(ctx, "/api/v1/sync/delete", payload, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, payload *domain.RegisterPayload) (*domain.RegisterResponse, error) {
	var out domain.RegisterResponse
	if err := c.post(ctx, "/api/v1/sync/register", payload, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// post sends one JSON request. The partner header is only attached on
// pushes; it lets the hub attribute an inbound shadow to its origin.
func (c *Client) post(ctx context.Context, path string, in, out interface{}, partnerHeader bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if partnerHeader {
		req.Header.Set("X-Partner-URL", c.siteURL)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("peer returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ ports.PeerClient = (*Client)(nil)
