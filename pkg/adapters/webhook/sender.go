// Package webhook posts lead events to the external automation
// endpoint configured for this site.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openlistings/leadsync/pkg/ports"
)

const requestTimeout = 15 * time.Second

type Sender struct {
	endpoint string
	secret   string
	http     *http.Client
}

// NewSender returns nil when no endpoint is configured; delivery
// becomes a no-op.
func NewSender(endpoint, secret string) *Sender {
	if endpoint == "" {
		return nil
	}
	return &Sender{
		endpoint: endpoint,
		secret:   secret,
		http:     &http.Client{Timeout: requestTimeout},
	}
}

// Send posts the payload. Any HTTP status >= 400 is an error so the
// delivery queue treats rejections like network failures.
func (s *Sender) Send(ctx context.Context, payload []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Webhook-Secret", s.secret)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return resp.Status, fmt.Errorf("webhook returned %s", resp.Status)
	}
	return resp.Status, nil
}

var _ ports.WebhookSender = (*Sender)(nil)
