package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookForwarder relays a verified provider callback to the order backend.
type WebhookForwarder interface {
	Forward(ctx context.Context, headers http.Header, body []byte) error
}

type webhookForwarderImpl struct {
	targetURL  string
	httpClient *http.Client
}

func NewWebhookForwarder(backendURL, forwardPath string, timeout time.Duration) WebhookForwarder {
	return &webhookForwarderImpl{
		targetURL:  strings.TrimRight(backendURL, "/") + forwardPath,
		httpClient: &http.Client{Timeout: timeout},
	}
}

var forwardedHeaders = []string{
	"Content-Type",
	"X-Webhook-Signature",
	"X-Webhook-Timestamp",
	"X-Webhook-Version",
	"X-Request-Id",
}

func (f *webhookForwarderImpl) Forward(ctx context.Context, headers http.Header, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.targetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	for _, h := range forwardedHeaders {
		if v := headers.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return nil
}
