package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/httpx"
)

type WebhookConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

type webhookPayload struct {
	RequestID  string   `json:"request_id"`
	PropertyID string   `json:"property_id"`
	RoomKey    string   `json:"room_key"`
	Kind       string   `json:"kind"`
	Images     []string `json:"images"`
}

// WebhookSink POSTs the event as JSON and retries transient failures.
type WebhookSink struct {
	cfg    WebhookConfig
	client *http.Client
}

func NewWebhookSink(cfg WebhookConfig) *WebhookSink {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &WebhookSink{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Send(ctx context.Context, ev uploads.UploadedEvent) error {
	body, err := json.Marshal(webhookPayload{
		RequestID:  ev.RequestID,
		PropertyID: ev.PropertyID,
		RoomKey:    ev.RoomKey,
		Kind:       ev.Kind,
		Images:     ev.Images,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		resp, err := w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) || attempt == w.cfg.MaxAttempts {
			break
		}
		sleep := httpx.Backoff(w.cfg.BaseBackoff, w.cfg.MaxBackoff, attempt)
		sleep = httpx.RetryAfterDuration(resp, sleep, w.cfg.MaxBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

func (w *WebhookSink) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return resp, &httpx.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
