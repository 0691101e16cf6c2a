package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Webhook POSTs each finished game as JSON.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	headers map[string]string

	defaultTimeout time.Duration
	retryMax       int
}

type WebhookOption func(*Webhook)

func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.defaultTimeout = d }
}

func WithWebhookRetry(max int) WebhookOption {
	return func(w *Webhook) { w.retryMax = max }
}

func WithWebhookHeader(key, value string) WebhookOption {
	return func(w *Webhook) {
		if strings.TrimSpace(key) != "" && strings.TrimSpace(value) != "" {
			w.headers[key] = value
		}
	}
}

func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:            strings.TrimSpace(url),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		headers:        map[string]string{},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Save(ctx context.Context, g Game) error {
	payload, err := json.Marshal(g.DTO())
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	req.SetBody(payload)

	attempts := max(w.retryMax, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else if status := resp.StatusCode(); status < 200 || status >= 300 {
			lastErr = fmt.Errorf("webhook error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
			if !shouldRetryStatus(status) {
				return lastErr
			}
		} else {
			return nil
		}
		if attempt == attempts {
			break
		}
		if sleepWithContext(ctx, backoffDuration(attempt)) != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (w *Webhook) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(w.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
