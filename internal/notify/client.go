// Package notify delivers completed payloads to the downstream receiver.
// Pipeline workers enqueue; a separate consumer owns delivery and retries.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	DefaultTimeout    = 45 * time.Second
	DefaultBaseDelay  = 10 * time.Minute
	DefaultMaxRetries = 5

	errorBodyLimit = 200
)

// StatusError is returned for a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("receiver returned %d: %s", e.Code, e.Body)
}

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Deliver makes a single POST of payload to url.
func (c *Client) Deliver(ctx context.Context, url string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Backoff is base * 1.5^retries.
func Backoff(base time.Duration, retries int) time.Duration {
	if retries < 0 {
		retries = 0
	}
	return time.Duration(float64(base) * math.Pow(1.5, float64(retries)))
}
