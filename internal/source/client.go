package source

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client performs single GETs against the bulletin site with a fixed
// timeout, a bounded retry count and an aggregate pacing floor shared by
// every caller.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	referer    string
	maxRetries int
	retryWait  time.Duration
}

func NewClient(timeout time.Duration, maxRetries int, reqPerSec float64, userAgent, referer string) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if reqPerSec <= 0 {
		reqPerSec = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(reqPerSec), 1),
		userAgent:  userAgent,
		referer:    referer,
		maxRetries: maxRetries,
		retryWait:  3 * time.Second,
	}
}

// Get fetches url, retrying up to the configured bound with a pause between
// attempts. Once retries are exhausted the last error is returned; call
// sites treat that as "no data", never as a reason to abort their batch.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}

		lastErr = err
		log.Printf("[ERROR] request failed (%d/%d): %s: %v", attempt, c.maxRetries, url, err)

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryWait):
			}
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}
