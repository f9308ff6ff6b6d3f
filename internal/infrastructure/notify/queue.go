package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pricelens/backend/internal/domain"
)

const userAgent = "PriceLens/1.0"

// NewQueue builds the notification enqueuer for the task-queue
// collaborator. When no queue URL is configured, a noop implementation is
// returned so the pipeline runs without a delivery backend.
func NewQueue(queueURL string, timeout time.Duration) domain.NotificationQueue {
	if queueURL == "" {
		return noopQueue{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		queueURL:   queueURL,
		// The queue endpoint is local infrastructure; 20 jobs/sec with a
		// burst absorbs one run's worth of alerts without hammering it.
		rateLimiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// Client enqueues notification jobs over HTTP. Enqueue-only: callers never
// await delivery, and a failed enqueue surfaces as an error the caller is
// expected to log and move past.
type Client struct {
	httpClient  *http.Client
	queueURL    string
	rateLimiter *rate.Limiter
	debug       bool
}

// SetDebug enables request logging
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

// EnqueuePriceAlert posts one job to the queue endpoint, retrying
// transient failures a few times before giving up.
func (c *Client) EnqueuePriceAlert(ctx context.Context, job domain.NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		if c.debug {
			log.Printf("[NOTIFY] enqueue subscription=%d type=%s price=%.2f (attempt %d)",
				job.SubscriptionID, job.ChangeType, job.CurrentPrice, attempt)
		}

		status, err := c.post(ctx, payload)
		if err == nil && status >= 200 && status < 300 {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%w: status %d", domain.ErrDispatchFailure, status)
		}
		time.Sleep(time.Duration(attempt*200) * time.Millisecond)
	}

	return fmt.Errorf("%w: %v", domain.ErrDispatchFailure, lastErr)
}

func (c *Client) post(ctx context.Context, payload []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queueURL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrDispatchFailure, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// noopQueue swallows jobs when no queue endpoint is configured
type noopQueue struct{}

func (noopQueue) EnqueuePriceAlert(ctx context.Context, job domain.NotificationJob) error {
	return nil
}
