// Package youtube adapts the YouTube Data API v3 channels.list endpoint to the
// crawler's Fetcher contract.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/JakeFAU/youtube-graph-crawler/internal/metrics"
)

// Parts requested for expansions. Leaf fetches drop brandingSettings.
var (
	ExpandParts = []string{"snippet", "statistics", "topicDetails", "brandingSettings"}
	LeafParts   = []string{"snippet", "statistics", "topicDetails"}
)

// Waiter paces outgoing requests.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Lookup describes one channels.list call.
type Lookup struct {
	Identifier string
	ByUsername bool
	Parts      []string
}

// Mode labels the lookup for logs and metrics.
func (l Lookup) Mode() string {
	if l.ByUsername {
		return "username"
	}
	return "id"
}

// ClientConfig configures the API client.
type ClientConfig struct {
	APIKey string
	// Endpoint overrides the API base URL; tests point it at httptest.
	Endpoint string
	Timeout  time.Duration
	Retry    RetryConfig
}

// Client issues paced, retried channels.list calls.
type Client struct {
	svc     *yt.Service
	limiter Waiter
	retry   *RetryPolicy
	timeout time.Duration
	logger  *zap.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewClient dials the YouTube Data API. limiter may be nil.
func NewClient(ctx context.Context, cfg ClientConfig, limiter Waiter, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube api key is required")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		svc:     svc,
		limiter: limiter,
		retry:   NewRetryPolicy(cfg.Retry),
		timeout: timeout,
		logger:  logger.Named("youtube_client"),
		sleep:   sleepCtx,
	}, nil
}

// ListChannels performs the lookup, retrying transient failures. The
// returned error is the last attempt's error.
func (c *Client) ListChannels(ctx context.Context, lookup Lookup) (*yt.ChannelListResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts(); attempt++ {
		resp, err := c.listOnce(ctx, lookup)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !c.retry.ShouldRetry(err, attempt) {
			break
		}
		backoff := c.retry.Backoff(attempt)
		c.logger.Debug("retrying channels.list",
			zap.String("identifier", lookup.Identifier),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := c.sleep(ctx, backoff); err != nil {
			break
		}
		metrics.ObserveAPIRetry()
	}
	return nil, lastErr
}

func (c *Client) listOnce(ctx context.Context, lookup Lookup) (*yt.ChannelListResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := c.svc.Channels.List(lookup.Parts)
	if lookup.ByUsername {
		call = call.ForUsername(lookup.Identifier)
	} else {
		call = call.Id(lookup.Identifier)
	}
	resp, err := call.Context(callCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("channels.list %s=%q: %w", lookup.Mode(), lookup.Identifier, err)
	}
	return resp, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
