package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries.
	RetryDelay = time.Second
)

// Client wraps the go-github client with rate limiting and retries.
type Client struct {
	gh          *gh.Client
	rateLimiter *RateLimiter
	maxRetries  uint64
	retryDelay  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
	maxRetries  uint64
	retryDelay  time.Duration
}

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(u string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = u
	}
}

// WithHTTPClient sets the transport. The token is ignored when set.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRateLimiter replaces the default proactive limiter.
func WithRateLimiter(r *RateLimiter) ClientOption {
	return func(o *clientOptions) {
		if r != nil {
			o.rateLimiter = r
		}
	}
}

// WithRetry sets how often and how quickly transient failures are retried.
func WithRetry(maxRetries uint64, delay time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.maxRetries = maxRetries
		if delay > 0 {
			o.retryDelay = delay
		}
	}
}

// NewClient creates a GitHub API client. An empty token uses anonymous
// access, which GitHub limits to 60 requests per hour.
func NewClient(ctx context.Context, token string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		maxRetries: MaxRetries,
		retryDelay: RetryDelay,
	}
	for _, opt := range opts {
		opt(&o)
	}

	hc := o.httpClient
	if hc == nil {
		if token != "" {
			ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
			hc = oauth2.NewClient(ctx, ts)
		} else {
			hc = &http.Client{}
		}
		hc.Timeout = DefaultTimeout
	}

	client := gh.NewClient(hc)
	if o.baseURL != "" {
		base := o.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, &domain.ConfigurationError{Op: "github base url", Err: err}
		}
		client.BaseURL = u
	}

	if o.rateLimiter == nil {
		o.rateLimiter = NewRateLimiter(ProactiveRate)
	}

	return &Client{
		gh:          client,
		rateLimiter: o.rateLimiter,
		maxRetries:  o.maxRetries,
		retryDelay:  o.retryDelay,
	}, nil
}

// GitHub returns the underlying go-github client.
func (c *Client) GitHub() *gh.Client {
	return c.gh
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// GetRepository fetches a single repository.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*gh.Repository, error) {
	return call(ctx, c, "get repo", func() (*gh.Repository, *gh.Response, error) {
		return c.gh.Repositories.Get(ctx, owner, repo)
	})
}

// GetTree fetches the entire tree at ref recursively.
// This is efficient for getting all file paths in one API call.
func (c *Client) GetTree(ctx context.Context, owner, repo, ref string) (*gh.Tree, error) {
	return call(ctx, c, "get tree", func() (*gh.Tree, *gh.Response, error) {
		return c.gh.Git.GetTree(ctx, owner, repo, ref, true)
	})
}

// GetBlob fetches a blob (file content) by its SHA.
func (c *Client) GetBlob(ctx context.Context, owner, repo, sha string) (*gh.Blob, error) {
	return call(ctx, c, "get blob", func() (*gh.Blob, *gh.Response, error) {
		return c.gh.Git.GetBlob(ctx, owner, repo, sha)
	})
}

// call runs one API request behind the rate limiter, retrying temporary
// failures with exponential backoff.
func call[T any](ctx context.Context, c *Client, op string, fn func() (T, *gh.Response, error)) (T, error) {
	var out T

	attempt := func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("rate limit wait: %w", err))
		}

		v, resp, err := fn()
		c.updateRateLimitFromResponse(resp)
		if err != nil {
			wrapped := c.wrapError(err, op)
			if ctx.Err() != nil || !errors.Is(wrapped, domain.ErrTemporary) {
				return backoff.Permanent(wrapped)
			}
			return wrapped
		}

		out = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0

	if err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// updateRateLimitFromResponse updates the rate limiter from GitHub response headers.
func (c *Client) updateRateLimitFromResponse(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to domain errors.
func (c *Client) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &domain.RateLimitError{
			Service:    serviceName,
			RetryAfter: max(time.Until(rateLimitErr.Rate.Reset.Time), 0),
		}
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &domain.RateLimitError{Service: serviceName, RetryAfter: abuseErr.GetRetryAfter()}
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		apiErr := &APIError{Message: ghErr.Message}
		if ghErr.Response != nil {
			apiErr.StatusCode = ghErr.Response.StatusCode
			if ghErr.Response.Request != nil && ghErr.Response.Request.URL != nil {
				apiErr.URL = ghErr.Response.Request.URL.String()
			}
		}
		apiErr.Err = statusError(apiErr.StatusCode)
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", operation, domain.ErrTemporary, err)
	}

	return fmt.Errorf("%s: %w", operation, err)
}

// statusError maps an HTTP status to the domain sentinel it represents.
func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrUnauthorized
	case code == http.StatusNotFound || code == http.StatusConflict:
		// GitHub answers 409 for trees of an empty repository.
		return domain.ErrNotFound
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code == http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	case code >= 500:
		return domain.ErrTemporary
	default:
		return nil
	}
}
