package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrMissingAPIKey is returned when a provider that needs credentials has none
	ErrMissingAPIKey = errors.New("missing provider API key")
	// ErrUnexpectedStatus wraps non-200 upstream responses
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// ClientOptions tunes the shared HTTP transport of a provider client
type ClientOptions struct {
	Timeout        time.Duration
	RatePerSecond  float64
	MaxAttempts    int
	InitialBackoff time.Duration
	UserAgent      string
}

// DefaultClientOptions returns the production transport settings
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:        10 * time.Second,
		RatePerSecond:  5,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		UserAgent:      "player-enrichment/1.0",
	}
}

// httpClient is the transport shared by the provider clients: rate limited,
// retried with exponential backoff, behind a circuit breaker.
type httpClient struct {
	name     string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	breakers *CircuitBreakerService
	opts     ClientOptions
	logger   *logrus.Logger
}

func newHTTPClient(name, baseURL string, breakers *CircuitBreakerService, opts ClientOptions, logger *logrus.Logger) *httpClient {
	defaults := DefaultClientOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaults.RatePerSecond
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = defaults.InitialBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &httpClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		breakers: breakers,
		opts:     opts,
		logger:   logger,
	}
}

// getJSON performs a GET request and decodes the JSON body into target.
// Network errors, 429 and 5xx responses are retried; anything else is final.
func (c *httpClient) getJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	call := func() (interface{}, error) {
		return nil, c.retry(ctx, endpoint, target)
	}

	var err error
	if c.breakers != nil {
		_, err = c.breakers.Execute(c.name, call)
	} else {
		_, err = call()
	}
	return err
}

func (c *httpClient) retry(ctx context.Context, endpoint string, target interface{}) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.InitialBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := c.do(ctx, endpoint, target)
		if err != nil && attempt < c.opts.MaxAttempts {
			var permanent *backoff.PermanentError
			if !errors.As(err, &permanent) {
				c.logger.WithFields(logrus.Fields{
					"component": "provider_client",
					"provider":  c.name,
					"attempt":   attempt,
					"url":       redact(endpoint),
				}).WithError(err).Warn("Request failed, retrying")
			}
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.opts.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	return nil
}

func (c *httpClient) do(ctx context.Context, endpoint string, target interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.UserAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"component": "provider_client",
		"provider":  c.name,
		"status":    resp.StatusCode,
		"duration":  time.Since(start).String(),
	}).Debug("Provider request completed")

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode %s response: %w", c.name, err))
	}
	return nil
}

// redact hides credentials carried in the query string
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
