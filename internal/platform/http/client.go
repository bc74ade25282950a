package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	// ErrTimeout is returned when an attempt ran out of connect or read time
	ErrTimeout = errors.New("request timed out")
	// ErrRateLimited is matched by HTTPStatusError values carrying 429
	ErrRateLimited = errors.New("rate limited by provider")
)

// Client is a wrapper for HTTP client with rate limiting
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	opts       ClientOptions
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	// ConnectTimeout bounds dialing, Timeout bounds a whole attempt
	ConnectTimeout time.Duration
	Timeout        time.Duration
	RequestsPerSec int
	// MaxRetries is the total number of attempts per request
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxRetryTimeout   time.Duration
}

// NewClient creates a new HTTP client with rate limiting
func NewClient(opts ClientOptions) *Client {
	// Set default values if not provided
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.BackoffMultiplier == 0 {
		opts.BackoffMultiplier = 2
	}
	if opts.MaxRetryTimeout == 0 {
		opts.MaxRetryTimeout = 2 * time.Minute
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext
	transport.TLSHandshakeTimeout = opts.ConnectTimeout

	return &Client{
		HTTPClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		Limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.RequestsPerSec),
		opts:    opts,
		logger:  log.With().Str("component", "http_client").Logger(),
	}
}

// DoRequest performs an HTTP request with rate limiting and retries.
// Timeouts, 429 and 5xx responses are retried; other statuses fail at once.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempt := 0
	operation := func() error {
		attempt++

		// Wait for rate limiter
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var err error
		resp, err = c.HTTPClient.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if isTimeout(err) {
				return &attemptError{cause: ErrTimeout, err: err}
			}
			return err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.InitialInterval = c.opts.RetryDelay
	backoffStrategy.Multiplier = c.opts.BackoffMultiplier
	backoffStrategy.RandomizationFactor = 0
	backoffStrategy.MaxElapsedTime = c.opts.MaxRetryTimeout

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(backoffStrategy, uint64(c.opts.MaxRetries-1)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", c.opts.MaxRetries).
			Dur("wait", wait).
			Str("url", req.URL.Path).
			Msg("Request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, strategy, notify); err != nil {
		return nil, err
	}

	return resp, nil
}

// HTTPStatusError represents an error due to a non-200 HTTP status code
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return "non-200 status code: " + http.StatusText(e.StatusCode)
}

// Is lets errors.Is(err, ErrRateLimited) match a 429 response
func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// attemptError keeps the underlying transport error while matching ErrTimeout
type attemptError struct {
	cause error
	err   error
}

func (e *attemptError) Error() string {
	return e.cause.Error() + ": " + e.err.Error()
}

func (e *attemptError) Unwrap() []error {
	return []error{e.cause, e.err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
