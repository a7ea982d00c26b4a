package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds one attempt. Text generation calls routinely take
// tens of seconds.
const DefaultTimeout = 60 * time.Second

// DefaultMaxRetries is the default number of attempts, not retries.
const DefaultMaxRetries = 3

// DefaultRetryWait is the first backoff; later waits double.
const DefaultRetryWait = 1 * time.Second

// maxRetryAfter caps a server-requested wait so a misbehaving endpoint
// cannot stall a run.
const maxRetryAfter = 2 * time.Minute

// ClientConfig configures a Client.
type ClientConfig struct {
	Client      *http.Client
	BaseURL     string
	ServiceName string
	Timeout     time.Duration
	MaxRetries  int
	RetryWait   time.Duration
	Logger      *slog.Logger

	// RequestsPerSecond throttles calls before they are sent. Zero is
	// unlimited; Burst defaults to 1.
	RequestsPerSecond float64
	Burst             int

	// BeforeRequest runs once per call, before the first attempt. Headers it
	// sets are kept on retries.
	BeforeRequest func(req *http.Request)
}

// Client sends JSON to the external services a run talks to: the
// text-generation API, issue trackers and webhooks. 408, 429 and 5xx
// answers and recoverable transport errors are retried with exponential
// backoff, honouring Retry-After.
type Client struct {
	retry         *retryablehttp.Client
	limiter       *rate.Limiter
	baseURL       string
	serviceName   string
	beforeRequest func(req *http.Request)
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	attempts := cfg.MaxRetries
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}
	wait := cfg.RetryWait
	if wait <= 0 {
		wait = DefaultRetryWait
	}
	name := cfg.ServiceName
	if name == "" {
		name = "http"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = hc
	rc.RetryMax = attempts - 1
	rc.RetryWaitMin = wait
	rc.RetryWaitMax = wait << attempts
	rc.CheckRetry = checkRetry
	rc.Backoff = backoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.Debug("retrying request", "service", name, "method", req.Method, "attempt", attempt)
		}
	}

	c := &Client{
		retry:         rc,
		baseURL:       cfg.BaseURL,
		serviceName:   name,
		beforeRequest: cfg.BeforeRequest,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// ServiceName returns the name used in errors and logs.
func (c *Client) ServiceName() string {
	return c.serviceName
}

// Request sends body as JSON. path is appended to the base URL; with an
// empty base URL it is used as is. The caller closes the response body,
// which may carry an error status once retries are exhausted.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	return c.RequestWithHeaders(ctx, method, path, body, nil)
}

// RequestWithHeaders is Request with extra headers, set after the JSON
// content headers so they can override them.
func (c *Client) RequestWithHeaders(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var payload any
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", c.serviceName, err)
		}
		payload = data
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", c.serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if c.beforeRequest != nil {
		c.beforeRequest(req.Request)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s rate limit: %w", c.serviceName, err)
		}
	}

	resp, err := c.retry.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s request failed: %w", c.serviceName, err)
	}
	return resp, nil
}

// Get decodes the JSON answer to a GET into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.roundTrip(ctx, http.MethodGet, path, nil, result)
}

// Post sends body and decodes the answer into result. A nil result
// discards the body.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	return c.roundTrip(ctx, http.MethodPost, path, body, result)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.Request(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return newAPIError(c.serviceName, path, resp)
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &DecodeError{Service: c.serviceName, Err: err}
	}
	return nil
}

// checkRetry retries the statuses retryableStatus names. Transport errors
// follow the library policy, which gives up on certificate and redirect
// failures.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	return retryableStatus(resp.StatusCode), nil
}

func backoff(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if d := retryAfter(resp.Header); d > 0 {
			return min(d, maxRetryAfter)
		}
	}
	return retryablehttp.DefaultBackoff(minWait, maxWait, attempt, nil)
}

func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func firstHeader(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
