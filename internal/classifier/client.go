package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 15 * time.Second
	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings required to talk to a scoring tier.
type Config struct {
	Endpoint       string
	APIKey         string
	Model          string
	TimeoutSeconds int
	RetryAttempts  int
}

// Client talks to one remote scoring endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a scorer client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	attempts := defaultRetryAttempts
	if cfg.RetryAttempts > 0 {
		attempts = cfg.RetryAttempts
	}
	client := &Client{
		cfg: Config{
			Endpoint:       strings.TrimSpace(cfg.Endpoint),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			TimeoutSeconds: cfg.TimeoutSeconds,
			RetryAttempts:  cfg.RetryAttempts,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: attempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type scoreRequest struct {
	Model string `json:"model,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Group string `json:"group"`
}

type scoreResponse struct {
	Tags       []string `json:"tags"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("scorer request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Score sends the item to the scoring endpoint and returns its annotation
// proposal. Transient failures are retried with capped exponential backoff;
// client errors are returned immediately.
func (c *Client) Score(ctx context.Context, input Input) (Result, error) {
	var empty Result
	if strings.TrimSpace(input.Title) == "" {
		return empty, errors.New("scorer: title required")
	}
	if strings.TrimSpace(c.cfg.Endpoint) == "" {
		return empty, errors.New("scorer: endpoint required")
	}

	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = c.cfg.Model
	}
	payload := scoreRequest{
		Model: model,
		Title: input.Title,
		Body:  input.Body,
		Group: input.Group,
	}

	attempts := c.retryAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.sendOnce(ctx, payload)
		if err == nil {
			return normalize(result), nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return empty, err
		}
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return empty, sleepErr
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("unknown retry failure")
	}
	return empty, fmt.Errorf("scorer: failed after %d attempts: %w", attempts, lastErr)
}

// HealthCheck issues an empty-body scoring probe to verify the endpoint is
// reachable and authenticated.
func (c *Client) HealthCheck(ctx context.Context) error {
	if strings.TrimSpace(c.cfg.Endpoint) == "" {
		return errors.New("scorer health: endpoint required")
	}
	if _, err := c.sendOnce(ctx, scoreRequest{Model: c.cfg.Model, Title: "health", Body: "", Group: "health"}); err != nil {
		return fmt.Errorf("scorer health: %w", err)
	}
	return nil
}

func (c *Client) sendOnce(ctx context.Context, payload scoreRequest) (scoreResponse, error) {
	var parsed scoreResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return parsed, fmt.Errorf("scorer request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return parsed, fmt.Errorf("scorer request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return parsed, fmt.Errorf("scorer request: http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return parsed, fmt.Errorf("scorer request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return parsed, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return parsed, fmt.Errorf("scorer request: decode response: %w", err)
	}
	if parsed.Error != nil {
		return parsed, fmt.Errorf("scorer request: api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	return parsed, nil
}

func normalize(resp scoreResponse) Result {
	result := Result{
		Summary:    strings.TrimSpace(resp.Summary),
		Confidence: resp.Confidence,
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	for _, tag := range resp.Tags {
		if trimmed := strings.ToLower(strings.TrimSpace(tag)); trimmed != "" {
			result.Tags = append(result.Tags, trimmed)
		}
	}
	return result
}

func (c *Client) timeoutDuration() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) retryAttempts() int {
	if c.retryMaxAttempts <= 0 {
		return 1
	}
	return c.retryMaxAttempts
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil {
		return 0, false
	}
	if ctx != nil && ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if !isTransient(err) {
		return 0, false
	}

	delay := c.retryBaseDelay << (attempt - 1)
	if delay > c.retryMaxDelay {
		delay = c.retryMaxDelay
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		delay = statusErr.RetryAfter
		if delay > c.retryMaxDelay {
			delay = c.retryMaxDelay
		}
	}
	return delay, true
}

func isTransient(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= http.StatusInternalServerError
	}
	// Network-level failures (refused, reset, timeout) arrive as transport
	// errors and are worth retrying.
	var netErr interface{ Temporary() bool }
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "http error")
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func parseRetryAfter(header string) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(header); err == nil {
		if delta := time.Until(when); delta > 0 {
			return delta, true
		}
	}
	return 0, false
}
