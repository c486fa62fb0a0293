package ouraapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	requestTimeout    = 30 * time.Second
	maxRetries        = 3
	retryDelay        = 2 * time.Second
	defaultRetryAfter = 60 * time.Second
	cacheTTL          = 5 * time.Minute
	rateLimitFloor    = 5
)

// Config carries the client's collaborators; zero values get sensible
// defaults in NewClient.
type Config struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
}

// Client wraps the Oura v2 REST API with bearer auth, a short-lived response
// cache, header-driven rate-limit tracking and bounded retries.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *zap.SugaredLogger
	cache      *responseCache
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error

	mu            sync.Mutex
	rateRemaining int
	rateReset     time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: requestTimeout}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.ouraring.com"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	return &Client{
		httpClient:    cfg.HTTPClient,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		token:         cfg.Token,
		log:           cfg.Logger,
		cache:         newResponseCache(cacheTTL, cfg.Now),
		now:           cfg.Now,
		sleep:         cfg.Sleep,
		rateRemaining: 100,
	}
}

// ClearCache drops every cached response; operator escape hatch.
func (c *Client) ClearCache() {
	c.cache.Clear()
	c.log.Debug("api response cache cleared")
}

func (c *Client) DailySleep(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/daily_sleep", dateParams(startDate, endDate))
}

func (c *Client) SleepPeriods(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/sleep", dateParams(startDate, endDate))
}

func (c *Client) DailyReadiness(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/daily_readiness", dateParams(startDate, endDate))
}

func (c *Client) DailyActivity(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/daily_activity", dateParams(startDate, endDate))
}

func (c *Client) HeartRate(ctx context.Context, startDatetime, endDatetime string) ([]json.RawMessage, error) {
	params := url.Values{}
	if startDatetime != "" {
		params.Set("start_datetime", startDatetime)
	}
	if endDatetime != "" {
		params.Set("end_datetime", endDatetime)
	}
	return c.paginated(ctx, "v2/usercollection/heartrate", params)
}

func (c *Client) DailyStress(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/daily_stress", dateParams(startDate, endDate))
}

func (c *Client) Workouts(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/workout", dateParams(startDate, endDate))
}

func (c *Client) DailySpO2(ctx context.Context, startDate, endDate string) ([]json.RawMessage, error) {
	return c.paginated(ctx, "v2/usercollection/daily_spo2", dateParams(startDate, endDate))
}

// PersonalInfo fetches the account profile; used for the startup connection
// check and to match webhook deliveries to the configured account.
func (c *Client) PersonalInfo(ctx context.Context) (json.RawMessage, error) {
	return c.request(ctx, http.MethodGet, "v2/usercollection/personal_info", nil)
}

type pageEnvelope struct {
	Data      []json.RawMessage `json:"data"`
	NextToken *string           `json:"next_token"`
}

// paginated follows the next_token cursor sequentially and concatenates all
// pages in server order.
func (c *Client) paginated(ctx context.Context, endpoint string, params url.Values) ([]json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}

	var items []json.RawMessage
	for {
		payload, err := c.request(ctx, http.MethodGet, endpoint, params)
		if err != nil {
			return nil, err
		}
		if payload == nil {
			break
		}

		var page pageEnvelope
		if err := json.Unmarshal(payload, &page); err != nil {
			return nil, &MalformedError{Endpoint: endpoint, Err: err}
		}
		items = append(items, page.Data...)

		if page.NextToken == nil || *page.NextToken == "" {
			break
		}
		params.Set("next_token", *page.NextToken)
	}
	return items, nil
}

// request performs one cached, rate-limited, retried GET/POST. A nil payload
// with nil error means the endpoint had no data (HTTP 404).
func (c *Client) request(ctx context.Context, method, endpoint string, params url.Values) (json.RawMessage, error) {
	key := cacheKey(method, endpoint, params)
	if payload, ok := c.cache.Get(key); ok {
		c.log.Debugw("using cached response", "endpoint", endpoint)
		return payload, nil
	}

	requestURL := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	for attempt := 0; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return nil, err
		}

		payload, retryIn, err := c.do(ctx, method, requestURL, endpoint)
		if err == nil {
			if payload != nil {
				c.cache.Set(key, payload)
			}
			return payload, nil
		}
		if retryIn < 0 || attempt >= maxRetries {
			return nil, err
		}

		c.log.Debugw("retrying request", "endpoint", endpoint, "attempt", attempt+1, "delay", retryIn)
		if sleepErr := c.sleep(ctx, retryIn); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// do executes a single attempt. A non-negative retryIn alongside an error
// marks it retryable after that delay.
func (c *Client) do(ctx context.Context, method, requestURL, endpoint string) (payload json.RawMessage, retryIn time.Duration, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, requestURL, nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ouralink/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) && ctx.Err() == nil {
			return nil, retryDelay, &TimeoutError{Attempts: maxRetries + 1}
		}
		return nil, -1, err
	}
	defer resp.Body.Close()

	c.updateRateLimits(resp.Header)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryAfter(resp.Header), &RateLimitError{Attempts: maxRetries + 1}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, -1, &AuthError{Message: "authentication failed - token may be expired"}
	case resp.StatusCode == http.StatusNotFound:
		c.log.Debugw("endpoint has no data", "endpoint", endpoint)
		return nil, -1, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, -1, &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, -1, fmt.Errorf("read response body: %w", err)
	}
	return body, -1, nil
}

// waitForRateLimit sleeps until the advertised reset when the remaining-call
// budget is nearly exhausted.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	c.mu.Lock()
	remaining, reset := c.rateRemaining, c.rateReset
	c.mu.Unlock()

	if remaining > rateLimitFloor {
		return nil
	}
	wait := reset.Sub(c.now())
	if wait <= 0 {
		return nil
	}
	c.log.Infow("rate limit approaching, waiting for reset", "wait", wait)
	return c.sleep(ctx, wait)
}

// Counters are refreshed hints; last writer wins across concurrent fetches.
func (c *Client) updateRateLimits(header http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if raw := header.Get("X-RateLimit-Remaining"); raw != "" {
		if remaining, err := strconv.Atoi(raw); err == nil {
			c.rateRemaining = remaining
		}
	}
	if raw := header.Get("X-RateLimit-Reset"); raw != "" {
		if reset, err := strconv.ParseInt(raw, 10, 64); err == nil {
			c.rateReset = time.Unix(reset, 0)
		}
	}
}

// RateLimitRemaining reports the most recent remaining-call hint.
func (c *Client) RateLimitRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateRemaining
}

func retryAfter(header http.Header) time.Duration {
	if raw := strings.TrimSpace(header.Get("Retry-After")); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func cacheKey(method, endpoint string, params url.Values) string {
	// url.Values.Encode sorts keys, which canonicalizes the query string.
	return method + ":" + endpoint + ":" + params.Encode()
}

func dateParams(startDate, endDate string) url.Values {
	params := url.Values{}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}
	return params
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
