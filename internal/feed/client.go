package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/observability"
)

// Client defaults.
const (
	DefaultHTTPTimeout = 30 * time.Second
	DefaultRateLimit   = rate.Limit(5) // requests per second
	DefaultRateBurst   = 5
)

// Client is the REST poller for the token gateway.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *log.Logger
	metrics *observability.Metrics

	// onParseError is invoked for every record skipped as malformed.
	onParseError func(error)
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithAPIKey sets the gateway API key header.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		if key != "" {
			c.http.SetHeader("X-API-Key", key)
		}
	}
}

// WithHTTPTimeout sets the request timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// WithRateLimit bounds outbound request rate.
func WithRateLimit(rps rate.Limit, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rps, burst)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithParseErrorHook registers a callback for skipped malformed records.
// When set, the hook owns reporting and the client does not log the
// record itself.
func WithParseErrorHook(fn func(error)) ClientOption {
	return func(c *Client) {
		c.onParseError = fn
	}
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	h := resty.New()
	h.SetBaseURL(baseURL)
	h.SetTimeout(DefaultHTTPTimeout)
	h.SetHeader("Accept", "application/json")

	c := &Client{
		http:    h,
		limiter: rate.NewLimiter(DefaultRateLimit, DefaultRateBurst),
		logger:  log.New(log.Writer(), "[feed] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListNew returns the most recently created tokens.
func (c *Client) ListNew(ctx context.Context, limit int) ([]domain.TokenRecord, error) {
	return c.listTokens(ctx, "new", "/token/new", limit)
}

// ListBonding returns tokens still on the bonding curve.
func (c *Client) ListBonding(ctx context.Context, limit int) ([]domain.TokenRecord, error) {
	return c.listTokens(ctx, "bonding", "/token/bonding", limit)
}

// ListGraduated returns tokens that completed their bonding curve.
func (c *Client) ListGraduated(ctx context.Context, limit int) ([]domain.TokenRecord, error) {
	return c.listTokens(ctx, "graduated", "/token/graduated", limit)
}

// TokenTrades returns recent swaps for one token.
func (c *Client) TokenTrades(ctx context.Context, mint string, limit int) ([]domain.TradeRecord, error) {
	raws, err := c.fetchList(ctx, "swaps", fmt.Sprintf("/token/%s/swaps", mint), limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TradeRecord, 0, len(raws))
	for _, raw := range raws {
		tr, err := ParseTrade(raw)
		if err != nil {
			c.skipRecord(err)
			continue
		}
		out = append(out, *tr)
	}
	return out, nil
}

func (c *Client) listTokens(ctx context.Context, endpoint, path string, limit int) ([]domain.TokenRecord, error) {
	raws, err := c.fetchList(ctx, endpoint, path, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.TokenRecord, 0, len(raws))
	for _, raw := range raws {
		tok, err := ParseToken(raw)
		if err != nil {
			c.skipRecord(err)
			continue
		}
		out = append(out, *tok)
	}
	return out, nil
}

// listEnvelope is the wrapped response shape some endpoints use.
type listEnvelope struct {
	Result []json.RawMessage `json:"result"`
}

// fetchList GETs a path and returns the raw records, accepting both a
// bare JSON array and a {"result": [...]} envelope.
func (c *Client) fetchList(ctx context.Context, endpoint, path string, limit int) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		Get(path)
	c.observe(endpoint, time.Since(start), err == nil && !resp.IsError())
	if err != nil {
		return nil, fmt.Errorf("gateway GET %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("gateway GET %s: status %d", path, resp.StatusCode())
	}

	body := resp.Body()
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err == nil {
		return raws, nil
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("gateway GET %s: unexpected response shape: %w", path, err)
	}
	return env.Result, nil
}

func (c *Client) observe(endpoint string, d time.Duration, ok bool) {
	if c.metrics == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	c.metrics.GatewayRequests.WithLabelValues(outcome).Inc()
	c.metrics.GatewayRequestTime.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (c *Client) skipRecord(err error) {
	if c.onParseError != nil {
		c.onParseError(err)
		return
	}
	c.logger.Printf("skipping malformed record: %v", err)
}

var _ Poller = (*Client)(nil)
