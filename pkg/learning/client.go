package learning

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Humphrey-He/hquery/pkg/codec"
	"github.com/Humphrey-He/hquery/pkg/errors"
	"github.com/Humphrey-He/hquery/pkg/logger"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// BreakerConfig configures the circuit breaker guarding the API.
//
// BreakerConfig 配置保护API的熔断器。
type BreakerConfig struct {
	Enabled      bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	MaxRequests  uint32        `json:"max_requests" yaml:"max_requests" mapstructure:"max_requests"`
	Interval     time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MinRequests  uint32        `json:"min_requests" yaml:"min_requests" mapstructure:"min_requests"`
	FailureRatio float64       `json:"failure_ratio" yaml:"failure_ratio" mapstructure:"failure_ratio"`
}

// ClientConfig configures the API client.
//
// ClientConfig 配置API客户端。
type ClientConfig struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	// Timeout bounds every request; a timeout is a network-class failure.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	// UserAgent is sent with every request.
	UserAgent string        `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
	Breaker   BreakerConfig `json:"breaker" yaml:"breaker" mapstructure:"breaker"`
}

// DefaultClientConfig returns a local API with a 10s timeout and the
// breaker enabled.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   "http://localhost:8080/api",
		Timeout:   10 * time.Second,
		UserAgent: "hquery",
		Breaker: BreakerConfig{
			Enabled:      true,
			MaxRequests:  5,
			Interval:     30 * time.Second,
			Timeout:      60 * time.Second,
			MinRequests:  5,
			FailureRatio: 0.8,
		},
	}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets the credential supplier.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithCodec sets the body codec.
func WithCodec(cd codec.Codec) ClientOption {
	return func(c *Client) {
		c.codec = cd
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// Client talks to the learning platform API. Every failure it returns is
// an *errors.APIError classified for the cache's retry policy.
//
// Client 与学习平台API通信。返回的每个失败都是已分类的*errors.APIError。
type Client struct {
	cfg      ClientConfig
	base     *url.URL
	http     *http.Client
	tokens   TokenSource
	codec    codec.Codec
	validate *validator.Validate
	breaker  *gobreaker.CircuitBreaker
	log      logger.Logger
}

// NewClient creates an API client.
//
// NewClient 创建API客户端。
//
// Parameters:
//   - cfg: Client configuration
//   - opts: Client options
//
// Returns:
//   - *Client: The API client
//   - error: Error if the base URL is invalid
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("learning: invalid base url %q", cfg.BaseURL)
	}
	c := &Client{
		cfg:      cfg,
		base:     base,
		http:     &http.Client{},
		tokens:   StaticToken(""),
		codec:    codec.DefaultCodec(),
		validate: validator.New(),
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log)
	if cfg.Breaker.Enabled {
		c.breaker = newBreaker(cfg.Breaker, c.log)
	}
	return c, nil
}

func newBreaker(cfg BreakerConfig, log logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "learning-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// 只有服务端和网络故障计入熔断
		IsSuccessful: func(err error) bool {
			class := errors.ClassOf(err)
			return err == nil || (class != errors.ClassServer && class != errors.ClassNetwork)
		},
	})
}

// Tokens returns the credential supplier.
func (c *Client) Tokens() TokenSource {
	return c.tokens
}

// Refresh renews the credential when the token source supports it.
// The cache calls it after an auth failure.
//
// Refresh 在凭证源支持时刷新凭证。缓存在认证失败后调用它。
func (c *Client) Refresh(ctx context.Context) error {
	r, ok := c.tokens.(interface{ Refresh(context.Context) error })
	if !ok {
		return fmt.Errorf("learning: token source cannot refresh")
	}
	return r.Refresh(ctx)
}

// Get decodes the response of GET path into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Put sends body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete removes the resource at path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Do performs one request. A body is validated before anything is sent.
//
// Do 执行一次请求。请求体在发送前先进行校验。
//
// Parameters:
//   - ctx: Request context; the configured timeout is applied on top
//   - method: HTTP method
//   - path: Path relative to the base URL
//   - query: Optional query parameters
//   - body: Optional request body
//   - out: Optional destination of the decoded response
//
// Returns:
//   - error: A classified *errors.APIError
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var payload []byte
	if body != nil {
		if err := c.validateBody(ctx, body); err != nil {
			return errors.Validation(op, err)
		}
		data, err := c.codec.Marshal(body)
		if err != nil {
			return errors.Validation(op, err)
		}
		payload = data
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	req, err := c.newRequest(ctx, method, path, query, payload, requestID)
	if err != nil {
		return errors.Network(op, err)
	}

	start := time.Now()
	resp, err := c.send(req, op)
	if err != nil {
		c.log.Debug("api request failed",
			zap.String("op", op),
			zap.String("request_id", requestID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	c.log.Debug("api request",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := c.codec.Decode(resp.Body, out); err != nil {
		if ctx.Err() != nil {
			return errors.Network(op, ctx.Err())
		}
		return &errors.APIError{Class: errors.ClassServer, StatusCode: resp.StatusCode, Op: op, Message: "malformed response", Err: err}
	}
	return nil
}

func (c *Client) validateBody(ctx context.Context, body any) error {
	err := c.validate.StructCtx(ctx, body)
	var invalid *validator.InvalidValidationError
	if stderrors.As(err, &invalid) {
		// 非结构体请求体（如切片）不做校验
		return nil
	}
	return err
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, payload []byte, requestID string) (*http.Request, error) {
	u := *c.base
	u.Path = c.base.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", c.codec.ContentType())
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", c.codec.ContentType())
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send runs the round trip through the breaker and turns error statuses
// into APIErrors. On success the caller owns the response body.
func (c *Client) send(req *http.Request, op string) (*http.Response, error) {
	roundTrip := func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Network(op, err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			defer resp.Body.Close()
			return nil, c.statusError(op, resp)
		}
		return resp, nil
	}

	if c.breaker == nil {
		resp, err := roundTrip()
		if err != nil {
			return nil, err
		}
		return resp.(*http.Response), nil
	}

	resp, err := c.breaker.Execute(roundTrip)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Network(op, err)
	}
	if err != nil {
		return nil, err
	}
	return resp.(*http.Response), nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) statusError(op string, resp *http.Response) error {
	var msg string
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var eb errorBody
	if len(data) > 0 && c.codec.Unmarshal(data, &eb) == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error
		}
	}
	apiErr := errors.FromStatus(op, resp.StatusCode, msg)
	apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return apiErr
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
