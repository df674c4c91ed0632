package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/table_order/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	maxErrorBody = 4 << 10
	maxBody      = 4 << 20
)

var ErrInvalidBaseURL = errors.New("invalid backend base url")

// Request describes one call to the restaurant backend.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Body           any
	IdempotencyKey string
}

type response struct {
	status int
	body   []byte
}

// Client talks JSON to the restaurant backend through a circuit breaker.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[response]
	log     *zap.Logger

	breakerCfg circuitbreaker.Config
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(cl *Client) { cl.breakerCfg = cfg }
}

func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		log:        zap.NewNop(),
		breakerCfg: circuitbreaker.DefaultConfig("backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	// 4xx answers are the caller's fault and never trip the breaker.
	exclude := c.breakerCfg.Exclude
	c.breakerCfg.Exclude = func(err error) bool {
		return isClientError(err) || (exclude != nil && exclude(err))
	}
	c.breaker = circuitbreaker.New[response](c.breakerCfg, c.log)
	return c, nil
}

// Get decodes the JSON body of GET path into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
	return err
}

// Post sends body as JSON and decodes the response into out when out is not nil.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
	return err
}

// Do performs req and returns the response status code.
// Non-2xx responses are returned as *StatusError.
func (c *Client) Do(ctx context.Context, req Request, out any) (int, error) {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return 0, err
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		return c.send(httpReq)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			c.log.Warn("backend call rejected by breaker", zap.String("path", req.Path))
			return 0, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
		}
		return resp.status, err
	}

	if out != nil && len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			return resp.status, fmt.Errorf("decode %s response: %w", req.Path, err)
		}
	}
	return resp.status, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", req.Path, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return httpReq, nil
}

func (c *Client) send(req *http.Request) (response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return response{status: resp.StatusCode}, newStatusError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return response{status: resp.StatusCode}, fmt.Errorf("read %s response: %w", req.URL.Path, err)
	}
	return response{status: resp.StatusCode, body: data}, nil
}
