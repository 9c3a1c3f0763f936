// Package client is the typed REST client for the task backend.
//
// Every protected call reads the bearer token from a TokenSource at call
// time. When no token is present the call fails with v1.ErrNotAuthenticated
// and nothing is sent. Calls are single attempts: no retries and, unless
// WithTimeout is given, no deadline beyond the caller's context.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/fyrsmithlabs/taskdeck/internal/logging"
	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/taskdeck/internal/client"

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 << 20
)

// TokenSource supplies the current bearer token. The session store
// implements it.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

func (f TokenFunc) Token() (string, bool) { return f() }

// Client talks to the task backend.
type Client struct {
	baseURL string
	tokens  TokenSource

	base    *http.Client
	authed  *http.Client
	timeout time.Duration

	logger  *logging.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	metrics *clientMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. Its Transport is wrapped
// to attach the bearer token.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMeter sets the meter for request metrics.
func WithMeter(m metric.Meter) Option {
	return func(c *Client) { c.meter = m }
}

// New creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		base:    &http.Client{},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	if c.meter == nil {
		c.meter = otel.Meter(instrumentationName)
	}
	c.metrics = newClientMetrics(c.meter, c.logger)

	authed := *c.base
	authed.Transport = &oauth2.Transport{
		Source: sessionTokenSource{tokens},
		Base:   c.base.Transport,
	}
	c.authed = &authed

	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// sessionTokenSource adapts TokenSource to oauth2.TokenSource. The token is
// read for every request so a logout takes effect immediately.
type sessionTokenSource struct {
	tokens TokenSource
}

func (s sessionTokenSource) Token() (*oauth2.Token, error) {
	tok, ok := s.tokens.Token()
	if !ok || tok == "" {
		return nil, v1.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// request describes one API call.
type request struct {
	op       string
	method   string
	path     string
	body     any
	fallback string
	public   bool
}

// response carries what the caller needs after a 2xx.
type response struct {
	status int
	body   []byte
}

// errStatus is returned by send for non-2xx responses before they are
// mapped to the caller's error type.
type errStatus struct {
	status  int
	message string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.message)
}

// send performs the request. The error is a *v1.TransportError, an
// *errStatus or v1.ErrNotAuthenticated.
func (c *Client) send(ctx context.Context, r request) (*response, error) {
	hc := c.authed
	if r.public {
		hc = c.base
	} else if tok, ok := c.tokens.Token(); !ok || tok == "" {
		return nil, v1.ErrNotAuthenticated
	}

	reqID := uuid.NewString()
	ctx = logging.WithOperation(ctx, r.op)
	ctx = logging.WithRequestID(ctx, reqID)

	ctx, span := c.tracer.Start(ctx, "taskdeck.client."+r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.method),
			attribute.String("url.path", r.path),
		),
	)
	defer span.End()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.logger.Trace(ctx, "sending request", zap.String("method", r.method), zap.String("path", r.path))

	start := time.Now()
	done := c.metrics.start(ctx, r.op)
	resp, err := hc.Do(req)
	if err != nil {
		done("transport", 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		if errors.Is(err, v1.ErrNotAuthenticated) {
			return nil, v1.ErrNotAuthenticated
		}
		c.logger.Warn(ctx, "request failed before response", zap.Error(err))
		return nil, &v1.TransportError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if err != nil {
		done("transport", resp.StatusCode, time.Since(start))
		span.SetStatus(codes.Error, "read body")
		return nil, &v1.TransportError{Op: r.op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		done("error", resp.StatusCode, time.Since(start))
		msg := serverMessage(data)
		if msg == "" {
			msg = r.fallback
		}
		span.SetStatus(codes.Error, msg)
		c.logger.Info(ctx, "request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
		)
		return nil, &errStatus{status: resp.StatusCode, message: msg}
	}

	done("ok", resp.StatusCode, time.Since(start))
	c.logger.Debug(ctx, "request completed",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return &response{status: resp.StatusCode, body: data}, nil
}

// serverMessage extracts the "error" field of an error body.
func serverMessage(data []byte) string {
	var body v1.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.Error)
}

// call runs a protected request and decodes a 2xx body into out.
func (c *Client) call(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		var st *errStatus
		if errors.As(err, &st) {
			return v1.NewRequestFailedError(r.op, st.message)
		}
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		c.logger.Warn(logging.WithOperation(ctx, r.op), "undecodable response body",
			zap.Int("status", resp.status), zap.Error(err))
		return v1.NewRequestFailedError(r.op, r.fallback)
	}
	return nil
}
