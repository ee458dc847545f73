// Package transport delivers StUF messages to CityControl over HTTPS and
// validates the synchronous acknowledgement.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signals/internal/sigmax/stuf"
	"signals/pkg/platform/circuit"
)

const (
	defaultTimeout       = 10 * time.Second
	maxResponseBodyBytes = 1 << 20
)

// Config is everything the client needs to reach CityControl.
type Config struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
	// InsecureSkipVerify disables TLS verification. Acceptance environments only.
	InsecureSkipVerify bool
}

// Configured reports whether both endpoint and credential are set.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.AuthToken) != ""
}

// HTTPDoer is the subset of *http.Client the transport needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives one call per completed send.
type Observer interface {
	ObserveSend(action string, outcome string, duration time.Duration)
}

// Client sends StUF messages. It is safe for concurrent use.
type Client struct {
	cfg      Config
	http     HTTPDoer
	breaker  *circuit.Breaker
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithBreaker guards sends with a circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("signals/sigmax/transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = newHTTPClient(cfg)
	}
	return c
}

func newHTTPClient(cfg Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // acceptance only
	}
	return &http.Client{Timeout: cfg.Timeout, Transport: transport}
}

// Send posts msg with the given SOAPAction and returns the parsed Bv03. Any
// network failure, non-2xx status, or non-Bv03 payload is a *SigmaxError.
func (c *Client) Send(ctx context.Context, msg []byte, soapAction string) (*stuf.Acknowledgement, error) {
	if !c.cfg.Configured() {
		return nil, newError(CategoryNotConfigured, soapAction, "endpoint URL and auth token are required", ErrServiceNotConfigured)
	}

	ctx, span := c.tracer.Start(ctx, "sigmax.transport.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sigmax.soap_action", soapAction)),
	)
	defer span.End()

	if c.breaker != nil && !c.breaker.Allow() {
		err := newError(CategoryCircuitOpen, soapAction, "circuit "+c.breaker.Name()+" is open", nil)
		c.finish(ctx, span, soapAction, time.Now(), err)
		return nil, err
	}

	start := time.Now()
	ack, err := c.send(ctx, msg, soapAction)
	c.record(ctx, err)
	c.finish(ctx, span, soapAction, start, err)
	return ack, err
}

func (c *Client) send(ctx context.Context, msg []byte, soapAction string) (*stuf.Acknowledgement, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(msg))
	if err != nil {
		return nil, newError(CategoryNotConfigured, soapAction, "invalid endpoint URL", err)
	}
	req.Header.Set("SOAPAction", soapAction)
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("Authorization", "Basic "+c.cfg.AuthToken)
	// net/http writes Content-Length from this field, not from the header map.
	req.ContentLength = int64(len(msg))

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, newError(CategoryTimeout, soapAction, "request timed out", err)
		}
		return nil, newError(CategoryTransport, soapAction, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, newError(CategoryTransport, soapAction, "read response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := newError(CategoryHTTPStatus, soapAction, "unexpected response status", nil)
		se.StatusCode = resp.StatusCode
		se.Retryable = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		if ack, _ := stuf.ParseAcknowledgement(body); ack != nil && ack.Fault != "" {
			se.Message += ": " + ack.Fault
		}
		return nil, se
	}

	ack, err := stuf.ParseAcknowledgement(body)
	if err != nil {
		se := newError(CategoryProtocol, soapAction, "acknowledgement is not Bv03", err)
		se.StatusCode = resp.StatusCode
		return ack, se
	}
	return ack, nil
}

func (c *Client) record(ctx context.Context, err error) {
	if c.breaker == nil {
		return
	}
	var change circuit.StateChange
	if err == nil {
		_, change = c.breaker.RecordSuccess()
	} else {
		_, change = c.breaker.RecordFailure()
	}
	switch {
	case change.Opened:
		c.logger.WarnContext(ctx, "sigmax circuit opened", "circuit", c.breaker.Name(), "error", err)
	case change.Closed:
		c.logger.InfoContext(ctx, "sigmax circuit closed", "circuit", c.breaker.Name())
	}
}

func (c *Client) finish(ctx context.Context, span trace.Span, action string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(CategoryOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.ErrorContext(ctx, "sigmax send failed",
			"soap_action", action,
			"category", outcome,
			"error", err,
		)
	}
	span.SetAttributes(attribute.String("sigmax.outcome", outcome))
	if c.observer != nil {
		c.observer.ObserveSend(action, outcome, time.Since(start))
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// String is used in logs; the credential is never printed.
func (c Config) String() string {
	return fmt.Sprintf("sigmax{url=%s timeout=%s configured=%t}", c.URL, c.Timeout, c.Configured())
}
