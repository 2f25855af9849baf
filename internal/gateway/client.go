package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gmx-sms-connector.internal.gateway")

const (
	defaultConnectTimeout = 5 * time.Second
	defaultReadTimeout    = 15 * time.Second
)

// Observer receives one call per HTTP attempt.
type Observer interface {
	ObserveAttempt(protocol string, op Operation, host, outcome string, seconds float64)
}

// ClientConfig controls how the gateway client behaves.
type ClientConfig struct {
	Protocol       Protocol
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	HTTPClient     *http.Client
	Logger         *logging.Logger
	Observer       Observer
}

// Client performs single gateway calls against a given host.
type Client struct {
	protocol   Protocol
	httpClient *http.Client
	logger     *logging.Logger
	observer   Observer
}

// NewClient creates a Client with the gateway's connect and read timeouts.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Protocol == nil {
		return nil, errors.New("gateway: protocol is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(cfg.ConnectTimeout, cfg.ReadTimeout)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		protocol:   cfg.Protocol,
		httpClient: httpClient,
		logger:     logger,
		observer:   cfg.Observer,
	}, nil
}

// NewHTTPClient builds an http.Client whose dial is bounded by connect and
// whose wait for response headers is bounded by read.
func NewHTTPClient(connect, read time.Duration) *http.Client {
	if connect <= 0 {
		connect = defaultConnectTimeout
	}
	if read <= 0 {
		read = defaultReadTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connect}).DialContext
	transport.TLSHandshakeTimeout = connect
	transport.ResponseHeaderTimeout = read
	return &http.Client{
		Transport: transport,
		Timeout:   connect + read,
	}
}

// Protocol returns the wire protocol of the client.
func (c *Client) Protocol() Protocol {
	return c.protocol
}

// Do issues op against host and classifies the answer.
func (c *Client) Do(ctx context.Context, host string, op Operation, acct Account, msg *OutgoingMessage) (*Result, error) {
	ctx, span := tracer.Start(ctx, "gateway.call")
	defer span.End()
	span.SetAttributes(
		attribute.String("gateway.protocol", c.protocol.Name()),
		attribute.String("gateway.operation", string(op)),
		attribute.String("gateway.host", host),
	)

	started := time.Now()
	result, err := c.do(ctx, host, op, acct, msg)
	c.observe(op, host, err, time.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Reason(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("gateway.result_code", result.Code))
	return result, nil
}

func (c *Client) do(ctx context.Context, host string, op Operation, acct Account, msg *OutgoingMessage) (*Result, error) {
	req, err := c.protocol.BuildRequest(op, acct, msg)
	if err != nil {
		return nil, err
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.buildURL(host, req), body)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.BasicUser != "" {
		httpReq.SetBasicAuth(req.BasicUser, req.BasicPassword)
	}

	c.logger.Debug("gateway request", "protocol", c.protocol.Name(), "operation", op, "host", host)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportFailure(ctx, op, host, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportFailure(ctx, op, host, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		gwErr := StatusError(resp.StatusCode, resp.Status)
		gwErr.Payload = string(data)
		return nil, annotate(gwErr, op, host)
	}
	result, err := c.protocol.ClassifyResponse(op, &Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Body:          data,
	})
	if err != nil {
		return nil, annotate(err, op, host)
	}
	return result, nil
}

func (c *Client) transportFailure(ctx context.Context, op Operation, host string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("gateway: %s aborted: %w", op, ctx.Err())
	}
	return annotate(TransportError(err), op, host)
}

func (c *Client) buildURL(host string, req *Request) string {
	full := c.protocol.Scheme() + "://" + strings.TrimRight(host, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		full += "?" + req.Query.Encode()
	}
	return full
}

func (c *Client) observe(op Operation, host string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveAttempt(c.protocol.Name(), op, host, Outcome(err), elapsed.Seconds())
}

func annotate(err error, op Operation, host string) error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		if gwErr.Op == "" {
			gwErr.Op = op
		}
		if gwErr.Host == "" {
			gwErr.Host = host
		}
	}
	return err
}

// Outcome is a short metric label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrAuthentication):
		return "auth"
	case errors.Is(err, ErrServiceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrHTTP):
		return "http"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, ErrUnclassified):
		return "unclassified"
	default:
		return "error"
	}
}
