package upstream

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/tracing"
)

// DefaultPath is the pricing endpoint below the upstream base URL.
const DefaultPath = "/api/pricing/"

// ErrUpstreamStatus is returned for any non-2xx upstream response.
var ErrUpstreamStatus = errors.New("upstream: unexpected status")

// Request describes one pricing retrieval.
type Request struct {
	Currency models.Currency // empty lets the upstream decide
	Fresh    bool            // skip any response cache
}

// Fetcher retrieves a decoded pricing payload.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (map[string]any, error)
}

// Client fetches pricing payloads from the upstream pricing service.
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
	maxBody    int64
}

// ClientOptions holds options for creating a client.
type ClientOptions struct {
	Path        string
	Timeout     time.Duration
	MaxBodySize int64
	HTTPClient  *http.Client
}

// DefaultClientOptions returns default client options.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Path:        DefaultPath,
		Timeout:     10 * time.Second,
		MaxBodySize: 1 << 20, // 1MB
	}
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ClientOptions) *Client {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultClientOptions().MaxBodySize
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       opts.Path,
		httpClient: hc,
		maxBody:    opts.MaxBodySize,
	}
}

// Fetch issues GET {base}{path}?currency=XXX. Network errors, non-2xx
// statuses and undecodable bodies are errors; a body that decodes to
// anything other than an object is returned as an empty payload.
func (c *Client) Fetch(ctx context.Context, req Request) (map[string]any, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "upstream.FetchPricing",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	u, err := url.Parse(c.baseURL + c.path)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if req.Currency != "" {
		q := u.Query()
		q.Set("currency", string(req.Currency))
		u.RawQuery = q.Encode()
	}
	span.SetAttributes(
		attribute.String("http.url", u.String()),
		attribute.String("pricing.currency", string(req.Currency)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, fmt.Errorf("failed to fetch pricing: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read pricing response: %w", err)
	}
	return Decode(body)
}

// Decode parses a pricing response body. Numbers are kept as json.Number
// so large minor-unit amounts survive intact.
func Decode(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON in pricing response: %w", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return obj, nil
}
