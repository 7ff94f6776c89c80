package ppp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	defaultTimeout   = 3 * time.Second
	maxResponseBytes = 1 << 20
	pingCountry      = "US"
)

// NeutralFactor is substituted whenever no parity value can be obtained.
const NeutralFactor = 1.0

var (
	// ErrEmptyCountry is reported for lookups without a country code.
	ErrEmptyCountry = errors.New("ppp: country code required")
	// ErrMissingFactor is reported when the response carries no conversion factor.
	ErrMissingFactor = errors.New("ppp: response missing conversion factor")
	// ErrInvalidFactor is reported for zero, negative or non-finite factors.
	ErrInvalidFactor = errors.New("ppp: invalid conversion factor")
)

// StatusError describes a non-2xx response from the data service.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ppp: unexpected status %d", e.StatusCode)
}

// Factor is the result of a conversion factor lookup. When Defaulted is set, Value is
// NeutralFactor and Err holds the reason the service's value could not be used.
type Factor struct {
	Value     float64
	Defaulted bool
	Err       error
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Its transport is used as is.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for degraded lookups.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client fetches purchasing power parity conversion factors from an HTTP data service
// answering GET <endpoint>?target=<country> with {"ppp":{"pppConversionFactor":<number>}}.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	timeout  time.Duration
	logger   *zap.Logger
}

// NewClient validates endpoint and returns a Client whose outbound requests are traced.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("ppp: parse endpoint: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("ppp: endpoint must be http(s), got %q", endpoint)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("ppp: endpoint host required")
	}

	c := &Client{
		endpoint: parsed,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ConversionFactor returns the conversion factor for country. It never fails: any problem with
// the data service yields a defaulted NeutralFactor.
func (c *Client) ConversionFactor(ctx context.Context, country string) Factor {
	value, err := c.fetch(ctx, country)
	if err != nil {
		c.logger.Error("ppp: conversion factor unavailable; using neutral factor",
			zap.String("country", country),
			zap.Error(err),
		)
		return Factor{Value: NeutralFactor, Defaulted: true, Err: err}
	}
	return Factor{Value: value}
}

// Ping performs a lookup for a well-known country and reports any failure.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fetch(ctx, pingCountry)
	return err
}

type response struct {
	PPP *struct {
		ConversionFactor *float64 `json:"pppConversionFactor"`
	} `json:"ppp"`
}

func (c *Client) fetch(ctx context.Context, country string) (float64, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return 0, ErrEmptyCountry
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := *c.endpoint
	query := target.Query()
	query.Set("target", country)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("ppp: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ppp: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return 0, &StatusError{StatusCode: resp.StatusCode}
	}

	var payload response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return 0, fmt.Errorf("ppp: decode response: %w", err)
	}
	if payload.PPP == nil || payload.PPP.ConversionFactor == nil {
		return 0, ErrMissingFactor
	}
	value := *payload.PPP.ConversionFactor
	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFactor, value)
	}
	return value, nil
}
