package ppp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL+"/", opts...)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestConversionFactorSuccess(t *testing.T) {
	var gotTarget atomic.Value
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotTarget.Store(r.URL.Query().Get("target"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ppp":{"currencyMain":{"exchangeRate":0.92},"pppConversionFactor":0.95}}`))
	})

	factor := client.ConversionFactor(context.Background(), "FR")
	if target, _ := gotTarget.Load().(string); target != "FR" {
		t.Fatalf("expected target=FR, got %q", target)
	}
	if factor.Value != 0.95 || factor.Defaulted || factor.Err != nil {
		t.Fatalf("unexpected factor %+v", factor)
	}
}

func TestConversionFactorDefaultsOnFailure(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			check: func(err error) bool {
				var statusErr *StatusError
				return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusInternalServerError
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"ppp":`))
			},
			check: func(err error) bool { return err != nil },
		},
		{
			name: "missing field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"ppp":{}}`))
			},
			check: func(err error) bool { return errors.Is(err, ErrMissingFactor) },
		},
		{
			name: "missing ppp object",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			check: func(err error) bool { return errors.Is(err, ErrMissingFactor) },
		},
		{
			name: "zero factor",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"ppp":{"pppConversionFactor":0}}`))
			},
			check: func(err error) bool { return errors.Is(err, ErrInvalidFactor) },
		},
		{
			name: "negative factor",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"ppp":{"pppConversionFactor":-0.3}}`))
			},
			check: func(err error) bool { return errors.Is(err, ErrInvalidFactor) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			client := newTestClient(t, tc.handler, WithLogger(zap.New(core)))

			factor := client.ConversionFactor(context.Background(), "FR")
			if factor.Value != NeutralFactor || !factor.Defaulted {
				t.Fatalf("expected defaulted neutral factor, got %+v", factor)
			}
			if !tc.check(factor.Err) {
				t.Fatalf("unexpected error %v", factor.Err)
			}
			if logs.Len() != 1 {
				t.Fatalf("expected one error log, got %d", logs.Len())
			}
		})
	}
}

func TestConversionFactorDefaultsOnTimeout(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(20*time.Millisecond))
	defer close(release)

	factor := client.ConversionFactor(context.Background(), "FR")
	if !factor.Defaulted || !errors.Is(factor.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded default, got %+v", factor)
	}
}

func TestConversionFactorDefaultsOnNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client, err := NewClient(endpoint)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	factor := client.ConversionFactor(context.Background(), "FR")
	if !factor.Defaulted || factor.Err == nil {
		t.Fatalf("expected network failure default, got %+v", factor)
	}
}

func TestConversionFactorRequiresCountry(t *testing.T) {
	var called atomic.Bool
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) { called.Store(true) })

	factor := client.ConversionFactor(context.Background(), " ")
	if !errors.Is(factor.Err, ErrEmptyCountry) || !factor.Defaulted {
		t.Fatalf("expected empty country default, got %+v", factor)
	}
	if called.Load() {
		t.Fatalf("expected no request for empty country")
	}
}

func TestPing(t *testing.T) {
	var unhealthy atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if unhealthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ppp":{"pppConversionFactor":1}}`))
	})

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy ping, got %v", err)
	}
	unhealthy.Store(true)
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestNewClientValidatesEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "ftp://example.com", "https://", "://bad"} {
		if _, err := NewClient(endpoint); err == nil {
			t.Fatalf("expected error for endpoint %q", endpoint)
		}
	}
}
