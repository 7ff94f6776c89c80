package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterHealthz(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type, got %q", rr.Header().Get("Content-Type"))
	}
}

func TestRouterNotFoundEnvelope(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != errorNotFoundCode {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	if body["request_id"] == nil || body["request_id"] == "" {
		t.Fatalf("expected request id from middleware, got %v", body)
	}
}

func TestRouterPricingNotImplementedWithoutRegistrar(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/with-adjusted-price/price", nil))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}

func TestRouterUsesForwardedClientIP(t *testing.T) {
	quotes := &stubQuoteService{}
	router := newPricingRouter(quotes, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/with-adjusted-price/price", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.20")
	router.ServeHTTP(httptest.NewRecorder(), req)

	if len(quotes.requests) != 1 || quotes.requests[0].ClientIP != "198.51.100.20" {
		t.Fatalf("expected forwarded ip, got %+v", quotes.requests)
	}
}
