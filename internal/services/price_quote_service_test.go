package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/geo"
	"github.com/scastiel/parity.coffee/internal/ppp"
)

type stubCountryResolver struct {
	resolution geo.Resolution
	calls      int
}

func (s *stubCountryResolver) Resolve(context.Context, geo.RequestContext) geo.Resolution {
	s.calls++
	return s.resolution
}

type stubFactorProvider struct {
	factor    ppp.Factor
	countries []string
}

func (s *stubFactorProvider) ConversionFactor(_ context.Context, country string) ppp.Factor {
	s.countries = append(s.countries, country)
	return s.factor
}

func newPPPServer(t *testing.T, status int, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func TestGetQuoteSimulatedCountryEndToEnd(t *testing.T) {
	client, err := ppp.NewClient(newPPPServer(t, http.StatusOK, `{"ppp":{"pppConversionFactor":0.95}}`))
	if err != nil {
		t.Fatalf("ppp client: %v", err)
	}
	svc, err := NewPriceQuoteService(PriceQuoteServiceDeps{
		Countries: geo.NewResolver(nil, geo.WithSimulatedCountry("FR")),
		Factors:   client,
	})
	if err != nil {
		t.Fatalf("NewPriceQuoteService: %v", err)
	}

	quote, err := svc.GetQuote(context.Background(), geo.RequestContext{ClientIP: "198.51.100.7"})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Country != "FR" || quote.CountrySource != domain.CountrySourceSimulated {
		t.Fatalf("unexpected country %+v", quote)
	}
	if percent, ok := quote.Discount(); !ok || percent != 10 {
		t.Fatalf("expected 10%% discount, got %d ok=%v", percent, ok)
	}
	if code, _ := quote.Code(); code != "DHFVUFKE" {
		t.Fatalf("expected DHFVUFKE, got %q", code)
	}
	if price := quote.AdjustedPrice(400); price != 360 {
		t.Fatalf("expected adjusted price 360, got %d", price)
	}
}

func TestGetQuotePPPFailureEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL
	server.Close()

	client, err := ppp.NewClient(endpoint)
	if err != nil {
		t.Fatalf("ppp client: %v", err)
	}
	svc, err := NewPriceQuoteService(PriceQuoteServiceDeps{
		Countries: geo.NewResolver(nil, geo.WithSimulatedCountry("FR")),
		Factors:   client,
	})
	if err != nil {
		t.Fatalf("NewPriceQuoteService: %v", err)
	}

	quote, err := svc.GetQuote(context.Background(), geo.RequestContext{})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Country != "FR" {
		t.Fatalf("expected FR, got %q", quote.Country)
	}
	if !quote.FactorDefaulted || quote.Factor != ppp.NeutralFactor {
		t.Fatalf("expected defaulted neutral factor, got %+v", quote)
	}
	if _, ok := quote.Discount(); ok {
		t.Fatalf("expected no discount when parity data is unavailable")
	}
	if _, ok := quote.Code(); ok {
		t.Fatalf("expected no code when parity data is unavailable")
	}
	if price := quote.AdjustedPrice(400); price != 400 {
		t.Fatalf("expected full price, got %d", price)
	}
}

func TestGetQuoteUnknownCountrySkipsFactorLookup(t *testing.T) {
	countries := &stubCountryResolver{resolution: geo.Resolution{Source: domain.CountrySourceUnavailable}}
	factors := &stubFactorProvider{factor: ppp.Factor{Value: 0.2}}
	svc, err := NewPriceQuoteService(PriceQuoteServiceDeps{Countries: countries, Factors: factors})
	if err != nil {
		t.Fatalf("NewPriceQuoteService: %v", err)
	}

	quote, err := svc.GetQuote(context.Background(), geo.RequestContext{ClientIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.HasCountry() || quote.Tier != nil {
		t.Fatalf("expected empty quote, got %+v", quote)
	}
	if len(factors.countries) != 0 {
		t.Fatalf("expected no conversion factor fetch, got %v", factors.countries)
	}
	if price := quote.AdjustedPrice(400); price != 400 {
		t.Fatalf("expected base price, got %d", price)
	}
}

func TestGetQuoteComposesTier(t *testing.T) {
	cases := []struct {
		factor  float64
		percent int
		code    string
		ok      bool
	}{
		{factor: 0.2, percent: 80, code: "LLSJDLWF", ok: true},
		{factor: 0.45, percent: 50, code: "AGEFDXSL", ok: true},
		{factor: 1.0, percent: 10, code: "DHFVUFKE", ok: true},
		{factor: 1.4, ok: false},
	}
	for _, tc := range cases {
		countries := &stubCountryResolver{resolution: geo.Resolution{Country: "IN", Source: domain.CountrySourceGeolocated}}
		factors := &stubFactorProvider{factor: ppp.Factor{Value: tc.factor}}
		var events []string
		svc, err := NewPriceQuoteService(PriceQuoteServiceDeps{
			Countries: countries,
			Factors:   factors,
			Logger: func(_ context.Context, event string, _ map[string]any) {
				events = append(events, event)
			},
		})
		if err != nil {
			t.Fatalf("NewPriceQuoteService: %v", err)
		}

		quote, err := svc.GetQuote(context.Background(), geo.RequestContext{ClientIP: "203.0.113.9"})
		if err != nil {
			t.Fatalf("GetQuote: %v", err)
		}
		if len(factors.countries) != 1 || factors.countries[0] != "IN" {
			t.Fatalf("expected lookup for IN, got %v", factors.countries)
		}
		percent, ok := quote.Discount()
		if ok != tc.ok || percent != tc.percent {
			t.Fatalf("factor %v: got %d ok=%v, want %d ok=%v", tc.factor, percent, ok, tc.percent, tc.ok)
		}
		if code, _ := quote.Code(); code != tc.code {
			t.Fatalf("factor %v: got code %q, want %q", tc.factor, code, tc.code)
		}
		if tc.ok && len(events) != 1 {
			t.Fatalf("expected discounted quote to be logged")
		}
	}
}

func TestGetQuoteIgnoresTierForDefaultedFactor(t *testing.T) {
	countries := &stubCountryResolver{resolution: geo.Resolution{Country: "BR", Source: domain.CountrySourceGeolocated}}
	factors := &stubFactorProvider{factor: ppp.Factor{Value: ppp.NeutralFactor, Defaulted: true, Err: errors.New("timeout")}}
	svc, err := NewPriceQuoteService(PriceQuoteServiceDeps{Countries: countries, Factors: factors})
	if err != nil {
		t.Fatalf("NewPriceQuoteService: %v", err)
	}

	quote, err := svc.GetQuote(context.Background(), geo.RequestContext{})
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if quote.Tier != nil || !quote.FactorDefaulted {
		t.Fatalf("expected defaulted quote without tier, got %+v", quote)
	}
}

func TestNewPriceQuoteServiceRequiresDeps(t *testing.T) {
	if _, err := NewPriceQuoteService(PriceQuoteServiceDeps{Factors: &stubFactorProvider{}}); err == nil {
		t.Fatalf("expected error without country resolver")
	}
	if _, err := NewPriceQuoteService(PriceQuoteServiceDeps{Countries: &stubCountryResolver{}}); err == nil {
		t.Fatalf("expected error without factor provider")
	}
}
