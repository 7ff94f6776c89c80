package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/scastiel/parity.coffee/internal/site"
)

func newHomeRouter(t *testing.T, quotes *stubQuoteService) http.Handler {
	t.Helper()
	renderer, err := site.NewRenderer(site.Config{Meta: site.Meta{URL: "https://parity.coffee"}})
	require.NoError(t, err)
	home := NewHomeHandlers(quotes, renderer, 400)
	return NewRouter(WithSiteRoutes(home.Routes))
}

func getHome(t *testing.T, handler http.Handler, path string) *goquery.Document {
	t.Helper()
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	return doc
}

func TestHomeRendersAdjustedPriceByDefault(t *testing.T) {
	router := newHomeRouter(t, &stubQuoteService{quote: eligibleQuote("FR", 0.95)})

	doc := getHome(t, router, "/")

	require.Contains(t, doc.Find(`[data-testid="price"]`).Text(), "$3.60")
	endpoint, _ := doc.Find("#buy").Attr("data-endpoint")
	require.Equal(t, "/api/with-adjusted-price/create-checkout-session", endpoint)
	require.Equal(t, 0, doc.Find(`[data-testid="success"]`).Length())
}

func TestHomeSelectsDiscountCodeOption(t *testing.T) {
	router := newHomeRouter(t, &stubQuoteService{quote: eligibleQuote("FR", 0.95)})

	doc := getHome(t, router, "/?option=with-discount-code&success=true")

	require.Contains(t, doc.Find(`[data-testid="price"]`).Text(), "$4.00")
	require.Equal(t, "DHFVUFKE", doc.Find(`[data-testid="code"]`).Text())
	require.Equal(t, 1, doc.Find(`[data-testid="success"]`).Length())
}

func TestHomeFallsBackToUnknownCountryOnQuoteError(t *testing.T) {
	router := newHomeRouter(t, &stubQuoteService{err: errors.New("boom")})

	doc := getHome(t, router, "/")

	require.Contains(t, doc.Find(`[data-testid="message"]`).Text(), "unable to know the country")
	require.Contains(t, doc.Find(`[data-testid="price"]`).Text(), "$4.00")
}
