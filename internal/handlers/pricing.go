package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scastiel/parity.coffee/internal/geo"
	"github.com/scastiel/parity.coffee/internal/platform/httpx"
	"github.com/scastiel/parity.coffee/internal/platform/observability"
	"github.com/scastiel/parity.coffee/internal/services"
)

// PricingHandlers exposes the price and checkout endpoints of both pricing modes.
type PricingHandlers struct {
	quotes    services.PriceQuoteService
	checkout  services.CheckoutService
	basePrice int64
	limiter   *windowLimiter
}

// PricingOption customises PricingHandlers.
type PricingOption func(*PricingHandlers)

// WithCheckoutRateLimit caps checkout sessions created per client IP within window.
func WithCheckoutRateLimit(limit int, window time.Duration, clock func() time.Time) PricingOption {
	return func(h *PricingHandlers) {
		h.limiter = newWindowLimiter(limit, window, clock)
	}
}

// NewPricingHandlers constructs the handlers mounted under /api/{mode}.
func NewPricingHandlers(quotes services.PriceQuoteService, checkout services.CheckoutService, basePrice int64, opts ...PricingOption) *PricingHandlers {
	h := &PricingHandlers{
		quotes:    quotes,
		checkout:  checkout,
		basePrice: basePrice,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers pricing endpoints under the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/price", h.getPrice)
	r.Post("/create-checkout-session", h.createCheckoutSession)
}

type adjustedPriceResponse struct {
	Country   *string `json:"country"`
	Discount  *int    `json:"discount"`
	Price     int64   `json:"price"`
	BasePrice int64   `json:"basePrice"`
}

type discountCodeResponse struct {
	Country   *string `json:"country"`
	Code      *string `json:"code"`
	Discount  *int    `json:"discount"`
	BasePrice int64   `json:"basePrice"`
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

func (h *PricingHandlers) getPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode, ok := modeFromRequest(r)
	if !ok {
		writeUnknownMode(ctx, w, r)
		return
	}
	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	quote, err := h.quotes.GetQuote(ctx, requestContext(r))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	country := optionalString(quote.Country, quote.HasCountry())
	var discount *int
	if percent, ok := quote.Discount(); ok {
		discount = &percent
	}

	switch mode {
	case services.CheckoutModeDiscountCode:
		code, ok := quote.Code()
		httpx.WriteJSON(w, http.StatusOK, discountCodeResponse{
			Country:   country,
			Code:      optionalString(code, ok),
			Discount:  discount,
			BasePrice: h.basePrice,
		})
	default:
		httpx.WriteJSON(w, http.StatusOK, adjustedPriceResponse{
			Country:   country,
			Discount:  discount,
			Price:     quote.AdjustedPrice(h.basePrice),
			BasePrice: h.basePrice,
		})
	}
}

func (h *PricingHandlers) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode, ok := modeFromRequest(r)
	if !ok {
		writeUnknownMode(ctx, w, r)
		return
	}
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	req := requestContext(r)
	if !h.limiter.Allow(req.ClientIP) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts; retry later", http.StatusTooManyRequests))
		return
	}

	session, err := h.checkout.CreateCheckoutSession(ctx, services.CreateCheckoutSessionCommand{
		Mode:    mode,
		Request: req,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, checkoutSessionResponse{
		ID:  session.ID,
		URL: session.RedirectURL,
	})
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutPaymentFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_failed", "payment session could not be created", http.StatusBadGateway))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}

func modeFromRequest(r *http.Request) (services.CheckoutMode, bool) {
	return services.ParseCheckoutMode(chi.URLParam(r, "mode"))
}

func writeUnknownMode(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(ctx, w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", r.URL.Path), http.StatusNotFound))
}

func requestContext(r *http.Request) geo.RequestContext {
	return geo.RequestContext{ClientIP: observability.ClientIP(r)}
}

func optionalString(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}
