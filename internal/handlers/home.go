package handlers

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scastiel/parity.coffee/internal/platform/httpx"
	"github.com/scastiel/parity.coffee/internal/platform/observability"
	"github.com/scastiel/parity.coffee/internal/services"
	"github.com/scastiel/parity.coffee/internal/site"
)

// HomeHandlers renders the landing page with the visitor's quote already applied.
type HomeHandlers struct {
	quotes    services.PriceQuoteService
	renderer  *site.Renderer
	basePrice int64
}

// NewHomeHandlers constructs the landing page handler.
func NewHomeHandlers(quotes services.PriceQuoteService, renderer *site.Renderer, basePrice int64) *HomeHandlers {
	return &HomeHandlers{
		quotes:    quotes,
		renderer:  renderer,
		basePrice: basePrice,
	}
}

// Routes registers the landing page.
func (h *HomeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.home)
}

func (h *HomeHandlers) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.renderer == nil || h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("site_unavailable", "landing page unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	data := site.HomeData{
		Mode:      strings.TrimSpace(query.Get("option")),
		BasePrice: h.basePrice,
		Success:   query.Get("success") == "true",
	}

	quote, err := h.quotes.GetQuote(ctx, requestContext(r))
	if err != nil {
		observability.FromContext(ctx).Warn("home: quote unavailable", zap.Error(err))
	} else {
		data.Quote = quote
	}

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, data); err != nil {
		observability.FromContext(ctx).Error("home: render failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("render_failed", "failed to render page", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
