package services

import (
	"context"
	"time"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/geo"
)

// PriceQuote is re-exported for handler convenience.
type PriceQuote = domain.PriceQuote

// SystemHealthReport is re-exported for handler convenience.
type SystemHealthReport = domain.SystemHealthReport

// PriceQuoteService decides the discount a request is eligible for.
type PriceQuoteService interface {
	GetQuote(ctx context.Context, req geo.RequestContext) (PriceQuote, error)
}

// CheckoutMode selects how the discount is applied at checkout.
type CheckoutMode string

const (
	// CheckoutModeAdjustedPrice charges the discounted price directly.
	CheckoutModeAdjustedPrice CheckoutMode = "with-adjusted-price"
	// CheckoutModeDiscountCode charges the base price and lets the buyer enter the tier's code.
	CheckoutModeDiscountCode CheckoutMode = "with-discount-code"
)

// CheckoutModes lists the supported modes in display order.
func CheckoutModes() []CheckoutMode {
	return []CheckoutMode{CheckoutModeAdjustedPrice, CheckoutModeDiscountCode}
}

// ParseCheckoutMode validates a mode received from a URL.
func ParseCheckoutMode(raw string) (CheckoutMode, bool) {
	for _, mode := range CheckoutModes() {
		if string(mode) == raw {
			return mode, true
		}
	}
	return "", false
}

// CreateCheckoutSessionCommand requests a hosted checkout session for one coffee.
type CreateCheckoutSessionCommand struct {
	Mode    CheckoutMode
	Request geo.RequestContext
}

// CheckoutSession is returned to the browser so it can redirect to the payment page.
type CheckoutSession struct {
	ID          string
	Provider    string
	RedirectURL string
	UnitAmount  int64
	Currency    string
	ExpiresAt   time.Time
	Quote       PriceQuote
}

// CheckoutService creates payment sessions priced according to the request's quote.
type CheckoutService interface {
	CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error)
}

// SystemService aggregates operational endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
