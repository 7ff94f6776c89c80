package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scastiel/parity.coffee/internal/payments"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutPaymentFailed indicates the PSP session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
)

// checkoutSessionManager abstracts payments.Manager for easier testing.
type checkoutSessionManager interface {
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
}

// Product describes the single item sold on the site.
type Product struct {
	Name string
	// BasePrice is expressed in minor currency units.
	BasePrice int64
	Currency  string
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Quotes   PriceQuoteService
	Payments checkoutSessionManager
	Product  Product
	// Domain is the public site URL buyers return to after checkout.
	Domain      string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	quotes   PriceQuoteService
	payments checkoutSessionManager
	product  Product
	domain   string
	now      func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Quotes == nil {
		return nil, errors.New("checkout service: quote service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}
	if deps.Product.BasePrice <= 0 {
		return nil, errors.New("checkout service: product base price must be positive")
	}
	if strings.TrimSpace(deps.Product.Name) == "" {
		return nil, errors.New("checkout service: product name is required")
	}
	domain := strings.TrimSpace(deps.Domain)
	if domain == "" {
		return nil, errors.New("checkout service: domain is required")
	}

	product := deps.Product
	product.Currency = strings.ToLower(strings.TrimSpace(product.Currency))
	if product.Currency == "" {
		product.Currency = "usd"
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		quotes:   deps.Quotes,
		payments: deps.Payments,
		product:  product,
		domain:   domain,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// CreateCheckoutSession prices one unit of the product for the requesting client and opens a
// hosted payment session. In discount-code mode the full price is charged and the buyer may
// redeem the tier's promotion code on the payment page.
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, cmd CreateCheckoutSessionCommand) (CheckoutSession, error) {
	if s == nil || s.quotes == nil || s.payments == nil {
		return CheckoutSession{}, ErrCheckoutUnavailable
	}
	if _, ok := ParseCheckoutMode(string(cmd.Mode)); !ok {
		return CheckoutSession{}, fmt.Errorf("%w: unknown mode %q", ErrCheckoutInvalidInput, cmd.Mode)
	}

	quote, err := s.quotes.GetQuote(ctx, cmd.Request)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}

	amount := s.product.BasePrice
	allowPromotion := false
	switch cmd.Mode {
	case CheckoutModeAdjustedPrice:
		amount = quote.AdjustedPrice(s.product.BasePrice)
	case CheckoutModeDiscountCode:
		allowPromotion = true
	}

	req := payments.CheckoutSessionRequest{
		Currency:           s.product.Currency,
		SuccessURL:         s.domain + "?success=true",
		CancelURL:          s.domain,
		Metadata:           checkoutMetadata(cmd.Mode, quote),
		IdempotencyKey:     s.newID(),
		PaymentMethodTypes: []string{"card"},
		AllowPromotion:     allowPromotion,
		Items: []payments.CheckoutLineItem{{
			Name:     s.product.Name,
			Quantity: 1,
			Amount:   amount,
			Currency: s.product.Currency,
		}},
	}

	session, err := s.payments.CreateCheckoutSession(ctx, payments.PaymentContext{Currency: s.product.Currency}, req)
	if err != nil {
		s.logger(ctx, "checkout.session.failed", map[string]any{
			"mode":  string(cmd.Mode),
			"error": err.Error(),
		})
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
	}

	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(24 * time.Hour)
	}

	s.logger(ctx, "checkout.session.created", map[string]any{
		"sessionId":      session.ID,
		"provider":       session.Provider,
		"mode":           string(cmd.Mode),
		"country":        quote.Country,
		"unitAmount":     amount,
		"idempotencyKey": req.IdempotencyKey,
	})

	return CheckoutSession{
		ID:          session.ID,
		Provider:    session.Provider,
		RedirectURL: session.RedirectURL,
		UnitAmount:  amount,
		Currency:    s.product.Currency,
		ExpiresAt:   expiresAt,
		Quote:       quote,
	}, nil
}

func checkoutMetadata(mode CheckoutMode, quote PriceQuote) map[string]string {
	metadata := map[string]string{
		"mode": string(mode),
	}
	if quote.HasCountry() {
		metadata["country"] = quote.Country
	}
	if percent, ok := quote.Discount(); ok {
		metadata["discount"] = strconv.Itoa(percent)
	}
	if quote.FactorDefaulted {
		metadata["factor_defaulted"] = "true"
	}
	return metadata
}
