package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/promotioncode"
)

// PromotionTier is a promotion code that must grant a percentage discount.
type PromotionTier struct {
	Code    string
	Percent int
}

// PromotionSyncStatus describes what Sync did for a tier.
type PromotionSyncStatus string

const (
	PromotionCreated   PromotionSyncStatus = "created"
	PromotionUnchanged PromotionSyncStatus = "unchanged"
	PromotionPlanned   PromotionSyncStatus = "planned"
	// PromotionConflict marks a code that exists in Stripe but grants a different coupon or is
	// inactive. Conflicting codes are reported and left untouched.
	PromotionConflict PromotionSyncStatus = "conflict"
)

// PromotionSyncResult reports the outcome for one tier.
type PromotionSyncResult struct {
	Code          string
	Percent       int
	CouponID      string
	CouponCreated bool
	Status        PromotionSyncStatus
	Detail        string
}

// PromotionSyncOptions tunes a Sync run.
type PromotionSyncOptions struct {
	// DryRun reports the changes without creating anything.
	DryRun bool
}

type stripeCouponAPI interface {
	Get(id string, params *stripe.CouponParams) (*stripe.Coupon, error)
	New(params *stripe.CouponParams) (*stripe.Coupon, error)
}

type promotionCodeIterator interface {
	Next() bool
	PromotionCode() *stripe.PromotionCode
	Err() error
}

type stripePromotionCodeAPI interface {
	New(params *stripe.PromotionCodeParams) (*stripe.PromotionCode, error)
	List(params *stripe.PromotionCodeListParams) promotionCodeIterator
}

type promotionCodeClient struct {
	client *promotioncode.Client
}

func (c promotionCodeClient) New(params *stripe.PromotionCodeParams) (*stripe.PromotionCode, error) {
	return c.client.New(params)
}

func (c promotionCodeClient) List(params *stripe.PromotionCodeListParams) promotionCodeIterator {
	return c.client.List(params)
}

// StripePromotionSyncConfig configures StripePromotionSync.
type StripePromotionSyncConfig struct {
	APIKey         string
	Backends       *stripe.Backends
	Logger         StripeLogger
	coupons        stripeCouponAPI
	promotionCodes stripePromotionCodeAPI
}

// StripePromotionSync makes sure every discount tier's code is redeemable at Stripe Checkout.
// Each percentage is backed by a single-use-per-purchase coupon named ppp-<percent>.
type StripePromotionSync struct {
	coupons        stripeCouponAPI
	promotionCodes stripePromotionCodeAPI
	logger         StripeLogger
}

// NewStripePromotionSync constructs the syncer.
func NewStripePromotionSync(cfg StripePromotionSyncConfig) (*StripePromotionSync, error) {
	coupons, codes := cfg.coupons, cfg.promotionCodes
	if coupons == nil || codes == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sc := client.New(apiKey, cfg.Backends)
		coupons = sc.Coupons
		codes = promotionCodeClient{client: sc.PromotionCodes}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &StripePromotionSync{coupons: coupons, promotionCodes: codes, logger: logger}, nil
}

// CouponID returns the coupon identifier backing a percentage discount.
func CouponID(percent int) string {
	return fmt.Sprintf("ppp-%d", percent)
}

// Sync ensures each tier has a coupon and an active promotion code. It stops at the first Stripe
// error and returns the results gathered so far.
func (s *StripePromotionSync) Sync(ctx context.Context, tiers []PromotionTier, opts PromotionSyncOptions) ([]PromotionSyncResult, error) {
	results := make([]PromotionSyncResult, 0, len(tiers))
	for _, tier := range tiers {
		code := strings.TrimSpace(tier.Code)
		if code == "" || tier.Percent <= 0 || tier.Percent > 100 {
			return results, fmt.Errorf("stripe: invalid promotion tier %+v", tier)
		}
		result, err := s.syncTier(ctx, PromotionTier{Code: code, Percent: tier.Percent}, opts)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *StripePromotionSync) syncTier(ctx context.Context, tier PromotionTier, opts PromotionSyncOptions) (PromotionSyncResult, error) {
	result := PromotionSyncResult{
		Code:     tier.Code,
		Percent:  tier.Percent,
		CouponID: CouponID(tier.Percent),
	}

	couponExists, err := s.ensureCoupon(ctx, result.CouponID, tier.Percent, opts.DryRun)
	if err != nil {
		return result, err
	}
	result.CouponCreated = !couponExists

	existing, err := s.findPromotionCode(ctx, tier.Code)
	if err != nil {
		return result, err
	}
	if existing != nil {
		result.Status, result.Detail = classifyPromotionCode(existing, result.CouponID)
		return result, nil
	}

	if opts.DryRun {
		result.Status = PromotionPlanned
		return result, nil
	}

	params := &stripe.PromotionCodeParams{
		Coupon: stripe.String(result.CouponID),
		Code:   stripe.String(tier.Code),
	}
	params.Context = ctx
	params.SetIdempotencyKey("promotion-code-" + tier.Code)
	created, err := s.promotionCodes.New(params)
	if err != nil {
		return result, fmt.Errorf("stripe: create promotion code %s: %w", tier.Code, err)
	}
	s.logger(ctx, "payments.stripe.promotion_code.created", map[string]any{
		"promotionCode": created.ID,
		"code":          tier.Code,
		"coupon":        result.CouponID,
	})
	result.Status = PromotionCreated
	return result, nil
}

// ensureCoupon reports whether the coupon already existed, creating it unless dryRun is set.
func (s *StripePromotionSync) ensureCoupon(ctx context.Context, id string, percent int, dryRun bool) (bool, error) {
	params := &stripe.CouponParams{}
	params.Context = ctx
	coupon, err := s.coupons.Get(id, params)
	if err == nil {
		if int(coupon.PercentOff) != percent {
			return true, fmt.Errorf("stripe: coupon %s grants %.0f%%, expected %d%%", id, coupon.PercentOff, percent)
		}
		return true, nil
	}
	if !isStripeNotFound(err) {
		return false, fmt.Errorf("stripe: get coupon %s: %w", id, err)
	}
	if dryRun {
		return false, nil
	}

	create := &stripe.CouponParams{
		ID:         stripe.String(id),
		PercentOff: stripe.Float64(float64(percent)),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
		Name:       stripe.String(fmt.Sprintf("Parity discount %d%%", percent)),
	}
	create.Context = ctx
	if _, err := s.coupons.New(create); err != nil {
		return false, fmt.Errorf("stripe: create coupon %s: %w", id, err)
	}
	s.logger(ctx, "payments.stripe.coupon.created", map[string]any{
		"coupon":  id,
		"percent": percent,
	})
	return false, nil
}

func (s *StripePromotionSync) findPromotionCode(ctx context.Context, code string) (*stripe.PromotionCode, error) {
	params := &stripe.PromotionCodeListParams{Code: stripe.String(code)}
	params.Context = ctx
	params.Limit = stripe.Int64(10)

	iter := s.promotionCodes.List(params)
	var found *stripe.PromotionCode
	for iter.Next() {
		pc := iter.PromotionCode()
		if pc == nil {
			continue
		}
		if found == nil || (pc.Active && !found.Active) {
			found = pc
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("stripe: list promotion codes %s: %w", code, err)
	}
	return found, nil
}

func classifyPromotionCode(pc *stripe.PromotionCode, couponID string) (PromotionSyncStatus, string) {
	if pc.Coupon == nil || pc.Coupon.ID != couponID {
		actual := ""
		if pc.Coupon != nil {
			actual = pc.Coupon.ID
		}
		return PromotionConflict, fmt.Sprintf("bound to coupon %q", actual)
	}
	if !pc.Active {
		return PromotionConflict, "inactive"
	}
	return PromotionUnchanged, ""
}

func isStripeNotFound(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound
}
