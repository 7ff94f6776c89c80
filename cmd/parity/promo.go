package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/payments"
	"github.com/scastiel/parity.coffee/internal/platform/observability"
	"github.com/scastiel/parity.coffee/internal/platform/secrets"
)

type promotionSyncer interface {
	Sync(ctx context.Context, tiers []payments.PromotionTier, opts payments.PromotionSyncOptions) ([]payments.PromotionSyncResult, error)
}

func promoCodesCmd(logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promo-codes",
		Short: "Manage the Stripe promotion codes behind the discount tiers",
	}
	cmd.AddCommand(promoSyncCmd(logger, nil))
	return cmd
}

// promoSyncCmd builds the sync command. A nil syncer is constructed from the Stripe key found
// in --stripe-key or the environment.
func promoSyncCmd(logger *zap.Logger, syncer promotionSyncer) *cobra.Command {
	var (
		dryRun    bool
		stripeKey string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Create missing coupons and promotion codes for every discount tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if syncer == nil {
				lookup, err := envLookup(cmd)
				if err != nil {
					return err
				}
				key := stripeKey
				if key == "" {
					key = lookup("API_PSP_STRIPE_API_KEY", "STRIPE_SECRET_KEY")
				}
				if key == "" {
					return errors.New("stripe api key is required (--stripe-key or API_PSP_STRIPE_API_KEY)")
				}
				fetcher := secrets.NewFetcher(
					secrets.WithLogger(logger.Named("secrets")),
					secrets.WithDefaultProject(lookup("API_SECRET_DEFAULT_PROJECT_ID")),
				)
				defer fetcher.Close()
				if strings.HasPrefix(key, "sm://") {
					key = "secret://" + strings.TrimPrefix(key, "sm://")
				}
				if strings.HasPrefix(key, "secret://") {
					if key, err = fetcher.Resolve(ctx, key); err != nil {
						return err
					}
				}
				s, err := payments.NewStripePromotionSync(payments.StripePromotionSyncConfig{
					APIKey: key,
					Logger: payments.StripeLogger(observability.EventLogger(logger.Named("payments"), "stripe event")),
				})
				if err != nil {
					return err
				}
				syncer = s
			}

			tiers := domain.DiscountTiers()
			promoTiers := make([]payments.PromotionTier, 0, len(tiers))
			for _, tier := range tiers {
				promoTiers = append(promoTiers, payments.PromotionTier{Code: tier.Code, Percent: tier.Percent})
			}

			results, syncErr := syncer.Sync(ctx, promoTiers, payments.PromotionSyncOptions{DryRun: dryRun})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tDISCOUNT\tCOUPON\tSTATUS\tDETAIL")
			conflicts := 0
			for _, r := range results {
				if r.Status == payments.PromotionConflict {
					conflicts++
				}
				fmt.Fprintf(w, "%s\t%d%%\t%s\t%s\t%s\n", r.Code, r.Percent, r.CouponID, r.Status, r.Detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if syncErr != nil {
				return syncErr
			}
			if conflicts > 0 {
				return fmt.Errorf("%d promotion code(s) conflict with existing Stripe data", conflicts)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report planned changes without creating anything")
	cmd.Flags().StringVar(&stripeKey, "stripe-key", "", "Stripe secret key or secret:// reference")
	return cmd
}
