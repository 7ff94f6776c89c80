package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/payments"
)

func tiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tiers",
		Short: "Print the discount tier table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FACTOR\tDISCOUNT\tCODE\tCOUPON")
			for _, tier := range domain.DiscountTiers() {
				fmt.Fprintf(w, "<= %.1f\t%d%%\t%s\t%s\n", tier.MaxFactor, tier.Percent, tier.Code, payments.CouponID(tier.Percent))
			}
			fmt.Fprintln(w, "> 1.0\t-\t-\t-")
			return w.Flush()
		},
	}
}
