package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/geo"
	"github.com/scastiel/parity.coffee/internal/ppp"
	"github.com/scastiel/parity.coffee/internal/services"
)

const defaultPPPEndpoint = "https://api.purchasing-power-parity.com/"

type quoteOutput struct {
	Country         *string `json:"country"`
	Source          string  `json:"source"`
	Factor          float64 `json:"factor"`
	FactorDefaulted bool    `json:"factorDefaulted"`
	Discount        *int    `json:"discount"`
	Code            *string `json:"code"`
	Price           int64   `json:"price"`
	BasePrice       int64   `json:"basePrice"`
}

func quoteCmd(logger *zap.Logger) *cobra.Command {
	var (
		ip        string
		country   string
		endpoint  string
		geoDB     string
		basePrice int64
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute the price quote for an IP address or country",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(ip) == "" && strings.TrimSpace(country) == "" {
				return errors.New("one of --ip or --country is required")
			}
			lookup, err := envLookup(cmd)
			if err != nil {
				return err
			}
			if endpoint == "" {
				endpoint = lookup("API_PPP_ENDPOINT")
			}
			if endpoint == "" {
				endpoint = defaultPPPEndpoint
			}

			var locator geo.Geolocator
			if strings.TrimSpace(country) == "" {
				if geoDB == "" {
					geoDB = lookup("API_GEO_DATABASE_PATH")
				}
				if geoDB == "" {
					geoDB = "GeoLite2-Country.mmdb"
				}
				maxmind, err := geo.OpenMaxMind(geoDB)
				if err != nil {
					return err
				}
				defer maxmind.Close()
				locator = maxmind
			}

			resolver := geo.NewResolver(locator,
				geo.WithSimulatedCountry(country),
				geo.WithLogger(logger.Named("geo")),
			)
			client, err := ppp.NewClient(endpoint, ppp.WithTimeout(timeout), ppp.WithLogger(logger.Named("ppp")))
			if err != nil {
				return err
			}
			svc, err := services.NewPriceQuoteService(services.PriceQuoteServiceDeps{
				Countries: resolver,
				Factors:   client,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+time.Second)
			defer cancel()
			quote, err := svc.GetQuote(ctx, geo.RequestContext{ClientIP: ip})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(newQuoteOutput(quote, basePrice))
		},
	}

	cmd.Flags().StringVar(&ip, "ip", "", "client IP address to geolocate")
	cmd.Flags().StringVar(&country, "country", "", "ISO 3166-1 alpha-2 country code, skips geolocation")
	cmd.Flags().StringVar(&endpoint, "ppp-endpoint", "", "purchasing power parity data endpoint")
	cmd.Flags().StringVar(&geoDB, "geo-db", "", "path to a GeoLite2/GeoIP2 Country database")
	cmd.Flags().Int64Var(&basePrice, "base-price", 400, "base price in minor units")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "parity data request timeout")
	return cmd
}

func newQuoteOutput(quote domain.PriceQuote, basePrice int64) quoteOutput {
	out := quoteOutput{
		Source:          string(quote.CountrySource),
		Factor:          quote.Factor,
		FactorDefaulted: quote.FactorDefaulted,
		Price:           quote.AdjustedPrice(basePrice),
		BasePrice:       basePrice,
	}
	if quote.HasCountry() {
		c := quote.Country
		out.Country = &c
	}
	if percent, ok := quote.Discount(); ok {
		out.Discount = &percent
	}
	if code, ok := quote.Code(); ok {
		out.Code = &code
	}
	return out
}
