package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/geo"
	"github.com/scastiel/parity.coffee/internal/ppp"
)

const pricingMeterName = "github.com/scastiel/parity.coffee/internal/services"

type countryResolver interface {
	Resolve(ctx context.Context, req geo.RequestContext) geo.Resolution
}

type conversionFactorProvider interface {
	ConversionFactor(ctx context.Context, country string) ppp.Factor
}

// PriceQuoteServiceDeps wires the collaborators of the quote service.
type PriceQuoteServiceDeps struct {
	Countries countryResolver
	Factors   conversionFactorProvider
	Meter     metric.Meter
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type priceQuoteService struct {
	countries countryResolver
	factors   conversionFactorProvider
	logger    func(ctx context.Context, event string, fields map[string]any)
	quotes    metric.Int64Counter
	fallbacks metric.Int64Counter
}

var _ PriceQuoteService = (*priceQuoteService)(nil)

// NewPriceQuoteService constructs a PriceQuoteService.
func NewPriceQuoteService(deps PriceQuoteServiceDeps) (PriceQuoteService, error) {
	if deps.Countries == nil {
		return nil, errors.New("price quote service: country resolver is required")
	}
	if deps.Factors == nil {
		return nil, errors.New("price quote service: conversion factor provider is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(pricingMeterName)
	}
	quotes, err := meter.Int64Counter("pricing.quotes", metric.WithDescription("Price quotes served by outcome"))
	if err != nil {
		return nil, err
	}
	fallbacks, err := meter.Int64Counter("pricing.factor_fallbacks", metric.WithDescription("Quotes computed with the neutral conversion factor"))
	if err != nil {
		return nil, err
	}

	return &priceQuoteService{
		countries: deps.Countries,
		factors:   deps.Factors,
		logger:    logger,
		quotes:    quotes,
		fallbacks: fallbacks,
	}, nil
}

func (s *priceQuoteService) GetQuote(ctx context.Context, req geo.RequestContext) (PriceQuote, error) {
	if s == nil || s.countries == nil || s.factors == nil {
		return PriceQuote{}, errors.New("price quote service: not configured")
	}

	resolution := s.countries.Resolve(ctx, req)
	if !resolution.Known() {
		s.record(ctx, "no_country")
		return PriceQuote{CountrySource: domain.CountrySourceUnavailable}, nil
	}

	factor := s.factors.ConversionFactor(ctx, resolution.Country)
	quote := PriceQuote{
		Country:         resolution.Country,
		CountrySource:   resolution.Source,
		Factor:          factor.Value,
		FactorDefaulted: factor.Defaulted,
	}
	// Unavailable parity data never earns a discount.
	if factor.Defaulted {
		s.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("country", resolution.Country)))
		s.record(ctx, "factor_unavailable")
		return quote, nil
	}

	tier, ok := domain.ResolveTier(factor.Value)
	if !ok {
		s.record(ctx, "no_tier")
		return quote, nil
	}
	quote.Tier = &tier
	s.record(ctx, "discounted")

	s.logger(ctx, "pricing.quote.discounted", map[string]any{
		"country":  quote.Country,
		"source":   string(quote.CountrySource),
		"factor":   quote.Factor,
		"discount": tier.Percent,
	})
	return quote, nil
}

func (s *priceQuoteService) record(ctx context.Context, outcome string) {
	s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
