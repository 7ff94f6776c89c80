package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scastiel/parity.coffee/internal/geo"
	"github.com/scastiel/parity.coffee/internal/handlers"
	"github.com/scastiel/parity.coffee/internal/payments"
	"github.com/scastiel/parity.coffee/internal/platform/config"
	"github.com/scastiel/parity.coffee/internal/platform/observability"
	"github.com/scastiel/parity.coffee/internal/platform/secrets"
	"github.com/scastiel/parity.coffee/internal/ppp"
	"github.com/scastiel/parity.coffee/internal/repositories"
	"github.com/scastiel/parity.coffee/internal/services"
	"github.com/scastiel/parity.coffee/internal/site"
)

// Checkout sessions allowed per client IP per minute.
const checkoutRateLimit = 10

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher := newSecretFetcher(logger, envValues)
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets("PSP.StripeAPIKey"),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	var locator geo.Geolocator
	maxmind, err := geo.OpenMaxMind(cfg.Geo.DatabasePath)
	if err != nil {
		// Without a database every visitor resolves to an unknown country and pays full price.
		logger.Warn("geoip database unavailable", zap.String("path", cfg.Geo.DatabasePath), zap.Error(err))
	} else {
		locator = maxmind
		defer func() {
			if err := maxmind.Close(); err != nil {
				logger.Warn("geoip close error", zap.Error(err))
			}
		}()
	}
	countries := geo.NewResolver(locator,
		geo.WithSimulatedCountry(cfg.Geo.SimulateCountry),
		geo.WithLocalIP(cfg.Geo.LocalIP),
		geo.WithTimeout(cfg.Geo.LookupTimeout),
		geo.WithLogger(logger.Named("geo")),
	)

	pppClient, err := ppp.NewClient(cfg.PPP.Endpoint,
		ppp.WithTimeout(cfg.PPP.Timeout),
		ppp.WithLogger(logger.Named("ppp")),
	)
	if err != nil {
		logger.Fatal("failed to initialise ppp client", zap.Error(err))
	}

	quoteService, err := services.NewPriceQuoteService(services.PriceQuoteServiceDeps{
		Countries: countries,
		Factors:   pppClient,
		Logger:    observability.EventLogger(logger.Named("pricing"), "pricing event"),
	})
	if err != nil {
		logger.Fatal("failed to initialise price quote service", zap.Error(err))
	}

	if strings.TrimSpace(cfg.PSP.StripeAPIKey) == "" {
		logger.Fatal("stripe api key is required for checkout")
	}
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: payments.StripeLogger(observability.EventLogger(logger.Named("payments"), "stripe event")),
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(map[string]payments.Provider{
		"stripe": stripeProvider,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Quotes:   quoteService,
		Payments: paymentManager,
		Product: services.Product{
			Name:      cfg.Pricing.ProductName,
			BasePrice: cfg.Pricing.BasePrice,
			Currency:  cfg.Pricing.Currency,
		},
		Domain: cfg.Site.Domain,
		Logger: observability.EventLogger(logger.Named("checkout"), "checkout event"),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout service", zap.Error(err))
	}

	systemService, err := newSystemService(pppClient, maxmind, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	renderer, err := site.NewRenderer(site.Config{
		Meta: site.Meta{
			Title:         cfg.Site.Title,
			Author:        "Sebastien Castiel",
			TwitterAuthor: "@scastiel",
			TwitterSite:   "@scastiel",
			URL:           cfg.Site.Domain,
			ImageURL:      cfg.Site.ImageURL,
		},
		ProductName:     cfg.Pricing.ProductName,
		Currency:        cfg.Pricing.Currency,
		StripePublicKey: cfg.PSP.StripePublicKey,
	})
	if err != nil {
		logger.Fatal("failed to initialise landing page", zap.Error(err))
	}

	projectID := strings.TrimSpace(envValues["API_SECRET_DEFAULT_PROJECT_ID"])
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthOpts := []handlers.HealthOption{handlers.WithHealthBuildInfo(buildInfo)}
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}
	healthHandlers := handlers.NewHealthHandlers(healthOpts...)
	pricingHandlers := handlers.NewPricingHandlers(quoteService, checkoutService, cfg.Pricing.BasePrice,
		handlers.WithCheckoutRateLimit(checkoutRateLimit, time.Minute, nil),
	)
	homeHandlers := handlers.NewHomeHandlers(quoteService, renderer, cfg.Pricing.BasePrice)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithSiteRoutes(homeHandlers.Routes),
		handlers.WithPricingRoutes(pricingHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("parity coffee listening",
			zap.String("environment", buildInfo.Environment),
			zap.Bool("simulatedCountry", cfg.Geo.SimulateCountry != ""),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSystemService(pinger *ppp.Client, maxmind *geo.MaxMind, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if pinger != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "ppp",
			Timeout: 3 * time.Second,
			Check:   pinger.Ping,
		})
	}
	checks = append(checks, repositories.DependencyCheck{
		Name: "geoip",
		Check: func(context.Context) error {
			if maxmind == nil {
				return errors.New("geoip database not loaded")
			}
			if maxmind.DatabaseType() == "" {
				return errors.New("geoip database has no type metadata")
			}
			return nil
		},
	})

	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Build:            build,
	})
}

func newSecretFetcher(logger *zap.Logger, env map[string]string) *secrets.Fetcher {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(lookup("API_SECRET_DEFAULT_PROJECT_ID")),
	}
	if path := lookup("API_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	return secrets.NewFetcher(opts...)
}
