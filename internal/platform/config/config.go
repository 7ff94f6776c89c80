package config

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultBasePrice           = 400
	defaultCurrency            = "usd"
	defaultProductName         = "One coffee"
	defaultPPPEndpoint         = "https://api.purchasing-power-parity.com/"
	defaultPPPTimeout          = 3 * time.Second
	defaultGeoDatabasePath     = "GeoLite2-Country.mmdb"
	defaultGeoLookupTimeout    = 500 * time.Millisecond
	defaultSiteTitle           = "Parity Coffee"
	defaultSecurityEnvironment = "local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server   ServerConfig
	Pricing  PricingConfig
	PPP      PPPConfig
	Geo      GeoConfig
	Site     SiteConfig
	PSP      PSPConfig
	Security SecurityConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PricingConfig describes the single product being sold.
type PricingConfig struct {
	// BasePrice is expressed in minor currency units.
	BasePrice   int64
	Currency    string
	ProductName string
}

// PPPConfig points at the purchasing power parity data service.
type PPPConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// GeoConfig controls client country resolution.
type GeoConfig struct {
	SimulateCountry string
	LocalIP         string
	DatabasePath    string
	LookupTimeout   time.Duration
}

// SiteConfig holds public facing settings for the landing page and checkout redirects.
type SiteConfig struct {
	Domain   string
	Title    string
	ImageURL string
}

// PSPConfig collects payment provider credentials.
type PSPConfig struct {
	StripeAPIKey    string
	StripePublicKey string
}

// SecurityConfig names the deployment environment.
type SecurityConfig struct {
	Environment string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns the hashed secret identifiers, safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks the provided config field names (e.g. "PSP.StripeAPIKey")
// as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// EnvironmentValues returns the effective key/value environment map after applying the same
// precedence rules as Load (dotenv < OS env < explicit env map). Callers use it to build
// the secret fetcher before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	for key, value := range dotEnvValues {
		values[key] = value
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups. Keys used by the first
// deployment of the site (DOMAIN, LOCAL_IP, STRIPE_SECRET_KEY, ...) are honoured when the
// API_ prefixed key is absent.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if options.envMap != nil {
				if value, ok := options.envMap[key]; ok && value != "" {
					return value, true
				}
			}
			if options.useSystemEnv {
				if value, ok := os.LookupEnv(key); ok && value != "" {
					return value, true
				}
			}
			if value, ok := dotEnvValues[key]; ok && value != "" {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, defaultPort, "API_SERVER_PORT", "PORT"),
			ReadTimeout:  durationWithDefault(lookup, defaultReadTimeout, "API_SERVER_READ_TIMEOUT"),
			WriteTimeout: durationWithDefault(lookup, defaultWriteTimeout, "API_SERVER_WRITE_TIMEOUT"),
			IdleTimeout:  durationWithDefault(lookup, defaultIdleTimeout, "API_SERVER_IDLE_TIMEOUT"),
		},
		Pricing: PricingConfig{
			BasePrice:   int64WithDefault(lookup, defaultBasePrice, "API_PRICING_BASE_PRICE"),
			Currency:    strings.ToLower(stringWithDefault(lookup, defaultCurrency, "API_PRICING_CURRENCY")),
			ProductName: stringWithDefault(lookup, defaultProductName, "API_PRICING_PRODUCT_NAME"),
		},
		PPP: PPPConfig{
			Endpoint: stringWithDefault(lookup, defaultPPPEndpoint, "API_PPP_ENDPOINT"),
			Timeout:  durationWithDefault(lookup, defaultPPPTimeout, "API_PPP_TIMEOUT"),
		},
		Geo: GeoConfig{
			SimulateCountry: strings.TrimSpace(stringWithDefault(lookup, "", "API_GEO_SIMULATE_COUNTRY", "SIMULATE_COUNTRY")),
			LocalIP:         strings.TrimSpace(stringWithDefault(lookup, "", "API_GEO_LOCAL_IP", "LOCAL_IP")),
			DatabasePath:    stringWithDefault(lookup, defaultGeoDatabasePath, "API_GEO_DATABASE_PATH"),
			LookupTimeout:   durationWithDefault(lookup, defaultGeoLookupTimeout, "API_GEO_LOOKUP_TIMEOUT"),
		},
		Site: SiteConfig{
			Domain:   strings.TrimSpace(stringWithDefault(lookup, "", "API_SITE_DOMAIN", "DOMAIN")),
			Title:    stringWithDefault(lookup, defaultSiteTitle, "API_SITE_TITLE"),
			ImageURL: stringWithDefault(lookup, "", "API_SITE_IMAGE_URL"),
		},
		PSP: PSPConfig{
			StripeAPIKey:    stringWithDefault(lookup, "", "API_PSP_STRIPE_API_KEY", "STRIPE_SECRET_KEY"),
			StripePublicKey: stringWithDefault(lookup, "", "API_PSP_STRIPE_PUBLIC_KEY", "NEXT_PUBLIC_STRIPE_PUBLIC_KEY"),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(stringWithDefault(lookup, defaultSecurityEnvironment, "API_SECURITY_ENVIRONMENT")),
		},
	}

	resolvedSecrets := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"PSP.StripeAPIKey", &cfg.PSP.StripeAPIKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
		resolvedSecrets[target.name] = strings.TrimSpace(resolved)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolvedSecrets); missing != nil {
		return Config{}, missing
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Pricing.BasePrice <= 0 {
		missing = append(missing, "Pricing.BasePrice")
	}
	if len(cfg.Pricing.Currency) != 3 {
		missing = append(missing, "Pricing.Currency")
	}
	if u, err := url.Parse(cfg.PPP.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		missing = append(missing, "PPP.Endpoint")
	}
	if cfg.PPP.Timeout <= 0 {
		missing = append(missing, "PPP.Timeout")
	}
	if cfg.Geo.LookupTimeout <= 0 {
		missing = append(missing, "Geo.LookupTimeout")
	}
	if cfg.Site.Domain == "" {
		missing = append(missing, "Site.Domain")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	missing := make([]missingSecret, 0, len(required))
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if resolved[trimmed] != "" {
			continue
		}
		missing = append(missing, missingSecret{name: trimmed, redacted: redactSecretName(trimmed)})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		values[key] = strings.Trim(strings.TrimSpace(value), "\"'")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

type lookupFunc func(keys ...string) (string, bool)

func stringWithDefault(lookup lookupFunc, fallback string, keys ...string) string {
	if value, ok := lookup(keys...); ok {
		return value
	}
	return fallback
}

func durationWithDefault(lookup lookupFunc, fallback time.Duration, keys ...string) time.Duration {
	if value, ok := lookup(keys...); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func int64WithDefault(lookup lookupFunc, fallback int64, keys ...string) int64 {
	if value, ok := lookup(keys...); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
