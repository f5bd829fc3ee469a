package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config is the process configuration, read from the environment (and a
// .env file in development).
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	MigrateOnStart     bool

	OTPLength      int
	OTPTTL         time.Duration
	OTPMaxAttempts int
	OTPSendRate    string

	Currency          string
	DeliveryFee       decimal.Decimal
	FreeDeliveryAbove decimal.Decimal
	CODFee            decimal.Decimal

	ShippingProvider         string
	ShippingServiceURL       string
	ShippingAPIKey           string
	ServiceabilityCacheTTL   time.Duration
	DefaultPackageWeightKg   float64
	DefaultPackageDimensionC float64

	PaymentProvider       string
	PaymentKeyID          string
	PaymentKeySecret      string
	PaymentCreateOrderURL string
	PaymentVerifyURL      string
	PaymentFunctionToken  string
	MerchantName          string

	CheckoutSessionTTL    time.Duration
	CheckoutLockTTL       time.Duration
	CheckoutSubmitTimeout time.Duration

	ReturnWindow    time.Duration
	CatalogCacheTTL time.Duration
	IdempotencyTTL  time.Duration

	OutboundTimeout      time.Duration
	RetryBase            time.Duration
	RetryMaxAttempts     int
	RetryJitterPercent   float64
	CircuitMinRequests   int
	CircuitFailureRatio  float64
	CircuitOpenFor       time.Duration
	RateLimitWindow      time.Duration
	RateLimitMax         int
	BodyLimitBytes       int64
	WorkerConcurrency    int
	SecurityHeadersHSTS  bool
	NotifyOnOrderPlaced  bool
	NotifyOnPaymentState bool
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return build(source{k})
}

// FromMap builds a Config from explicit key/value pairs, ignoring the process
// environment.
func FromMap(values map[string]string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range values {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
	}
	return build(source{k})
}

func build(src source) (*Config, error) {
	cfg := &Config{
		AppEnv:             src.str("APP_ENV", "development"),
		Port:               src.str("PORT", "8080"),
		DatabaseURL:        src.str("DATABASE_URL", ""),
		RedisURL:           src.str("REDIS_URL", ""),
		JWTSecret:          src.str("JWT_SECRET", ""),
		JWTIssuer:          src.str("JWT_ISSUER", "storefront-checkout"),
		JWTAudience:        src.str("JWT_AUDIENCE", "storefront-app"),
		CORSAllowedOrigins: src.list("CORS_ALLOWED_ORIGINS"),
		AccessTokenTTL:     src.dur("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    src.dur("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		MigrateOnStart:     src.flag("MIGRATE_ON_START", false),

		OTPLength:      src.integer("OTP_LENGTH", 6),
		OTPTTL:         src.dur("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts: src.integer("OTP_MAX_ATTEMPTS", 5),
		OTPSendRate:    src.str("OTP_SEND_RATE", "5-H"),

		Currency:          strings.ToUpper(src.str("CURRENCY", "INR")),
		DeliveryFee:       src.money("DELIVERY_FEE", 40),
		FreeDeliveryAbove: src.money("FREE_DELIVERY_ABOVE", 500),
		CODFee:            src.money("COD_FEE", 50),

		ShippingProvider:         strings.ToLower(src.str("SHIPPING_PROVIDER", "mock")),
		ShippingServiceURL:       src.str("SHIPPING_SERVICEABILITY_URL", ""),
		ShippingAPIKey:           src.str("SHIPPING_API_KEY", ""),
		ServiceabilityCacheTTL:   src.dur("SERVICEABILITY_CACHE_TTL", 10*time.Minute),
		DefaultPackageWeightKg:   src.floating("DEFAULT_PACKAGE_WEIGHT_KG", 0.5),
		DefaultPackageDimensionC: src.floating("DEFAULT_PACKAGE_DIMENSION_CM", 10),

		PaymentProvider:       strings.ToLower(src.str("PAYMENT_PROVIDER", "sandbox")),
		PaymentKeyID:          src.str("PAYMENT_KEY_ID", ""),
		PaymentKeySecret:      src.str("PAYMENT_KEY_SECRET", ""),
		PaymentCreateOrderURL: src.str("PAYMENT_CREATE_ORDER_URL", ""),
		PaymentVerifyURL:      src.str("PAYMENT_VERIFY_URL", ""),
		PaymentFunctionToken:  src.str("PAYMENT_FUNCTION_TOKEN", ""),
		MerchantName:          src.str("MERCHANT_NAME", "Storefront"),

		CheckoutSessionTTL:    src.dur("CHECKOUT_SESSION_TTL", 30*time.Minute),
		CheckoutLockTTL:       src.dur("CHECKOUT_LOCK_TTL", 10*time.Second),
		CheckoutSubmitTimeout: src.dur("CHECKOUT_SUBMIT_TIMEOUT", 30*time.Second),

		ReturnWindow:    src.dur("RETURN_WINDOW", 7*24*time.Hour),
		CatalogCacheTTL: src.dur("CATALOG_CACHE_TTL", time.Minute),
		IdempotencyTTL:  src.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OutboundTimeout:      src.dur("OUTBOUND_TIMEOUT", 5*time.Second),
		RetryBase:            src.dur("RETRY_BASE", 200*time.Millisecond),
		RetryMaxAttempts:     src.integer("RETRY_MAX_ATTEMPTS", 2),
		RetryJitterPercent:   src.floating("RETRY_JITTER_PERCENT", 0.2),
		CircuitMinRequests:   src.integer("CIRCUIT_MIN_REQUESTS", 10),
		CircuitFailureRatio:  src.floating("CIRCUIT_FAILURE_RATIO", 0.5),
		CircuitOpenFor:       src.dur("CIRCUIT_OPEN_FOR", 30*time.Second),
		RateLimitWindow:      src.dur("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:         src.integer("RATE_LIMIT_MAX", 120),
		BodyLimitBytes:       int64(src.integer("BODY_LIMIT_BYTES", 1<<20)),
		WorkerConcurrency:    src.integer("WORKER_CONCURRENCY", 5),
		SecurityHeadersHSTS:  src.flag("SECURITY_HSTS", false),
		NotifyOnOrderPlaced:  src.flag("NOTIFY_ORDER_PLACED", true),
		NotifyOnPaymentState: src.flag("NOTIFY_PAYMENT_STATE", true),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate reports every missing setting at once.
func (c *Config) validate() error {
	var errs []error
	required := func(name, v string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}
	required("DATABASE_URL", c.DatabaseURL)
	required("REDIS_URL", c.RedisURL)
	required("JWT_SECRET", c.JWTSecret)
	switch c.PaymentProvider {
	case "sandbox":
	case "function":
		required("PAYMENT_CREATE_ORDER_URL", c.PaymentCreateOrderURL)
		required("PAYMENT_VERIFY_URL", c.PaymentVerifyURL)
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER %q is not one of sandbox, function", c.PaymentProvider))
	}
	switch c.ShippingProvider {
	case "mock":
	case "function":
		required("SHIPPING_SERVICEABILITY_URL", c.ShippingServiceURL)
	default:
		errs = append(errs, fmt.Errorf("SHIPPING_PROVIDER %q is not one of mock, function", c.ShippingProvider))
	}
	return errors.Join(errs...)
}

// HTTPAddr is the listen address; PORT may be given as "8080" or ":8080".
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// source reads typed values out of koanf. Unparseable values fall back to the
// default rather than failing startup.
type source struct {
	k *koanf.Koanf
}

func (s source) raw(key string) string {
	return strings.TrimSpace(s.k.String(key))
}

func (s source) str(key, fallback string) string {
	if v := s.raw(key); v != "" {
		return v
	}
	return fallback
}

func (s source) list(key string) []string {
	var out []string
	for _, part := range strings.Split(s.raw(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s source) dur(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s.raw(key)); err == nil {
		return d
	}
	return fallback
}

func (s source) integer(key string, fallback int) int {
	if n, err := strconv.Atoi(s.raw(key)); err == nil {
		return n
	}
	return fallback
}

func (s source) floating(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(s.raw(key), 64); err == nil {
		return f
	}
	return fallback
}

func (s source) flag(key string, fallback bool) bool {
	switch strings.ToLower(s.raw(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

// money rejects negative amounts along with unparseable ones.
func (s source) money(key string, fallback int64) decimal.Decimal {
	d, err := decimal.NewFromString(s.raw(key))
	if err != nil || d.IsNegative() {
		return decimal.NewFromInt(fallback)
	}
	return d
}
