package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/appstate"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/cart"
	"github.com/noah-isme/storefront-checkout/internal/catalog"
	"github.com/noah-isme/storefront-checkout/internal/checkout"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/config"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/lock"
	"github.com/noah-isme/storefront-checkout/internal/notify"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/ratelimit"
	"github.com/noah-isme/storefront-checkout/internal/resilience"
	"github.com/noah-isme/storefront-checkout/internal/returns"
	"github.com/noah-isme/storefront-checkout/internal/shipping"
)

// NotifyQueue is the asynq queue carrying customer notifications.
const NotifyQueue = "notifications"

// Dependencies holds the wired services shared by the HTTP layer.
type Dependencies struct {
	Config   *config.Config
	Logger   zerolog.Logger
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Tasks    *asynq.Client
	Breakers map[string]*resilience.Breaker

	// Sandbox is set only when the sandbox payment provider is active.
	Sandbox *payment.Sandbox

	Auth      *auth.Service
	Catalog   *catalog.Service
	Cart      *cart.Service
	Addresses *address.Service
	Coupons   *coupon.Service
	Shipping  *shipping.Service
	Orders    *order.Service
	Returns   *returns.Service
	AppState  *appstate.Loader
	Checkout  *checkout.Service
	Events    *events.Bus
}

// Build connects to Postgres and Redis and assembles every service.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL, obs.PGXTracer{})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	rdb, err := connectRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		pool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse redis uri for tasks: %w", err)
	}

	d := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		DB:       pool,
		Redis:    rdb,
		Tasks:    asynq.NewClient(redisOpt),
		Breakers: map[string]*resilience.Breaker{},
	}
	if err := d.wire(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func connectRedis(ctx context.Context, url string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (d *Dependencies) wire() error {
	cfg := d.Config
	obs.MustRegisterDomainMetrics("storefront", nil)

	policy := pricing.Policy{
		DeliveryFee:       cfg.DeliveryFee,
		FreeDeliveryAbove: cfg.FreeDeliveryAbove,
		CODFee:            cfg.CODFee,
	}

	quota, err := ratelimit.NewQuota(d.Redis, "auth:otp:quota", cfg.OTPSendRate)
	if err != nil {
		return fmt.Errorf("otp quota: %w", err)
	}
	d.Auth, err = auth.NewService(auth.Config{
		Store:           auth.PGStore{DB: d.DB},
		Redis:           d.Redis,
		Quota:           quota,
		SMS:             common.LogSMSSender{Logger: d.Logger},
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		Issuer:          cfg.JWTIssuer,
		Audience:        cfg.JWTAudience,
		OTPLength:       cfg.OTPLength,
		OTPTTL:          cfg.OTPTTL,
		OTPMaxAttempts:  cfg.OTPMaxAttempts,
		AppName:         cfg.MerchantName,
		Logger:          d.Logger.With().Str("component", "auth").Logger(),
	})
	if err != nil {
		return err
	}

	d.Catalog, err = catalog.NewService(catalog.ServiceConfig{
		Store: catalog.PGStore{DB: d.DB},
		Cache: cache.New(d.Redis, cfg.CatalogCacheTTL),
	})
	if err != nil {
		return err
	}

	d.Cart = &cart.Service{
		Store:   cart.PGStore{DB: d.DB},
		Catalog: d.Catalog,
		Policy:  policy,
		Logger:  d.Logger.With().Str("component", "cart").Logger(),
	}
	d.Addresses = &address.Service{
		Store:  address.PGStore{DB: d.DB, Begin: d.DB},
		Logger: d.Logger.With().Str("component", "address").Logger(),
	}
	d.Coupons = &coupon.Service{
		Store:       coupon.PGStore{DB: d.DB},
		Validations: obs.CouponValidations,
	}
	d.Orders = &order.Service{Store: order.PGStore{DB: d.DB, Begin: d.DB}}
	d.AppState = &appstate.Loader{Cart: d.Cart, Addresses: d.Addresses}

	shippingClient, err := d.shippingClient()
	if err != nil {
		return err
	}
	d.Shipping = &shipping.Service{
		Client: shippingClient,
		Cache:  cache.New(d.Redis, cfg.ServiceabilityCacheTTL),
		Defaults: shipping.Defaults{
			WeightKg:    cfg.DefaultPackageWeightKg,
			DimensionCm: cfg.DefaultPackageDimensionC,
		},
		Logger: d.Logger.With().Str("component", "shipping").Logger(),
	}

	gateway, err := d.paymentGateway()
	if err != nil {
		return err
	}

	d.Events = &events.Bus{
		Store: events.PGStore{DB: d.DB},
		Notifiers: []events.Notifier{notify.TaskNotifier{
			Client:   d.Tasks,
			Queue:    NotifyQueue,
			MaxRetry: 5,
			Topics: map[string]bool{
				events.TopicOrderPlaced:     cfg.NotifyOnOrderPlaced,
				events.TopicPaymentVerified: cfg.NotifyOnPaymentState,
				events.TopicPaymentFailed:   cfg.NotifyOnPaymentState,
			},
		}},
	}

	d.Returns = &returns.Service{
		Store:    returns.PGStore{DB: d.DB},
		Items:    d.Orders,
		Contacts: d.Auth,
		Events:   d.Events,
		Window:   cfg.ReturnWindow,
		Logger:   d.Logger.With().Str("component", "returns").Logger(),
		Counter:  obs.ReturnRequests,
	}

	d.Checkout = &checkout.Service{
		Sessions: checkout.RedisStore{R: d.Redis, TTL: cfg.CheckoutSessionTTL},
		Locks: lock.Locker{
			R:            d.Redis,
			Prefix:       "lock:",
			RetryBackoff: 50 * time.Millisecond,
			MaxWait:      cfg.CheckoutLockTTL,
		},
		Addresses:      d.Addresses,
		Cart:           d.Cart,
		Catalog:        d.Catalog,
		Serviceability: d.Shipping,
		Coupons:        d.Coupons,
		Orders:         d.Orders,
		Gateway:        gateway,
		Contacts:       d.Auth,
		Events:         d.Events,
		AppState:       d.AppState,
		Policy:         policy,
		Currency:       cfg.Currency,
		GatewayKey:     cfg.PaymentKeyID,
		MerchantName:   cfg.MerchantName,
		LockTTL:        cfg.CheckoutLockTTL,
		SubmitTimeout:  cfg.CheckoutSubmitTimeout,
		Logger:         d.Logger.With().Str("component", "checkout").Logger(),
		Submissions:    obs.CheckoutSubmissions,
		Callbacks:      obs.GatewayCallbacks,
		Verifies:       obs.PaymentVerifications,
	}
	return nil
}

func (d *Dependencies) breaker(target string) *resilience.Breaker {
	cfg := d.Config
	b := resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget(target).
		WithLogger(d.Logger)
	d.Breakers[target] = b
	return b
}

func (d *Dependencies) httpClient(target string, maxAttempts int) resilience.HTTPClient {
	cfg := d.Config
	return resilience.HTTPClient{
		Client:      resilience.NewInstrumentedClient(cfg.OutboundTimeout),
		Breaker:     d.breaker(target),
		BaseBackoff: cfg.RetryBase,
		MaxAttempts: maxAttempts,
		Jitter:      cfg.RetryJitterPercent,
		Timeout:     cfg.OutboundTimeout,
		Target:      target,
		Logger:      &d.Logger,
	}
}

func (d *Dependencies) shippingClient() (shipping.Client, error) {
	switch d.Config.ShippingProvider {
	case "mock":
		return shipping.MockClient{
			Unserviceable: map[string]bool{"799999": true},
			NoCOD:         map[string]bool{"110001": true},
		}, nil
	case "function":
		return shipping.FunctionClient{
			HTTP:   d.httpClient("serviceability", d.Config.RetryMaxAttempts),
			URL:    d.Config.ShippingServiceURL,
			APIKey: d.Config.ShippingAPIKey,
		}, nil
	default:
		return nil, fmt.Errorf("unknown shipping provider %q", d.Config.ShippingProvider)
	}
}

func (d *Dependencies) paymentGateway() (payment.Gateway, error) {
	switch d.Config.PaymentProvider {
	case "sandbox":
		secret := d.Config.PaymentKeySecret
		if secret == "" {
			secret = d.Config.JWTSecret
		}
		d.Sandbox = payment.NewSandbox(secret)
		if d.Config.PaymentKeyID == "" {
			d.Config.PaymentKeyID = "sandbox_key"
		}
		return d.Sandbox, nil
	case "function":
		return payment.FunctionGateway{
			HTTP:           d.httpClient("payment", 1),
			CreateOrderURL: d.Config.PaymentCreateOrderURL,
			VerifyURL:      d.Config.PaymentVerifyURL,
			Token:          d.Config.PaymentFunctionToken,
		}, nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", d.Config.PaymentProvider)
	}
}

// PingDB implements health.Checker.
func (d *Dependencies) PingDB(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.DB.Ping(ctx)
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}

// Close releases pooled connections.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Tasks != nil {
		errs = append(errs, d.Tasks.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}
