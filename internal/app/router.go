package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/appstate"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/cart"
	"github.com/noah-isme/storefront-checkout/internal/catalog"
	"github.com/noah-isme/storefront-checkout/internal/checkout"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/health"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/ratelimit"
	"github.com/noah-isme/storefront-checkout/internal/returns"
	"github.com/noah-isme/storefront-checkout/internal/security"
	"github.com/noah-isme/storefront-checkout/internal/shipping"
)

// RouterOptions toggles the operational surface of the router.
type RouterOptions struct {
	Tracing     bool
	HTTPMetrics *obs.HTTPMetrics
	// Pprof is mounted under /debug/pprof when set.
	Pprof        http.Handler
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// NewRouter mounts every HTTP endpoint on a chi router.
func NewRouter(d *Dependencies, opts RouterOptions) http.Handler {
	cfg := d.Config
	log := d.Logger

	authMiddleware := auth.Middleware{Service: d.Auth}
	authHandler := &auth.Handler{Service: d.Auth, EchoOTP: cfg.AppEnv == "development"}
	catalogHandler := catalog.Handler{Svc: d.Catalog}
	cartHandler := &cart.Handler{Svc: d.Cart}
	addressHandler := &address.Handler{Svc: d.Addresses}
	couponHandler := &coupon.Handler{Svc: d.Coupons}
	shippingHandler := &shipping.Handler{Svc: d.Shipping}
	orderHandler := order.Handler{Svc: d.Orders}
	returnsHandler := returns.Handler{Svc: d.Returns}
	stateHandler := appstate.Handler{Loader: d.AppState}
	checkoutHandler := checkout.Handler{Svc: d.Checkout}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}

	limit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: d.Redis, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.ByUserOrIP("api"),
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) { log.Warn().Err(err).Msg("rate limiter unavailable") },
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: log}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{
		Enable:     true,
		EnableHSTS: cfg.SecurityHeadersHSTS,
		HSTSMaxAge: 31536000,
		NoStore:    true,
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	if opts.Pprof != nil {
		r.Mount("/debug/pprof", opts.Pprof)
	}

	healthHandler := health.Handler{
		Checker:      d,
		DBTimeout:    opts.DBTimeout,
		RedisTimeout: opts.RedisTimeout,
		Breakers:     d.Breakers,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.Authenticate)
		v.Use(limit.Middleware)

		v.Route("/products", catalogHandler.Routes)
		v.Get("/coupons", couponHandler.List)
		v.Post("/coupons/validate", couponHandler.Validate)
		v.Post("/shipping/serviceability", shippingHandler.Serviceability)
		v.Get("/me/state", stateHandler.Get)
		v.Get("/return-reasons", returnsHandler.Reasons)

		v.Route("/auth", func(a chi.Router) {
			a.Post("/otp/send", authHandler.SendOTP)
			a.Post("/otp/verify", authHandler.VerifyOTP)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)
			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
				protected.Patch("/me", authHandler.UpdateProfile)
			})
		})

		v.Group(func(authR chi.Router) {
			authR.Use(authMiddleware.RequireAuth)

			authR.Route("/cart", func(c chi.Router) {
				c.Get("/", cartHandler.Get)
				c.Get("/count", cartHandler.Count)
				c.With(idem.Middleware).Post("/items", cartHandler.AddItem)
				c.Patch("/items/{id}", cartHandler.UpdateItem)
				c.Delete("/items/{id}", cartHandler.RemoveItem)
				c.Delete("/", cartHandler.Clear)
			})

			authR.Route("/addresses", func(a chi.Router) {
				a.Get("/", addressHandler.List)
				a.Post("/", addressHandler.Create)
				a.Get("/default", addressHandler.Default)
				a.Route("/{id}", func(child chi.Router) {
					child.Get("/", addressHandler.Get)
					child.Put("/", addressHandler.Update)
					child.Delete("/", addressHandler.Delete)
					child.Post("/default", addressHandler.SetDefault)
				})
			})

			authR.Route("/checkout", func(c chi.Router) {
				c.Use(idem.Middleware)
				checkoutHandler.Routes(c)
			})

			authR.Get("/orders", orderHandler.List)
			authR.Get("/orders/{id}", orderHandler.Get)

			authR.Route("/returns", func(rr chi.Router) {
				rr.Get("/", returnsHandler.List)
				rr.With(idem.Middleware).Post("/", returnsHandler.Create)
				rr.Get("/eligibility/{id}", returnsHandler.Eligibility)
				rr.Post("/{id}/cancel", returnsHandler.Cancel)
			})
		})

		if d.Sandbox != nil {
			sandbox := &payment.SandboxHandler{Sandbox: d.Sandbox}
			v.With(authMiddleware.RequireAuth).Post("/payments/sandbox/pay", sandbox.Pay)
		}
	})

	return r
}
