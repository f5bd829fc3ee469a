package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSubmissions counts order submissions by payment method and outcome.
	CheckoutSubmissions *prometheus.CounterVec
	// PaymentVerifications counts gateway verification outcomes.
	PaymentVerifications *prometheus.CounterVec
	// GatewayCallbacks counts gateway callback results by kind (success, cancelled, failed, stale).
	GatewayCallbacks *prometheus.CounterVec
	// CouponValidations counts coupon validation outcomes by reason.
	CouponValidations *prometheus.CounterVec
	// ServiceabilityChecks counts serviceability lookups by outcome.
	ServiceabilityChecks *prometheus.CounterVec
	// OTPRequests counts OTP send/verify outcomes.
	OTPRequests *prometheus.CounterVec
	// ReturnRequests counts return request operations by outcome.
	ReturnRequests *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSubmissions = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_submissions_total",
			Help:      "Checkout submissions by payment method and result.",
		}, []string{"method", "result"}))
		PaymentVerifications = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment verification outcomes.",
		}, []string{"result"}))
		GatewayCallbacks = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_gateway_callbacks_total",
			Help:      "Gateway callback results received from the hosted checkout.",
		}, []string{"kind"}))
		CouponValidations = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_validations_total",
			Help:      "Coupon validation outcomes.",
		}, []string{"result"}))
		ServiceabilityChecks = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_serviceability_checks_total",
			Help:      "Serviceability lookups by outcome.",
		}, []string{"result"}))
		OTPRequests = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_otp_total",
			Help:      "OTP operations by step and result.",
		}, []string{"step", "result"}))
		ReturnRequests = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "return_requests_total",
			Help:      "Return request operations by outcome.",
		}, []string{"op", "result"}))
	})
}

// Inc increments vec for labels when the collector has been registered.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}
