package payment

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	latencyOnce sync.Once
	latency     metric.Float64Histogram
)

func gatewayLatency() metric.Float64Histogram {
	latencyOnce.Do(func() {
		h, err := otel.Meter("github.com/noah-isme/storefront-checkout/internal/payment").Float64Histogram(
			"payment.gateway.duration",
			metric.WithUnit("ms"),
			metric.WithDescription("Latency of payment gateway calls."),
		)
		if err == nil {
			latency = h
		}
	})
	return latency
}

func recordLatency(ctx context.Context, op string, start time.Time, err error) {
	h := gatewayLatency()
	if h == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("op", op), attribute.String("outcome", outcome)))
}
