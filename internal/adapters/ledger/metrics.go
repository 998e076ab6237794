package ledger

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ledgerMetrics struct {
	opDuration metric.Float64Histogram
	opErrors   metric.Int64Counter
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetricsInst *ledgerMetrics
)

func ensureLedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		meter := otel.Meter("github.com/eswasthya/portal/backend/ledger")
		duration, err := meter.Float64Histogram(
			"ledger.operation.duration",
			metric.WithDescription("Ledger operation duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		errs, err := meter.Int64Counter(
			"ledger.operation.errors",
			metric.WithDescription("Number of failed ledger operations"),
		)
		if err != nil {
			return
		}
		ledgerMetricsInst = &ledgerMetrics{opDuration: duration, opErrors: errs}
	})
	return ledgerMetricsInst
}

func recordLedgerMetric(ctx context.Context, backend, operation string, duration time.Duration, err error) {
	m := ensureLedgerMetrics()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("ledger.backend", backend),
		attribute.String("ledger.operation", operation),
	)
	m.opDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.opErrors.Add(ctx, 1, attrs)
	}
}
