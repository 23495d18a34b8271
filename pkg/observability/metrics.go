// Package observability provides OpenTelemetry metrics for the treasury
// engine. It implements the engine's Metrics hook; the host decides which
// meter provider (OTLP, Prometheus bridge, noop) backs the global meter.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Mindburn-Labs/treasury"

// Metrics records engine activity on the global meter provider.
type Metrics struct {
	contributions metric.Int64Counter
	contributed   metric.Int64Counter
	proposals     metric.Int64Counter
	approvals     metric.Int64Counter
	executions    metric.Int64Counter
	disbursed     metric.Int64Counter
	poolBalance   metric.Int64Gauge
}

// NewMetrics registers the treasury instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	var err error
	if m.contributions, err = meter.Int64Counter("treasury.contributions",
		metric.WithDescription("Number of accepted contributions")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if m.contributed, err = meter.Int64Counter("treasury.contributed.units",
		metric.WithDescription("Total units contributed to the pool")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if m.proposals, err = meter.Int64Counter("treasury.withdrawals.proposed",
		metric.WithDescription("Number of withdrawal proposals")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if m.approvals, err = meter.Int64Counter("treasury.withdrawals.approved",
		metric.WithDescription("Number of withdrawal approvals")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if m.executions, err = meter.Int64Counter("treasury.withdrawals.executed",
		metric.WithDescription("Number of executed withdrawals")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if m.disbursed, err = meter.Int64Counter("treasury.disbursed.units",
		metric.WithDescription("Total units disbursed out of custody")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	if m.poolBalance, err = meter.Int64Gauge("treasury.pool.balance",
		metric.WithDescription("Current pooled balance")); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	return m, nil
}

func (m *Metrics) RecordContribution(ctx context.Context, amount uint64) {
	m.contributions.Add(ctx, 1)
	m.contributed.Add(ctx, clampInt64(amount))
}

func (m *Metrics) RecordProposal(ctx context.Context) {
	m.proposals.Add(ctx, 1)
}

func (m *Metrics) RecordApproval(ctx context.Context) {
	m.approvals.Add(ctx, 1)
}

func (m *Metrics) RecordExecution(ctx context.Context, amount uint64) {
	m.executions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "settled")))
	m.disbursed.Add(ctx, clampInt64(amount))
}

func (m *Metrics) SetPoolBalance(ctx context.Context, balance uint64) {
	m.poolBalance.Record(ctx, clampInt64(balance))
}

// clampInt64 caps uint64 amounts at the instrument's signed range.
func clampInt64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}
