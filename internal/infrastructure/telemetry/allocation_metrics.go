// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AllocationMetrics provides engine metrics for the allocation book.
// It tracks payment activity, capital call scheduling, invariant
// rejections, lock contention and how far the ledgers have drifted.
type AllocationMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	paymentTotal       *Counter
	callScheduledTotal *Counter
	callCompletedTotal *Counter
	rejectionTotal     *Counter
	lockRetryTotal     *Counter
	calendarCacheTotal *Counter

	// Histogram metrics
	paymentAmount  *Histogram
	batchChunkSize *Histogram

	// Gauge metrics (point-in-time values)
	ledgerDriftCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	driftProvider LedgerDriftProvider
}

// LedgerDriftProvider reports how many allocations currently fail the
// ledger re-derivation check. The interface keeps the telemetry layer from
// depending on the integrity service directly.
type LedgerDriftProvider interface {
	CountDivergentAllocations(ctx context.Context) (int64, error)
}

// LedgerDriftProviderFunc adapts a function to the LedgerDriftProvider interface.
type LedgerDriftProviderFunc func(ctx context.Context) (int64, error)

// CountDivergentAllocations calls the wrapped function.
func (f LedgerDriftProviderFunc) CountDivergentAllocations(ctx context.Context) (int64, error) {
	return f(ctx)
}

// AllocationMetricsConfig holds configuration for allocation metrics.
type AllocationMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	DriftProvider   LedgerDriftProvider
}

// NewAllocationMetrics creates a new AllocationMetrics instance.
func NewAllocationMetrics(cfg AllocationMetricsConfig) (*AllocationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	am := &AllocationMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		driftProvider: cfg.DriftProvider,
	}

	var err error

	am.paymentTotal, err = NewCounter(
		cfg.Meter,
		"engine_payment_total",
		"Total number of payments recorded against allocations",
		"{payments}",
	)
	if err != nil {
		return nil, err
	}

	am.paymentAmount, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "engine_payment_amount",
		Description: "Distribution of recorded payment amounts",
		Unit:        "{usd}",
		Boundaries:  PaymentAmountBuckets,
	})
	if err != nil {
		return nil, err
	}

	am.callScheduledTotal, err = NewCounter(
		cfg.Meter,
		"engine_capital_call_scheduled_total",
		"Total number of capital calls scheduled",
		"{calls}",
	)
	if err != nil {
		return nil, err
	}

	am.callCompletedTotal, err = NewCounter(
		cfg.Meter,
		"engine_capital_call_completed_total",
		"Total number of capital calls settled",
		"{calls}",
	)
	if err != nil {
		return nil, err
	}

	am.rejectionTotal, err = NewCounter(
		cfg.Meter,
		"engine_rejection_total",
		"Total number of writes rejected by an allocation invariant",
		"{rejections}",
	)
	if err != nil {
		return nil, err
	}

	am.lockRetryTotal, err = NewCounter(
		cfg.Meter,
		"engine_lock_retry_total",
		"Total number of optimistic lock retries",
		"{retries}",
	)
	if err != nil {
		return nil, err
	}

	am.calendarCacheTotal, err = NewCounter(
		cfg.Meter,
		"engine_calendar_cache_total",
		"Calendar feed cache lookups by result",
		"{lookups}",
	)
	if err != nil {
		return nil, err
	}

	am.batchChunkSize, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "engine_batch_chunk_size",
		Description: "Distribution of batched lookup chunk sizes",
		Unit:        "{ids}",
		Boundaries:  BatchChunkBuckets,
	})
	if err != nil {
		return nil, err
	}

	am.ledgerDriftCount, err = NewGauge(
		cfg.Meter,
		"engine_ledger_drift_count",
		"Number of allocations failing the ledger re-derivation check",
		"{allocations}",
	)
	if err != nil {
		return nil, err
	}

	return am, nil
}

// =============================================================================
// Payment Metrics
// =============================================================================

// PaymentStatus represents the outcome of a payment for metrics labeling.
type PaymentStatus string

const (
	PaymentStatusApplied  PaymentStatus = "applied"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// RecordPayment records a payment write and its amount.
// Called from the application layer after the write commits or is rejected.
func (am *AllocationMetrics) RecordPayment(ctx context.Context, method string, status PaymentStatus, amount decimal.Decimal) {
	am.paymentTotal.Inc(ctx,
		AttrPaymentMethod.String(method),
		AttrPaymentStatus.String(string(status)),
	)
	if status == PaymentStatusApplied {
		amountUSD, _ := amount.Float64()
		am.paymentAmount.Record(ctx, amountUSD,
			AttrPaymentMethod.String(method),
		)
	}
}

// =============================================================================
// Capital Call Metrics
// =============================================================================

// RecordCallScheduled records a scheduled capital call.
func (am *AllocationMetrics) RecordCallScheduled(ctx context.Context) {
	am.callScheduledTotal.Inc(ctx)
}

// RecordCallCompleted records a settled capital call.
func (am *AllocationMetrics) RecordCallCompleted(ctx context.Context) {
	am.callCompletedTotal.Inc(ctx)
}

// =============================================================================
// Rejection and Contention Metrics
// =============================================================================

// RejectReason labels why the engine refused a write.
type RejectReason string

const (
	RejectReasonOverCall    RejectReason = "over_call"
	RejectReasonOverpayment RejectReason = "overpayment"
	RejectReasonDefaulted   RejectReason = "defaulted"
	RejectReasonState       RejectReason = "invalid_state"
)

// RecordRejection records a write refused by an allocation invariant.
func (am *AllocationMetrics) RecordRejection(ctx context.Context, reason RejectReason) {
	am.rejectionTotal.Inc(ctx,
		AttrRejectReason.String(string(reason)),
	)
}

// RecordLockRetry records one optimistic lock retry for an operation.
func (am *AllocationMetrics) RecordLockRetry(ctx context.Context, operation string) {
	am.lockRetryTotal.Inc(ctx,
		AttrEngineOperation.String(operation),
	)
}

// =============================================================================
// Batch and Cache Metrics
// =============================================================================

// RecordBatchChunk records the size of one batched lookup chunk.
func (am *AllocationMetrics) RecordBatchChunk(ctx context.Context, size int) {
	am.batchChunkSize.Record(ctx, float64(size))
}

// CacheResult labels the outcome of a calendar feed cache lookup.
type CacheResult string

const (
	CacheHit  CacheResult = "hit"
	CacheMiss CacheResult = "miss"
)

// RecordCacheLookup records a calendar feed cache hit or miss.
func (am *AllocationMetrics) RecordCacheLookup(ctx context.Context, result CacheResult) {
	am.calendarCacheTotal.Inc(ctx,
		AttrCacheResult.String(string(result)),
	)
}

// =============================================================================
// Ledger Drift Metrics
// =============================================================================

// RecordLedgerDrift records the current number of divergent allocations.
// This is a gauge metric that should be updated periodically or after a
// verification pass.
func (am *AllocationMetrics) RecordLedgerDrift(ctx context.Context, count int64) {
	am.ledgerDriftCount.Record(ctx, count)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of the drift gauge.
// It runs the integrity scan every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (am *AllocationMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	am.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go am.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (am *AllocationMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	am.collectDrift(ctx)

	for {
		select {
		case <-am.stopChan:
			am.logger.Info("Stopping periodic allocation metrics collection")
			return
		case <-ctx.Done():
			am.logger.Info("Context cancelled, stopping periodic allocation metrics collection")
			return
		case <-ticker.C:
			am.collectDrift(ctx)
		}
	}
}

// collectDrift records the current ledger drift from the provider.
func (am *AllocationMetrics) collectDrift(ctx context.Context) {
	if am.driftProvider == nil {
		am.logger.Debug("No drift provider configured, skipping ledger drift collection")
		return
	}

	count, err := am.driftProvider.CountDivergentAllocations(ctx)
	if err != nil {
		am.logger.Error("Failed to count divergent allocations", zap.Error(err))
		return
	}

	am.RecordLedgerDrift(ctx, count)
}

// Stop stops the periodic collection.
func (am *AllocationMetrics) Stop() {
	am.stopOnce.Do(func() {
		close(am.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewAllocationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
