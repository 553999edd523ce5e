package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"property-valuation/client/pricing"
	"property-valuation/models"
	"property-valuation/utils"
)

// Estimator values a single property.
type Estimator interface {
	Estimate(ctx context.Context, postcode string, floorAreaSqFt float64) (*models.ValuationRecord, error)
}

// BatchValuer values many properties concurrently with rate limiting and
// retries upstream failures with exponential back-off.
type BatchValuer struct {
	estimator      Estimator
	logger         *utils.Logger
	maxConcurrency int
	rateLimitMs    int
	retry          *utils.RetryConfig
	now            func() time.Time
}

// NewBatchValuer creates a BatchValuer.
func NewBatchValuer(estimator Estimator, logger *utils.Logger, maxConcurrency, rateLimitMs, maxRetries int) *BatchValuer {
	return &BatchValuer{
		estimator:      estimator,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		rateLimitMs:    rateLimitMs,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
			Retryable:   pricing.IsUpstream,
		},
		now: time.Now,
	}
}

// Value returns one record per unique property reference, in input order.
// Properties with an empty reference are dropped. Failures produce an
// unavailable record carrying the reason rather than an error.
func (b *BatchValuer) Value(ctx context.Context, properties []*models.Property) []*models.ValuationRecord {
	seen := utils.NewKeySet()
	pool := utils.NewWorkerPool(b.maxConcurrency, b.rateLimitMs)
	slots := make([]*models.ValuationRecord, len(properties))

	for i, p := range properties {
		ref := strings.TrimSpace(p.Reference)
		if ref == "" {
			b.logger.Warn("[batch] Dropping property with empty reference (postcode %q)", p.Postcode)
			continue
		}
		if !seen.Add(ref) {
			b.logger.Debug("[batch] Duplicate reference skipped: %s", ref)
			continue
		}

		idx, prop := i, p
		scheduled := pool.Submit(ctx, func() {
			slots[idx] = b.valueOne(ctx, ref, prop)
		})
		if !scheduled {
			slots[idx] = b.unavailable(ref, prop, ctx.Err())
		}
	}
	pool.Wait()

	result := make([]*models.ValuationRecord, 0, seen.Size())
	for _, r := range slots {
		if r != nil {
			result = append(result, r)
		}
	}

	available := 0
	for _, r := range result {
		if r.Available {
			available++
		}
	}
	b.logger.Info("[batch] Valued %d properties → %d available, %d not available",
		len(result), available, len(result)-available)
	return result
}

func (b *BatchValuer) valueOne(ctx context.Context, ref string, p *models.Property) *models.ValuationRecord {
	var rec *models.ValuationRecord
	err := b.retry.Do(ctx, fmt.Sprintf("value-%s", ref), func() error {
		r, err := b.estimator.Estimate(ctx, p.Postcode, p.FloorAreaSqFt)
		rec = r
		return err
	})

	if err != nil {
		b.logger.Warn("[batch] %s (%s): %s: %v", ref, p.Postcode, NotAvailable, err)
		return b.unavailable(ref, p, err)
	}

	rec.Reference = ref
	return rec
}

func (b *BatchValuer) unavailable(ref string, p *models.Property, err error) *models.ValuationRecord {
	return &models.ValuationRecord{
		Reference:     ref,
		Postcode:      pricing.NormalizePostcode(p.Postcode),
		FloorAreaSqFt: p.FloorAreaSqFt,
		Available:     false,
		Reason:        err.Error(),
		CreatedAt:     b.now(),
	}
}
