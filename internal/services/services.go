// Package services holds the garage business rules: job money aggregation,
// payment admission and inventory maintenance.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/diewo77/go-garage/internal/lock"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/diewo77/go-garage/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("github.com/diewo77/go-garage/internal/services")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError blocks a write and is shown next to the offending field.
type ValidationError = models.ValidationError

// Option configures a service.
type Option func(*options)

type options struct {
	locker  lock.Locker
	metrics *metrics.Metrics
}

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithMetrics records domain counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = lock.NewLocalLocker()
	}
	return o
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func notFound(kind string, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %d: %w", kind, id, err)
}

func jobLockKey(id uint) string { return fmt.Sprintf("job:%d", id) }

// loadJob reads a job with everything its totals depend on.
func loadJob(tx *gorm.DB, id uint) (*models.Job, error) {
	var job models.Job
	err := tx.
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Services.Part").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("date, id") }).
		First(&job, id).Error
	if err != nil {
		return nil, notFound("job", id, err)
	}
	return &job, nil
}

// lockJobRow takes a row lock on the job for the rest of tx. Dialects without
// row locks ignore the clause.
func lockJobRow(tx *gorm.DB, id uint) error {
	var job models.Job
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").First(&job, id).Error
	if err != nil {
		return notFound("job", id, err)
	}
	return nil
}

// applyStatus writes the classification of job if it differs from the stored one.
func applyStatus(ctx context.Context, tx *gorm.DB, m *metrics.Metrics, job *models.Job) (bool, error) {
	next := job.ComputedPaymentStatus()
	changed := next != job.PaymentStatus
	m.StatusRecomputed(changed)
	if !changed {
		return false, nil
	}
	// UpdateColumn skips hooks; the job itself is not being edited here.
	err := tx.Model(&models.Job{}).Where("id = ?", job.ID).
		UpdateColumn("payment_status", next).Error
	if err != nil {
		return false, fmt.Errorf("update payment status of job %d: %w", job.ID, err)
	}
	logger.Debug(ctx).
		Uint("job_id", job.ID).
		Str("from", string(job.PaymentStatus)).
		Str("to", string(next)).
		Str("total", job.TotalAmount().StringFixed(2)).
		Str("paid", job.AmountPaid().StringFixed(2)).
		Msg("payment status updated")
	job.PaymentStatus = next
	return true, nil
}

// recomputeJobs refreshes the cached status of every job in ids, locking rows
// in ascending id order.
func recomputeJobs(ctx context.Context, tx *gorm.DB, m *metrics.Metrics, ids []uint) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := lockJobRow(tx, id); err != nil {
			return err
		}
		job, err := loadJob(tx, id)
		if err != nil {
			return err
		}
		if _, err := applyStatus(ctx, tx, m, job); err != nil {
			return err
		}
	}
	return nil
}
