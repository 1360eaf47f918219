package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-garage/internal/lock"
	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/validation"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobService owns jobs and their services and payments. Every write that can
// move a job's totals recomputes its payment status in the same transaction.
type JobService struct {
	db      *gorm.DB
	locker  lock.Locker
	metrics *metrics.Metrics
}

func NewJobService(db *gorm.DB, opts ...Option) *JobService {
	o := buildOptions(opts)
	return &JobService{db: db, locker: o.locker, metrics: o.metrics}
}

// Summary is the money position of a job.
type Summary struct {
	Total       decimal.Decimal      `json:"total"`
	Paid        decimal.Decimal      `json:"paid"`
	Outstanding decimal.Decimal      `json:"outstanding"`
	Status      models.PaymentStatus `json:"payment_status"`
}

// Summarize computes the summary from the job's loaded associations.
func Summarize(job *models.Job) Summary {
	total, paid := job.TotalAmount(), job.AmountPaid()
	return Summary{
		Total:       total,
		Paid:        paid,
		Outstanding: total.Sub(paid),
		Status:      models.ClassifyPaymentStatus(total, paid),
	}
}

// withJob runs fn inside the job's serialized section: the process or Redis
// lock, a transaction and a row lock on the job. fn sees the freshly loaded job.
func (s *JobService) withJob(ctx context.Context, jobID uint, fn func(tx *gorm.DB, job *models.Job) error) error {
	unlock, err := s.locker.Lock(ctx, jobLockKey(jobID))
	if err != nil {
		return fmt.Errorf("lock job %d: %w", jobID, err)
	}
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockJobRow(tx, jobID); err != nil {
			return err
		}
		job, err := loadJob(tx, jobID)
		if err != nil {
			return err
		}
		return fn(tx, job)
	})
}

// refresh reloads job inside tx and writes its status if it moved.
func (s *JobService) refresh(ctx context.Context, tx *gorm.DB, jobID uint) (*models.Job, error) {
	job, err := loadJob(tx, jobID)
	if err != nil {
		return nil, err
	}
	if _, err := applyStatus(ctx, tx, s.metrics, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns the job with services, parts and payments loaded.
func (s *JobService) GetJob(ctx context.Context, id uint) (*models.Job, error) {
	return loadJob(s.db.WithContext(ctx), id)
}

// TotalAmount is the sum of the job's service costs.
func (s *JobService) TotalAmount(ctx context.Context, id uint) (decimal.Decimal, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return job.TotalAmount(), nil
}

// AmountPaid is the sum of the job's payments.
func (s *JobService) AmountPaid(ctx context.Context, id uint) (decimal.Decimal, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return job.AmountPaid(), nil
}

// UpdatePaymentStatus recomputes the job's classification and stores it only
// when it differs. It reports whether a write happened.
func (s *JobService) UpdatePaymentStatus(ctx context.Context, id uint) (changed bool, err error) {
	ctx, span := startSpan(ctx, "JobService.UpdatePaymentStatus", attribute.Int("job.id", int(id)))
	defer func() { endSpan(span, err) }()

	err = s.withJob(ctx, id, func(tx *gorm.DB, job *models.Job) error {
		var aerr error
		changed, aerr = applyStatus(ctx, tx, s.metrics, job)
		return aerr
	})
	return changed, err
}

// ListJobs returns one page of jobs, most recent first, and the total count.
func (s *JobService) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Job{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		q = q.Where("LOWER(customer_name) LIKE ? OR LOWER(vehicle_reg) LIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}
	offset, limit := pageBounds(f.Page, f.PerPage)
	var jobs []models.Job
	err := q.Preload("Services.Part").Preload("Payments").
		Order("date_in DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

// CreateJob stores a new job. The registration is normalized on save.
func (s *JobService) CreateJob(ctx context.Context, in JobInput) (job *models.Job, err error) {
	ctx, span := startSpan(ctx, "JobService.CreateJob")
	defer func() { endSpan(span, err) }()

	if err := validateJobInput(in); err != nil {
		return nil, err
	}
	job = &models.Job{
		CustomerName:  in.CustomerName,
		VehicleReg:    in.VehicleReg,
		Status:        in.Status,
		DateIn:        in.DateIn,
		PaymentStatus: models.NotPaid,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	span.SetAttributes(attribute.Int("job.id", int(job.ID)))
	logger.Info(ctx).Uint("job_id", job.ID).Str("vehicle_reg", job.VehicleReg).Msg("job created")
	return job, nil
}

func validateJobInput(in JobInput) error {
	v := validation.Validate(&in)
	if in.Status != "" && !in.Status.Valid() {
		v.Add("status", "unknown status")
	}
	return v.Err()
}

// UpdateJob edits the job's own fields.
func (s *JobService) UpdateJob(ctx context.Context, id uint, in JobInput) (job *models.Job, err error) {
	ctx, span := startSpan(ctx, "JobService.UpdateJob", attribute.Int("job.id", int(id)))
	defer func() { endSpan(span, err) }()

	if err := validateJobInput(in); err != nil {
		return nil, err
	}
	err = s.withJob(ctx, id, func(tx *gorm.DB, j *models.Job) error {
		j.CustomerName = in.CustomerName
		j.VehicleReg = in.VehicleReg
		if in.Status != "" {
			j.Status = in.Status
		}
		if !in.DateIn.IsZero() {
			j.DateIn = in.DateIn
		}
		if err := tx.Omit(clause.Associations).Save(j).Error; err != nil {
			return fmt.Errorf("save job %d: %w", id, err)
		}
		if _, err := applyStatus(ctx, tx, s.metrics, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	return job, err
}

// DeleteJob removes the job with its services and payments.
func (s *JobService) DeleteJob(ctx context.Context, id uint) (err error) {
	ctx, span := startSpan(ctx, "JobService.DeleteJob", attribute.Int("job.id", int(id)))
	defer func() { endSpan(span, err) }()

	return s.withJob(ctx, id, func(tx *gorm.DB, job *models.Job) error {
		if err := tx.Where("job_id = ?", id).Delete(&models.Payment{}).Error; err != nil {
			return fmt.Errorf("delete payments of job %d: %w", id, err)
		}
		if err := tx.Where("job_id = ?", id).Delete(&models.Service{}).Error; err != nil {
			return fmt.Errorf("delete services of job %d: %w", id, err)
		}
		if err := tx.Delete(&models.Job{}, id).Error; err != nil {
			return fmt.Errorf("delete job %d: %w", id, err)
		}
		logger.Info(ctx).Uint("job_id", id).Msg("job deleted")
		return nil
	})
}

// partExists turns a dangling part reference into a field error.
func partExists(tx *gorm.DB, partID *uint) error {
	if partID == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.InventoryItem{}).Where("id = ?", *partID).Count(&n).Error; err != nil {
		return fmt.Errorf("check part %d: %w", *partID, err)
	}
	if n == 0 {
		return models.NewValidationError("part_id", "unknown part")
	}
	return nil
}

// AddService appends a service line to the job.
func (s *JobService) AddService(ctx context.Context, jobID uint, in ServiceInput) (svc *models.Service, err error) {
	ctx, span := startSpan(ctx, "JobService.AddService", attribute.Int("job.id", int(jobID)))
	defer func() { endSpan(span, err) }()

	if err := validation.Validate(&in).Err(); err != nil {
		return nil, err
	}
	err = s.withJob(ctx, jobID, func(tx *gorm.DB, job *models.Job) error {
		if err := partExists(tx, in.PartID); err != nil {
			return err
		}
		svc = &models.Service{
			JobID:      jobID,
			Name:       in.Name,
			PartID:     in.PartID,
			Quantity:   in.Quantity,
			LabourCost: in.LabourCost,
		}
		if err := tx.Omit(clause.Associations).Create(svc).Error; err != nil {
			return fmt.Errorf("create service: %w", err)
		}
		_, err := s.refresh(ctx, tx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

func findService(job *models.Job, id uint) *models.Service {
	for i := range job.Services {
		if job.Services[i].ID == id {
			return &job.Services[i]
		}
	}
	return nil
}

func findPayment(job *models.Job, id uint) *models.Payment {
	for i := range job.Payments {
		if job.Payments[i].ID == id {
			return &job.Payments[i]
		}
	}
	return nil
}

// UpdateService edits a service line of the job.
func (s *JobService) UpdateService(ctx context.Context, jobID, serviceID uint, in ServiceInput) (svc *models.Service, err error) {
	ctx, span := startSpan(ctx, "JobService.UpdateService",
		attribute.Int("job.id", int(jobID)), attribute.Int("service.id", int(serviceID)))
	defer func() { endSpan(span, err) }()

	if err := validation.Validate(&in).Err(); err != nil {
		return nil, err
	}
	err = s.withJob(ctx, jobID, func(tx *gorm.DB, job *models.Job) error {
		svc = findService(job, serviceID)
		if svc == nil {
			return fmt.Errorf("service %d of job %d: %w", serviceID, jobID, ErrNotFound)
		}
		if err := partExists(tx, in.PartID); err != nil {
			return err
		}
		svc.Name = in.Name
		svc.PartID = in.PartID
		svc.Part = nil
		svc.Quantity = in.Quantity
		svc.LabourCost = in.LabourCost
		if err := tx.Omit(clause.Associations).Save(svc).Error; err != nil {
			return fmt.Errorf("save service %d: %w", serviceID, err)
		}
		_, err := s.refresh(ctx, tx, jobID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// DeleteService removes a service line from the job.
func (s *JobService) DeleteService(ctx context.Context, jobID, serviceID uint) (err error) {
	ctx, span := startSpan(ctx, "JobService.DeleteService",
		attribute.Int("job.id", int(jobID)), attribute.Int("service.id", int(serviceID)))
	defer func() { endSpan(span, err) }()

	return s.withJob(ctx, jobID, func(tx *gorm.DB, job *models.Job) error {
		if findService(job, serviceID) == nil {
			return fmt.Errorf("service %d of job %d: %w", serviceID, jobID, ErrNotFound)
		}
		if err := tx.Delete(&models.Service{}, serviceID).Error; err != nil {
			return fmt.Errorf("delete service %d: %w", serviceID, err)
		}
		_, err := s.refresh(ctx, tx, jobID)
		return err
	})
}

// admit checks amount against what is still owed, leaving out the payment
// being edited (except) so it is not counted twice.
func admit(job *models.Job, amount decimal.Decimal, except uint) error {
	paid := decimal.Zero
	for _, p := range job.Payments {
		if except != 0 && p.ID == except {
			continue
		}
		paid = paid.Add(p.Amount)
	}
	outstanding := job.TotalAmount().Sub(paid)
	if !outstanding.IsPositive() {
		return models.NewValidationError("amount", "no amount due")
	}
	if amount.GreaterThan(outstanding) {
		return models.NewValidationError("amount", "payment exceeds total due: %s", outstanding.StringFixed(2))
	}
	return nil
}

func (s *JobService) observeAdmission(ctx context.Context, jobID uint, err error) {
	var verr *models.ValidationError
	switch {
	case err == nil:
		s.metrics.PaymentAdmitted()
	case errors.As(err, &verr):
		s.metrics.PaymentRejected()
		logger.Info(ctx).Uint("job_id", jobID).Str("reason", verr.Message).Msg("payment rejected")
	}
}

// AddPayment records a payment if the job still owes at least that much.
// The check and the insert run in the job's serialized section, so concurrent
// payments cannot jointly overpay.
func (s *JobService) AddPayment(ctx context.Context, jobID uint, in PaymentInput) (pay *models.Payment, err error) {
	ctx, span := startSpan(ctx, "JobService.AddPayment", attribute.Int("job.id", int(jobID)))
	defer func() { endSpan(span, err) }()

	if err := validation.Validate(&in).Err(); err != nil {
		return nil, err
	}
	err = s.withJob(ctx, jobID, func(tx *gorm.DB, job *models.Job) error {
		if err := admit(job, in.Amount, 0); err != nil {
			return err
		}
		pay = &models.Payment{JobID: jobID, Amount: in.Amount, Date: in.Date}
		if err := tx.Create(pay).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		_, err := s.refresh(ctx, tx, jobID)
		return err
	})
	s.observeAdmission(ctx, jobID, err)
	if err != nil {
		return nil, err
	}
	return pay, nil
}

// UpdatePayment changes a recorded payment, re-running the admission check
// without the payment's previous amount.
func (s *JobService) UpdatePayment(ctx context.Context, jobID, paymentID uint, in PaymentInput) (pay *models.Payment, err error) {
	ctx, span := startSpan(ctx, "JobService.UpdatePayment",
		attribute.Int("job.id", int(jobID)), attribute.Int("payment.id", int(paymentID)))
	defer func() { endSpan(span, err) }()

	if err := validation.Validate(&in).Err(); err != nil {
		return nil, err
	}
	err = s.withJob(ctx, jobID, func(tx *gorm.DB, job *models.Job) error {
		pay = findPayment(job, paymentID)
		if pay == nil {
			return fmt.Errorf("payment %d of job %d: %w", paymentID, jobID, ErrNotFound)
		}
		if err := admit(job, in.Amount, paymentID); err != nil {
			return err
		}
		pay.Amount = in.Amount
		if !in.Date.IsZero() {
			pay.Date = in.Date
		}
		if err := tx.Save(pay).Error; err != nil {
			return fmt.Errorf("save payment %d: %w", paymentID, err)
		}
		_, err := s.refresh(ctx, tx, jobID)
		return err
	})
	s.observeAdmission(ctx, jobID, err)
	if err != nil {
		return nil, err
	}
	return pay, nil
}

// DeletePayment removes a payment from the job.
func (s *JobService) DeletePayment(ctx context.Context, jobID, paymentID uint) (err error) {
	ctx, span := startSpan(ctx, "JobService.DeletePayment",
		attribute.Int("job.id", int(jobID)), attribute.Int("payment.id", int(paymentID)))
	defer func() { endSpan(span, err) }()

	return s.withJob(ctx, jobID, func(tx *gorm.DB, job *models.Job) error {
		if findPayment(job, paymentID) == nil {
			return fmt.Errorf("payment %d of job %d: %w", paymentID, jobID, ErrNotFound)
		}
		if err := tx.Delete(&models.Payment{}, paymentID).Error; err != nil {
			return fmt.Errorf("delete payment %d: %w", paymentID, err)
		}
		_, err := s.refresh(ctx, tx, jobID)
		return err
	})
}
