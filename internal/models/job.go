package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JobStatus is the workshop progress of a job.
type JobStatus string

const (
	JobPending    JobStatus = "Pending"
	JobInProgress JobStatus = "In Progress"
	JobCompleted  JobStatus = "Completed"
)

// JobStatuses lists statuses in workflow order.
var JobStatuses = []JobStatus{JobPending, JobInProgress, JobCompleted}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, v := range JobStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PaymentStatus is the derived paid-vs-total classification of a job.
type PaymentStatus string

const (
	NotPaid       PaymentStatus = "not_paid"
	PartiallyPaid PaymentStatus = "partially_paid"
	FullyPaid     PaymentStatus = "fully_paid"
)

// PaymentStatuses lists every classification.
var PaymentStatuses = []PaymentStatus{NotPaid, PartiallyPaid, FullyPaid}

// Valid reports whether s is a known classification.
func (s PaymentStatus) Valid() bool {
	return s == NotPaid || s == PartiallyPaid || s == FullyPaid
}

// Label is the human readable name.
func (s PaymentStatus) Label() string {
	switch s {
	case FullyPaid:
		return "Fully Paid"
	case PartiallyPaid:
		return "Partially Paid"
	default:
		return "Not Paid"
	}
}

// Color is the badge colour used by the admin.
func (s PaymentStatus) Color() string {
	switch s {
	case FullyPaid:
		return "green"
	case PartiallyPaid:
		return "orange"
	default:
		return "red"
	}
}

// ClassifyPaymentStatus derives the status from a total and the amount paid.
// A job with nothing to pay is never fully paid.
func ClassifyPaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case total.IsPositive() && paid.GreaterThanOrEqual(total):
		return FullyPaid
	case paid.IsPositive() && paid.LessThan(total):
		return PartiallyPaid
	default:
		return NotPaid
	}
}

// Job is one vehicle brought in for work.
type Job struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	CustomerName  string        `gorm:"size:100;not null" json:"customer_name"`
	VehicleReg    string        `gorm:"size:20;not null;index" json:"vehicle_reg"`
	Status        JobStatus     `gorm:"size:20;not null;default:'Pending'" json:"status"`
	DateIn        time.Time     `gorm:"not null;index" json:"date_in"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PaymentStatus PaymentStatus `gorm:"size:20;not null;default:'not_paid';index" json:"payment_status"`

	Services []Service `gorm:"constraint:OnDelete:CASCADE" json:"services,omitempty"`
	Payments []Payment `gorm:"constraint:OnDelete:CASCADE" json:"payments,omitempty"`
}

// BeforeSave normalizes the registration on every write, form or not.
func (j *Job) BeforeSave(tx *gorm.DB) error {
	j.CustomerName = strings.TrimSpace(j.CustomerName)
	if j.CustomerName == "" {
		return NewValidationError("customer_name", "required")
	}
	reg, err := NormalizeVehicleReg(j.VehicleReg)
	if err != nil {
		return err
	}
	j.VehicleReg = reg
	if j.Status == "" {
		j.Status = JobPending
	}
	if !j.Status.Valid() {
		return NewValidationError("status", "unknown status %q", j.Status)
	}
	if j.PaymentStatus == "" {
		j.PaymentStatus = NotPaid
	}
	if j.DateIn.IsZero() {
		j.DateIn = time.Now()
	}
	return nil
}

// TotalAmount sums the cost of the loaded services. Unsaved jobs total zero.
func (j *Job) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	if j.ID == 0 {
		return total
	}
	for i := range j.Services {
		total = total.Add(j.Services[i].TotalCost())
	}
	return total
}

// AmountPaid sums the loaded payments. Unsaved jobs have paid nothing.
func (j *Job) AmountPaid() decimal.Decimal {
	paid := decimal.Zero
	if j.ID == 0 {
		return paid
	}
	for _, p := range j.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Outstanding is the total less what has been paid; it may be negative.
func (j *Job) Outstanding() decimal.Decimal {
	return j.TotalAmount().Sub(j.AmountPaid())
}

// ComputedPaymentStatus classifies the loaded associations without touching
// the cached column.
func (j *Job) ComputedPaymentStatus() PaymentStatus {
	return ClassifyPaymentStatus(j.TotalAmount(), j.AmountPaid())
}

// All returns every persisted model in dependency order.
func All() []any {
	return []any{&InventoryItem{}, &Job{}, &Service{}, &Payment{}}
}
