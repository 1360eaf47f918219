package services

import (
	"strings"
	"time"

	"github.com/diewo77/go-garage/internal/models"
	"github.com/shopspring/decimal"
)

// JobInput carries the editable fields of a job.
type JobInput struct {
	CustomerName string           `form:"customer_name" json:"customer_name" validate:"required,max=100"`
	VehicleReg   string           `form:"vehicle_reg" json:"vehicle_reg" validate:"required,vehiclereg"`
	Status       models.JobStatus `form:"status" json:"status"`
	DateIn       time.Time        `form:"date_in" json:"date_in"`
}

// ServiceInput carries one service line.
type ServiceInput struct {
	Name       string          `form:"name" json:"name" validate:"required,max=100"`
	PartID     *uint           `form:"part_id" json:"part_id"`
	Quantity   int             `form:"quantity" json:"quantity" validate:"gt=0"`
	LabourCost decimal.Decimal `form:"labour_cost" json:"labour_cost" validate:"gte=0,money"`
}

// PaymentInput carries one payment. A zero Date means now.
type PaymentInput struct {
	Amount decimal.Decimal `form:"amount" json:"amount" validate:"gt=0,money"`
	Date   time.Time       `form:"date" json:"date"`
}

// InventoryInput carries the editable fields of an inventory item.
type InventoryInput struct {
	Name     string          `form:"name" json:"name" validate:"required,max=100"`
	Category string          `form:"category" json:"category" validate:"max=50"`
	Quantity int             `form:"quantity" json:"quantity" validate:"gte=0"`
	Price    decimal.Decimal `form:"price" json:"price" validate:"gte=0,money"`
}

// JobFilter narrows ListJobs. Zero values mean no restriction.
type JobFilter struct {
	Status        models.JobStatus
	PaymentStatus models.PaymentStatus
	Search        string
	Page          int
	PerPage       int
}

// InventoryFilter narrows ListItems.
type InventoryFilter struct {
	Category string
	Search   string
	Page     int
	PerPage  int
}

const defaultPerPage = 25

// AllPages as PerPage disables pagination.
const AllPages = -1

func pageBounds(page, perPage int) (offset, limit int) {
	if perPage < 0 {
		// gorm drops LIMIT and OFFSET for -1
		return -1, -1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage, perPage
}

// DateInLayout is the layout produced by datetime-local inputs.
const DateInLayout = "2006-01-02T15:04"

// ParseDateIn accepts a datetime-local value or RFC3339. Blank input yields
// the zero time, which the model turns into now.
func ParseDateIn(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(DateInLayout, raw, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, models.NewValidationError("date_in", "Invalid date format. Please enter a valid date.")
}

func likePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
