package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Payment is money received against a job.
type Payment struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	JobID  uint            `gorm:"index;not null" json:"job_id"`
	Amount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Date   time.Time       `gorm:"not null" json:"date"`
}

// BeforeSave requires a strictly positive amount in cents and defaults the
// date to now.
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	if !p.Amount.IsPositive() {
		return NewValidationError("amount", "amount must be greater than zero")
	}
	if !ValidMoney(p.Amount) {
		return moneyError("amount")
	}
	if p.Date.IsZero() {
		p.Date = time.Now()
	}
	return nil
}
