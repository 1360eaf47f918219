package models

import (
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service is a billable line on a job, optionally consuming one part.
type Service struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	JobID      uint            `gorm:"index;not null" json:"job_id"`
	Name       string          `gorm:"size:100;not null" json:"name"`
	PartID     *uint           `gorm:"index" json:"part_id,omitempty"`
	Part       *InventoryItem  `gorm:"foreignKey:PartID;constraint:OnDelete:SET NULL" json:"part,omitempty"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	LabourCost decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"labour_cost"`
}

// BeforeSave enforces positive quantities and non-negative labour.
func (s *Service) BeforeSave(tx *gorm.DB) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return NewValidationError("name", "required")
	}
	if s.Quantity <= 0 {
		return NewValidationError("quantity", "quantity must be at least 1")
	}
	if s.LabourCost.IsNegative() {
		return NewValidationError("labour_cost", "labour cost cannot be negative")
	}
	if !ValidMoney(s.LabourCost) {
		return moneyError("labour_cost")
	}
	return nil
}

// PartCost is quantity times the part's unit price, zero without a part.
func (s *Service) PartCost() decimal.Decimal {
	if s.Part == nil {
		return decimal.Zero
	}
	return s.Part.Price.Mul(decimal.NewFromInt(int64(s.Quantity)))
}

// TotalCost is the part cost plus labour.
func (s *Service) TotalCost() decimal.Decimal {
	return s.PartCost().Add(s.LabourCost)
}
