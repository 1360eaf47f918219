package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem is a stocked part that services may consume.
type InventoryItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:100;not null" json:"name"`
	Category    string          `gorm:"size:50;index" json:"category"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	LastUpdated time.Time       `gorm:"autoUpdateTime" json:"last_updated"`
}

// BeforeSave rejects negative stock and prices.
func (i *InventoryItem) BeforeSave(tx *gorm.DB) error {
	i.Name = strings.TrimSpace(i.Name)
	i.Category = strings.TrimSpace(i.Category)
	if i.Name == "" {
		return NewValidationError("name", "required")
	}
	if i.Quantity < 0 {
		return NewValidationError("quantity", "quantity cannot be negative")
	}
	if i.Price.IsNegative() {
		return NewValidationError("price", "price cannot be negative")
	}
	if !ValidMoney(i.Price) {
		return moneyError("price")
	}
	return nil
}

// LowStock reports whether the remaining quantity deserves attention.
func (i *InventoryItem) LowStock() bool {
	return i.Quantity <= LowStockThreshold
}

// LowStockThreshold is the quantity at or below which stock is flagged.
const LowStockThreshold = 5
