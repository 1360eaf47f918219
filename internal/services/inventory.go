package services

import (
	"context"
	"fmt"

	"github.com/diewo77/go-garage/internal/logger"
	"github.com/diewo77/go-garage/internal/metrics"
	"github.com/diewo77/go-garage/internal/models"
	"github.com/diewo77/go-garage/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryService maintains parts and their stock. Stock only moves through
// AdjustStock; adding a service that uses a part leaves the count alone.
type InventoryService struct {
	db      *gorm.DB
	metrics *metrics.Metrics
}

func NewInventoryService(db *gorm.DB, opts ...Option) *InventoryService {
	o := buildOptions(opts)
	return &InventoryService{db: db, metrics: o.metrics}
}

func (s *InventoryService) GetItem(ctx context.Context, id uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound("inventory item", id, err)
	}
	return &item, nil
}

// ListItems returns one page of items, most recently updated first.
func (s *InventoryService) ListItems(ctx context.Context, f InventoryFilter) ([]models.InventoryItem, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.InventoryItem{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		q = q.Where("LOWER(name) LIKE ?", likePattern(f.Search))
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count inventory: %w", err)
	}
	offset, limit := pageBounds(f.Page, f.PerPage)
	var items []models.InventoryItem
	err := q.Order("last_updated DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list inventory: %w", err)
	}
	return items, total, nil
}

// AllItems lists every item by name, for part pickers.
func (s *InventoryService) AllItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := s.db.WithContext(ctx).Order("name").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return items, nil
}

// Categories returns the distinct non-empty categories in use.
func (s *InventoryService) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := s.db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("category <> ''").Distinct().Order("category").Pluck("category", &cats).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *InventoryService) CreateItem(ctx context.Context, in InventoryInput) (item *models.InventoryItem, err error) {
	ctx, span := startSpan(ctx, "InventoryService.CreateItem")
	defer func() { endSpan(span, err) }()

	if err := validation.Validate(&in).Err(); err != nil {
		return nil, err
	}
	item = &models.InventoryItem{Name: in.Name, Category: in.Category, Quantity: in.Quantity, Price: in.Price}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("create inventory item: %w", err)
	}
	return item, nil
}

// jobsUsingPart lists the jobs with a service referencing the part.
func jobsUsingPart(tx *gorm.DB, partID uint) ([]uint, error) {
	var ids []uint
	err := tx.Model(&models.Service{}).Where("part_id = ?", partID).
		Distinct().Pluck("job_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("jobs using part %d: %w", partID, err)
	}
	return ids, nil
}

// UpdateItem edits an item. A price change moves the totals of every job using
// the part, so their statuses are recomputed in the same transaction.
func (s *InventoryService) UpdateItem(ctx context.Context, id uint, in InventoryInput) (item *models.InventoryItem, err error) {
	ctx, span := startSpan(ctx, "InventoryService.UpdateItem", attribute.Int("item.id", int(id)))
	defer func() { endSpan(span, err) }()

	if err := validation.Validate(&in).Err(); err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			return notFound("inventory item", id, err)
		}
		priceChanged := !current.Price.Equal(in.Price)
		current.Name = in.Name
		current.Category = in.Category
		current.Quantity = in.Quantity
		current.Price = in.Price
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("save inventory item %d: %w", id, err)
		}
		item = &current
		if !priceChanged {
			return nil
		}
		ids, err := jobsUsingPart(tx, id)
		if err != nil {
			return err
		}
		return recomputeJobs(ctx, tx, s.metrics, ids)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item. Services that used it keep their labour cost and
// lose the part reference.
func (s *InventoryService) DeleteItem(ctx context.Context, id uint) (err error) {
	ctx, span := startSpan(ctx, "InventoryService.DeleteItem", attribute.Int("item.id", int(id)))
	defer func() { endSpan(span, err) }()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.InventoryItem
		if err := tx.First(&current, id).Error; err != nil {
			return notFound("inventory item", id, err)
		}
		ids, err := jobsUsingPart(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.Service{}).Where("part_id = ?", id).
			UpdateColumn("part_id", gorm.Expr("NULL")).Error; err != nil {
			return fmt.Errorf("detach part %d: %w", id, err)
		}
		if err := tx.Delete(&models.InventoryItem{}, id).Error; err != nil {
			return fmt.Errorf("delete inventory item %d: %w", id, err)
		}
		logger.Info(ctx).Uint("item_id", id).Int("jobs", len(ids)).Msg("inventory item deleted")
		return recomputeJobs(ctx, tx, s.metrics, ids)
	})
}

// AdjustStock adds delta (which may be negative) to the quantity on hand.
// The result may not go below zero.
func (s *InventoryService) AdjustStock(ctx context.Context, id uint, delta int) (item *models.InventoryItem, err error) {
	ctx, span := startSpan(ctx, "InventoryService.AdjustStock",
		attribute.Int("item.id", int(id)), attribute.Int("stock.delta", delta))
	defer func() { endSpan(span, err) }()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.InventoryItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			return notFound("inventory item", id, err)
		}
		next := current.Quantity + delta
		if next < 0 {
			return models.NewValidationError("delta", "only %d in stock", current.Quantity)
		}
		current.Quantity = next
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("adjust stock of item %d: %w", id, err)
		}
		item = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx).Uint("item_id", id).Int("delta", delta).Int("quantity", item.Quantity).Msg("stock adjusted")
	return item, nil
}
