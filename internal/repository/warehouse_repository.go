package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"supplies-radar/internal/model"
)

// WarehouseRepository manages the shared warehouse catalog.
type WarehouseRepository struct {
	db *gorm.DB
}

func NewWarehouseRepository(db *gorm.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

// Upsert inserts a catalog entry or refreshes its name and timestamp, keyed
// by the external warehouse id.
func (r *WarehouseRepository) Upsert(ctx context.Context, id int64, name string, refreshedAt time.Time) error {
	warehouse := model.Warehouse{ID: id, Name: name, LastUpdated: refreshedAt}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "last_updated"}),
		}).
		Create(&warehouse).Error
	if err != nil {
		return fmt.Errorf("upsert warehouse %d: %w", id, err)
	}
	return nil
}

func (r *WarehouseRepository) ListAll(ctx context.Context) ([]model.Warehouse, error) {
	var warehouses []model.Warehouse
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&warehouses).Error; err != nil {
		return nil, err
	}
	return warehouses, nil
}

// ListNamesByUser returns the names of warehouses the given user tracks.
func (r *WarehouseRepository) ListNamesByUser(ctx context.Context, userID uint) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.Warehouse{}).
		Joins("JOIN subscriptions ON subscriptions.warehouse_id = warehouses.id").
		Where("subscriptions.user_id = ?", userID).
		Order("warehouses.name ASC").
		Pluck("warehouses.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list user warehouses: %w", err)
	}
	return names, nil
}
