package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"supplies-radar/internal/model"
)

// SubscriptionRepository manages user-to-warehouse subscriptions.
type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Toggle flips membership of the (user, warehouse) pair: an existing
// subscription is removed, a missing one is created. Returns true when the
// pair is subscribed after the call.
func (r *SubscriptionRepository) Toggle(ctx context.Context, userID uint, warehouseID int64) (bool, error) {
	db := r.db.WithContext(ctx)

	var existing model.Subscription
	err := db.Where("user_id = ? AND warehouse_id = ?", userID, warehouseID).First(&existing).Error
	switch {
	case err == nil:
		if err := db.Delete(&existing).Error; err != nil {
			return true, fmt.Errorf("remove subscription: %w", err)
		}
		return false, nil
	case err == gorm.ErrRecordNotFound:
		sub := model.Subscription{UserID: userID, WarehouseID: warehouseID}
		if err := db.Create(&sub).Error; err != nil {
			return false, fmt.Errorf("add subscription: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("find subscription: %w", err)
	}
}

// ListWarehouseIDs returns the ids of warehouses the user is subscribed to.
func (r *SubscriptionRepository) ListWarehouseIDs(ctx context.Context, userID uint) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ?", userID).
		Order("warehouse_id ASC").
		Pluck("warehouse_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return ids, nil
}
