package model

import "time"

// Subscription links a user to a tracked warehouse. Each (user, warehouse)
// pair exists at most once.
type Subscription struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      uint  `gorm:"index:idx_user_warehouse,unique"`
	WarehouseID int64 `gorm:"index:idx_user_warehouse,unique"`
	CreatedAt   time.Time
}
