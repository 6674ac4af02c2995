package model

import "time"

// Warehouse is one entry of the global supplies catalog. The primary key is
// the external warehouse id assigned by the upstream API.
type Warehouse struct {
	ID          int64 `gorm:"primaryKey;autoIncrement:false"`
	Name        string
	LastUpdated time.Time
}
