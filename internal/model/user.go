package model

import "time"

// Domain bounds for the notification threshold.
const (
	ThresholdMin = 0.0
	ThresholdMax = 20.0
)

// User stores a Telegram user together with their supplies-API credential
// and notification preferences.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	APIKey     string
	// PollingFrequency is expressed in scheduler ticks: the user is checked
	// on every tick t with t mod PollingFrequency == 0.
	PollingFrequency      int     `gorm:"default:15"`
	NotificationThreshold float64 `gorm:"default:0"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Subscriptions         []Subscription `gorm:"foreignKey:UserID"`
}
