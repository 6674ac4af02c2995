package repository

import (
	"context"
	"fmt"
	"math"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"supplies-radar/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// UpsertAPIKey creates the user on first successful key validation or
// replaces the key of an existing user. Polling frequency and threshold keep
// their current (or default) values.
func (r *UserRepository) UpsertAPIKey(ctx context.Context, telegramID int64, apiKey string) (*model.User, error) {
	user := model.User{
		TelegramID:            telegramID,
		APIKey:                apiKey,
		PollingFrequency:      15,
		NotificationThreshold: 0,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "telegram_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"api_key": apiKey}),
		}).
		Create(&user).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return r.FindByTelegramID(ctx, telegramID)
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FirstWithAPIKey returns any user holding a non-empty credential. Used by
// the periodic catalog refresh, which needs a valid key but is not tied to a
// particular user.
func (r *UserRepository) FirstWithAPIKey(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("api_key <> ''").Order("id ASC").First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) SetPollingFrequency(ctx context.Context, telegramID int64, frequency int) error {
	if frequency < 1 {
		return fmt.Errorf("polling frequency must be positive, got %d", frequency)
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Update("polling_frequency", frequency).Error; err != nil {
		return fmt.Errorf("set polling frequency: %w", err)
	}
	return nil
}

func (r *UserRepository) SetNotificationThreshold(ctx context.Context, telegramID int64, threshold float64) error {
	// NaN slips through plain comparisons, so reject it explicitly.
	if math.IsNaN(threshold) || threshold < model.ThresholdMin || threshold > model.ThresholdMax {
		return fmt.Errorf("threshold %g out of range [%g, %g]", threshold, model.ThresholdMin, model.ThresholdMax)
	}
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("telegram_id = ?", telegramID).
		Update("notification_threshold", threshold).Error; err != nil {
		return fmt.Errorf("set notification threshold: %w", err)
	}
	return nil
}
