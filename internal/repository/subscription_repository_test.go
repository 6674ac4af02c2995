package repository

import (
	"context"
	"math"
	"testing"

	"github.com/go-playground/assert/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supplies-radar/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("access pool: %v", err)
	}
	// A single connection keeps the in-memory database alive and shared.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.User{}, &model.Warehouse{}, &model.Subscription{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, telegramID int64) *model.User {
	t.Helper()
	user, err := NewUserRepository(db).UpsertAPIKey(context.Background(), telegramID, "key")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestTogglePairReturnsToOriginalState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSubscriptionRepository(db)
	user := createTestUser(t, db, 100)

	subscribed, err := repo.Toggle(ctx, user.ID, 507)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, subscribed)

	ids, err := repo.ListWarehouseIDs(ctx, user.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, []int64{507}, ids)

	subscribed, err = repo.Toggle(ctx, user.ID, 507)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, subscribed)

	ids, err = repo.ListWarehouseIDs(ctx, user.ID)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(ids))
}

func TestToggleIsScopedPerUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSubscriptionRepository(db)
	first := createTestUser(t, db, 100)
	second := createTestUser(t, db, 200)

	_, err := repo.Toggle(ctx, first.ID, 507)
	assert.Equal(t, nil, err)
	_, err = repo.Toggle(ctx, second.ID, 507)
	assert.Equal(t, nil, err)
	_, err = repo.Toggle(ctx, first.ID, 507)
	assert.Equal(t, nil, err)

	firstIDs, _ := repo.ListWarehouseIDs(ctx, first.ID)
	secondIDs, _ := repo.ListWarehouseIDs(ctx, second.ID)
	assert.Equal(t, 0, len(firstIDs))
	assert.Equal(t, []int64{507}, secondIDs)
}

func TestUpsertAPIKeyCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	created, err := repo.UpsertAPIKey(ctx, 100, "first-key")
	assert.Equal(t, nil, err)
	assert.Equal(t, "first-key", created.APIKey)
	assert.Equal(t, 15, created.PollingFrequency)

	updated, err := repo.UpsertAPIKey(ctx, 100, "second-key")
	assert.Equal(t, nil, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "second-key", updated.APIKey)

	var count int64
	db.Model(&model.User{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestSetNotificationThresholdRejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)
	createTestUser(t, db, 100)

	if err := repo.SetNotificationThreshold(ctx, 100, 20.5); err == nil {
		t.Fatal("expected out-of-range threshold to be rejected")
	}
	if err := repo.SetNotificationThreshold(ctx, 100, -0.1); err == nil {
		t.Fatal("expected negative threshold to be rejected")
	}

	assert.Equal(t, nil, repo.SetNotificationThreshold(ctx, 100, 12))
	if err := repo.SetNotificationThreshold(ctx, 100, math.NaN()); err == nil {
		t.Fatal("expected NaN threshold to be rejected")
	}
	user, err := repo.FindByTelegramID(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, 12.0, user.NotificationThreshold)

	assert.Equal(t, nil, repo.SetNotificationThreshold(ctx, 100, 20))
	user, err = repo.FindByTelegramID(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, 20.0, user.NotificationThreshold)
}

func TestSetPollingFrequencyRequiresPositive(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)
	createTestUser(t, db, 100)

	if err := repo.SetPollingFrequency(ctx, 100, 0); err == nil {
		t.Fatal("expected zero frequency to be rejected")
	}

	assert.Equal(t, nil, repo.SetPollingFrequency(ctx, 100, 30))
	user, err := repo.FindByTelegramID(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, 30, user.PollingFrequency)
}

func TestFirstWithAPIKeySkipsEmptyKeys(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewUserRepository(db)

	if _, err := repo.FirstWithAPIKey(ctx); err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound on empty table, got %v", err)
	}

	db.Create(&model.User{TelegramID: 1, APIKey: ""})
	db.Create(&model.User{TelegramID: 2, APIKey: "real-key"})

	user, err := repo.FirstWithAPIKey(ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, "real-key", user.APIKey)
}
