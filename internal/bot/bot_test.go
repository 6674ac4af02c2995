package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"supplies-radar/internal/model"
	"supplies-radar/internal/repository"
	"supplies-radar/internal/service"
	"supplies-radar/internal/session"
	"supplies-radar/internal/wbapi"
)

type fakeTelegram struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.mu.Lock()
		f.texts = append(f.texts, msg.Text)
		f.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return nil
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeTelegram) contains(text string) bool {
	for _, t := range f.sent() {
		if t == text {
			return true
		}
	}
	return false
}

type fakeValidator struct {
	valid bool
	err   error
}

func (f *fakeValidator) Ping(context.Context, string) (bool, error) {
	return f.valid, f.err
}

type fakeDirectory struct {
	warehouses []wbapi.Warehouse
}

func (f *fakeDirectory) Warehouses(context.Context, string) ([]wbapi.Warehouse, error) {
	return f.warehouses, nil
}

func newTestBot(t *testing.T, validator CredentialValidator) (*Bot, *fakeTelegram, *gorm.DB) {
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

	warehouses := repository.NewWarehouseRepository(db)
	api := &fakeTelegram{}
	b := &Bot{
		api:           api,
		users:         repository.NewUserRepository(db),
		warehouses:    warehouses,
		subscriptions: repository.NewSubscriptionRepository(db),
		sessions:      session.NewMemoryStore(time.Minute),
		validator:     validator,
		catalog:       service.NewCatalogService(&fakeDirectory{}, warehouses, zerolog.Nop()),
		log:           zerolog.Nop(),
	}
	return b, api, db
}

func privateMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
}

func TestRejectedKeyLeavesDialogAwaitingKey(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, &fakeValidator{valid: false})

	err := b.sessions.Set(ctx, 100, session.State{Stage: session.StageAwaitingAPIKey})
	assert.Equal(t, nil, err)

	err = b.handleMessage(ctx, privateMessage(100, "bad-key"))
	assert.Equal(t, nil, err)

	if _, err := b.users.FindByTelegramID(ctx, 100); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected no user row after rejected key, got %v", err)
	}

	state, ok, err := b.sessions.Get(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, session.StageAwaitingAPIKey, state.Stage)

	if !api.contains("❌ API ключ недействителен. Пожалуйста, проверьте его и введите заново.") {
		t.Fatalf("expected rejection message, sent: %v", api.sent())
	}
}

func TestAcceptedKeyRegistersUserAndAdvancesDialog(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, &fakeValidator{valid: true})

	err := b.sessions.Set(ctx, 100, session.State{Stage: session.StageAwaitingAPIKey})
	assert.Equal(t, nil, err)

	err = b.handleMessage(ctx, privateMessage(100, "good-key"))
	assert.Equal(t, nil, err)

	user, err := b.users.FindByTelegramID(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, "good-key", user.APIKey)

	state, ok, err := b.sessions.Get(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, session.StageChoosingWarehouses, state.Stage)

	if !api.contains("✅ API ключ сохранён! Теперь выберите склады для отслеживания.") {
		t.Fatalf("expected confirmation message, sent: %v", api.sent())
	}
}

func TestThresholdInputRejectsNaN(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, &fakeValidator{valid: true})

	_, err := b.users.UpsertAPIKey(ctx, 100, "key")
	assert.Equal(t, nil, err)
	assert.Equal(t, nil, b.users.SetNotificationThreshold(ctx, 100, 12))
	assert.Equal(t, nil, b.sessions.Set(ctx, 100, session.State{Stage: session.StageEditingThreshold}))

	err = b.handleMessage(ctx, privateMessage(100, "NaN"))
	assert.Equal(t, nil, err)

	if !api.contains("⚠️ Пожалуйста, введите число от 0 до 20.") {
		t.Fatalf("expected reprompt, sent: %v", api.sent())
	}

	user, err := b.users.FindByTelegramID(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, 12.0, user.NotificationThreshold)

	state, ok, err := b.sessions.Get(ctx, 100)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, session.StageEditingThreshold, state.Stage)
}

func TestSetPollingRequiresRegisteredUser(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t, &fakeValidator{valid: true})

	cb := &tgbotapi.CallbackQuery{
		ID:   "1",
		From: &tgbotapi.User{ID: 100},
		Message: &tgbotapi.Message{
			Chat:      &tgbotapi.Chat{ID: 100, Type: "private"},
			MessageID: 1,
		},
		Data: "set_polling:30",
	}

	err := b.handleCallback(ctx, cb)
	assert.Equal(t, nil, err)

	if !api.contains("Сначала зарегистрируйтесь через /start.") {
		t.Fatalf("expected registration prompt, sent: %v", api.sent())
	}
	if api.contains("🔄 Частота опроса обновлена!") {
		t.Fatal("polling frequency must not be confirmed for an unknown user")
	}

	if _, err := b.users.FindByTelegramID(ctx, 100); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected no user row, got %v", err)
	}
}
