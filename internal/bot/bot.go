package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"supplies-radar/internal/model"
	"supplies-radar/internal/repository"
	"supplies-radar/internal/service"
	"supplies-radar/internal/session"
	"supplies-radar/internal/wbapi"
)

// CredentialValidator checks an API key against the upstream liveness
// endpoint.
type CredentialValidator interface {
	Ping(ctx context.Context, apiKey string) (bool, error)
}

// telegramAPI is the slice of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot drives the onboarding/settings dialogs and delivers coefficient
// notifications. Inbound updates are handled sequentially, so events within
// one user's dialog are always applied in arrival order.
type Bot struct {
	api           telegramAPI
	users         *repository.UserRepository
	warehouses    *repository.WarehouseRepository
	subscriptions *repository.SubscriptionRepository
	sessions      session.Store
	validator     CredentialValidator
	catalog       *service.CatalogService
	log           zerolog.Logger
}

func New(token string, users *repository.UserRepository, warehouses *repository.WarehouseRepository, subscriptions *repository.SubscriptionRepository, sessions session.Store, validator CredentialValidator, catalog *service.CatalogService, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	botLog := log.With().Str("component", "bot").Logger()
	botLog.Info().Str("account", api.Self.UserName).Msg("bot authorized")

	return &Bot{
		api:           api,
		users:         users,
		warehouses:    warehouses,
		subscriptions: subscriptions,
		sessions:      sessions,
		validator:     validator,
		catalog:       catalog,
		log:           botLog,
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.IsCommand() {
		b.log.Info().Int64("user", msg.From.ID).Str("command", msg.Command()).Msg("command")
		return b.handleCommand(ctx, msg)
	}

	state, ok, err := b.sessions.Get(ctx, msg.From.ID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		// No dialog in progress: nothing for the state machine to do.
		return nil
	}

	switch state.Stage {
	case session.StageAwaitingAPIKey:
		return b.handleAPIKeyInput(ctx, msg, false)
	case session.StageEditingAPIKey:
		return b.handleAPIKeyInput(ctx, msg, true)
	case session.StageEditingThreshold:
		return b.handleThresholdInput(ctx, msg)
	default:
		// Warehouse selection is driven by callbacks only.
		return nil
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "menu":
		return b.sendMainMenu(msg.Chat.ID)
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Используйте /start или /menu.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	_, err := b.users.FindByTelegramID(ctx, msg.From.ID)
	switch {
	case err == nil:
		return b.sendText(msg.Chat.ID, "Вы уже зарегистрированы!")
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := b.sessions.Set(ctx, msg.From.ID, session.State{Stage: session.StageAwaitingAPIKey}); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return b.sendText(msg.Chat.ID,
			"🌟 Добро пожаловать! Пожалуйста, введите ваш API ключ для работы с Wildberries.\n"+
				"🔑 Необходимо, чтобы ключ имел доступ к категории Поставки!")
	default:
		return fmt.Errorf("find user: %w", err)
	}
}

func (b *Bot) handleAPIKeyInput(ctx context.Context, msg *tgbotapi.Message, editing bool) error {
	apiKey := strings.TrimSpace(msg.Text)

	if err := b.sendText(msg.Chat.ID, "Проверка ключа, ожидайте"); err != nil {
		return err
	}

	valid, err := b.validator.Ping(ctx, apiKey)
	if err != nil {
		b.log.Warn().Err(err).Int64("user", msg.From.ID).Msg("credential check failed")
	}
	if !valid {
		if editing {
			return b.sendText(msg.Chat.ID, "⚠️ Недействительный API ключ. Пожалуйста, введите корректный API ключ.")
		}
		return b.sendText(msg.Chat.ID, "❌ API ключ недействителен. Пожалуйста, проверьте его и введите заново.")
	}

	user, err := b.users.UpsertAPIKey(ctx, msg.From.ID, apiKey)
	if err != nil {
		return err
	}

	if editing {
		if err := b.sessions.Clear(ctx, msg.From.ID); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		if err := b.sendText(msg.Chat.ID, "API ключ обновлён!"); err != nil {
			return err
		}
		return b.sendMainMenu(msg.Chat.ID)
	}

	result, err := b.catalog.Refresh(ctx, apiKey)
	if err != nil {
		b.log.Error().Err(err).Msg("catalog refresh after registration")
	} else if !result.OK() {
		if err := b.sendText(msg.Chat.ID, result.Message); err != nil {
			return err
		}
	}

	if err := b.sendText(msg.Chat.ID, "✅ API ключ сохранён! Теперь выберите склады для отслеживания."); err != nil {
		return err
	}
	if err := b.sessions.Set(ctx, msg.From.ID, session.State{Stage: session.StageChoosingWarehouses}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return b.sendWarehouseSelection(ctx, msg.Chat.ID, user.ID, 0)
}

func (b *Bot) handleThresholdInput(ctx context.Context, msg *tgbotapi.Message) error {
	threshold, err := strconv.ParseFloat(strings.TrimSpace(msg.Text), 64)
	if err != nil || math.IsNaN(threshold) || threshold < model.ThresholdMin || threshold > model.ThresholdMax {
		return b.sendText(msg.Chat.ID, "⚠️ Пожалуйста, введите число от 0 до 20.")
	}

	if err := b.users.SetNotificationThreshold(ctx, msg.From.ID, threshold); err != nil {
		b.log.Error().Err(err).Int64("user", msg.From.ID).Msg("store threshold")
		return b.sendText(msg.Chat.ID, "⚠️ Пожалуйста, введите число от 0 до 20.")
	}

	if err := b.sessions.Clear(ctx, msg.From.ID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if err := b.sendText(msg.Chat.ID, "📊 Порог коэффициента обновлён!"); err != nil {
		return err
	}
	return b.sendMainMenu(msg.Chat.ID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	action, err := ParseAction(cb.Data)
	if err != nil {
		b.log.Warn().Err(err).Int64("user", cb.From.ID).Msg("rejected callback token")
		b.ack(cb.ID, "")
		return nil
	}

	switch action.Kind {
	case ActionSelect:
		return b.handleSelect(ctx, cb, action)
	case ActionPage:
		return b.handlePage(ctx, cb, action)
	case ActionDone:
		b.ack(cb.ID, "")
		return b.handleDone(ctx, cb)
	case ActionSettings:
		b.ack(cb.ID, "")
		return b.handleSettings(ctx, cb)
	case ActionEditWarehouses:
		b.ack(cb.ID, "")
		return b.handleEditWarehouses(ctx, cb)
	case ActionEditPollingFrequency:
		b.ack(cb.ID, "")
		return b.sendWithMarkup(cb.Message.Chat.ID, "🔄 Выберите новую частоту опроса:", frequencyKeyboard())
	case ActionSetPolling:
		b.ack(cb.ID, "")
		return b.handleSetPolling(ctx, cb, action)
	case ActionEditThreshold:
		b.ack(cb.ID, "")
		if err := b.sessions.Set(ctx, cb.From.ID, session.State{Stage: session.StageEditingThreshold}); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return b.sendText(cb.Message.Chat.ID, "📊 Введите новый порог коэффициента:")
	case ActionEditAPIKey:
		b.ack(cb.ID, "")
		if err := b.sessions.Set(ctx, cb.From.ID, session.State{Stage: session.StageEditingAPIKey}); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return b.sendText(cb.Message.Chat.ID, "🔑 Введите новый API ключ для работы с Wildberries:")
	default:
		b.ack(cb.ID, "")
		return nil
	}
}

func (b *Bot) handleSelect(ctx context.Context, cb *tgbotapi.CallbackQuery, action Action) error {
	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		b.ack(cb.ID, "")
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(cb.Message.Chat.ID, "Сначала зарегистрируйтесь через /start.")
		}
		return err
	}

	subscribed, err := b.subscriptions.Toggle(ctx, user.ID, action.WarehouseID)
	if err != nil {
		// Duplicate insert or similar race: log and keep the dialog alive.
		b.log.Error().Err(err).Uint("user", user.ID).Int64("warehouse", action.WarehouseID).Msg("toggle subscription")
		b.ack(cb.ID, "")
		return nil
	}

	if subscribed {
		b.ack(cb.ID, fmt.Sprintf("✅ Склад %d добавлен в ваш список.", action.WarehouseID))
	} else {
		b.ack(cb.ID, fmt.Sprintf("❌ Склад %d удалён из вашего списка.", action.WarehouseID))
	}

	return b.refreshWarehouseMarkup(ctx, cb.Message.Chat.ID, cb.Message.MessageID, user.ID, action.Page)
}

func (b *Bot) handlePage(ctx context.Context, cb *tgbotapi.CallbackQuery, action Action) error {
	b.ack(cb.ID, "")

	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if state, ok, err := b.sessions.Get(ctx, cb.From.ID); err == nil && ok {
		state.Page = action.Page
		if err := b.sessions.Set(ctx, cb.From.ID, state); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	return b.refreshWarehouseMarkup(ctx, cb.Message.Chat.ID, cb.Message.MessageID, user.ID, action.Page)
}

func (b *Bot) handleDone(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if err := b.sessions.Clear(ctx, cb.From.ID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if err := b.sendText(cb.Message.Chat.ID, "🎉 Настройка завершена! Теперь мы будем отслеживать коэффициенты на выбранных вами складах."); err != nil {
		return err
	}
	return b.sendMainMenu(cb.Message.Chat.ID)
}

func (b *Bot) handleSettings(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(cb.Message.Chat.ID, "❌ Настройки не найдены.")
		}
		return err
	}

	names, err := b.warehouses.ListNamesByUser(ctx, user.ID)
	if err != nil {
		return err
	}
	warehouseNames := "Не выбрано"
	if len(names) > 0 {
		warehouseNames = strings.Join(names, ", ")
	}

	text := fmt.Sprintf(
		"Ваши настройки:\n📦 Склады: %s\n🔄 Частота опроса: %d минут\n📊 Порог коэффициента: %s",
		warehouseNames,
		user.PollingFrequency,
		strconv.FormatFloat(user.NotificationThreshold, 'f', -1, 64),
	)
	if err := b.sendText(cb.Message.Chat.ID, text); err != nil {
		return err
	}
	return b.sendWithMarkup(cb.Message.Chat.ID, "🛠️ Выберите действие:", settingsKeyboard())
}

func (b *Bot) handleEditWarehouses(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(cb.Message.Chat.ID, "Сначала зарегистрируйтесь через /start.")
		}
		return err
	}

	if err := b.sessions.Set(ctx, cb.From.ID, session.State{Stage: session.StageEditingWarehouses}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return b.sendWarehouseSelection(ctx, cb.Message.Chat.ID, user.ID, 0)
}

func (b *Bot) handleSetPolling(ctx context.Context, cb *tgbotapi.CallbackQuery, action Action) error {
	user, err := b.users.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return b.sendText(cb.Message.Chat.ID, "Сначала зарегистрируйтесь через /start.")
		}
		return err
	}
	if err := b.users.SetPollingFrequency(ctx, user.TelegramID, action.Frequency); err != nil {
		return err
	}
	if err := b.sendText(cb.Message.Chat.ID, "🔄 Частота опроса обновлена!"); err != nil {
		return err
	}
	return b.sendMainMenu(cb.Message.Chat.ID)
}

// NotifyCoefficients delivers qualifying coefficients to the user's chat in
// upstream order. Implements the poller's Notifier.
func (b *Bot) NotifyCoefficients(_ context.Context, user model.User, coefficients []wbapi.Coefficient) error {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("❗️ Найдено %d подходящих коэффициентов:\n", len(coefficients)))
	for i, c := range coefficients {
		if i > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(fmt.Sprintf("%s | %s | %s | %s",
			c.WarehouseName,
			strconv.FormatFloat(c.Value, 'f', -1, 64),
			c.BoxTypeName,
			c.Date,
		))
	}
	return b.sendText(user.TelegramID, builder.String())
}

func (b *Bot) sendWarehouseSelection(ctx context.Context, chatID int64, userID uint, page int) error {
	markup, err := b.buildWarehouseMarkup(ctx, userID, page)
	if err != nil {
		return err
	}
	return b.sendWithMarkup(chatID, "📦 Выберите склады для отслеживания:", markup)
}

func (b *Bot) refreshWarehouseMarkup(ctx context.Context, chatID int64, messageID int, userID uint, page int) error {
	markup, err := b.buildWarehouseMarkup(ctx, userID, page)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup)
	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("edit keyboard: %w", err)
	}
	return nil
}

func (b *Bot) buildWarehouseMarkup(ctx context.Context, userID uint, page int) (tgbotapi.InlineKeyboardMarkup, error) {
	warehouses, err := b.warehouses.ListAll(ctx)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	ids, err := b.subscriptions.ListWarehouseIDs(ctx, userID)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}
	selected := make(map[int64]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	return warehouseKeyboard(warehouses, selected, page), nil
}

func (b *Bot) sendMainMenu(chatID int64) error {
	return b.sendWithMarkup(chatID, "🏠 Главное меню:", mainMenuKeyboard())
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
}
