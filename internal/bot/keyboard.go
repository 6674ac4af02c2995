package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"supplies-radar/internal/model"
)

const warehousesPerPage = 6

// warehouseKeyboard renders one page of the catalog with checkmarks on the
// user's current selection and a navigation row underneath.
func warehouseKeyboard(warehouses []model.Warehouse, selected map[int64]bool, page int) tgbotapi.InlineKeyboardMarkup {
	start := page * warehousesPerPage
	if start > len(warehouses) {
		start = len(warehouses)
	}
	end := start + warehousesPerPage
	if end > len(warehouses) {
		end = len(warehouses)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, w := range warehouses[start:end] {
		label := w.Name
		if selected[w.ID] {
			label = "✅ " + w.Name
		}
		token := Action{Kind: ActionSelect, WarehouseID: w.ID, Page: page}.Encode()
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, token))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("<<", Action{Kind: ActionPage, Page: page - 1}.Encode()))
	}
	nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Сохранить", Action{Kind: ActionDone}.Encode()))
	if end < len(warehouses) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(">>", Action{Kind: ActionPage, Page: page + 1}.Encode()))
	}
	rows = append(rows, nav)

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Настройки", Action{Kind: ActionSettings}.Encode()),
		),
	)
}

func settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 Изменить склады", Action{Kind: ActionEditWarehouses}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Частота опроса", Action{Kind: ActionEditPollingFrequency}.Encode()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Порог коэффициента", Action{Kind: ActionEditThreshold}.Encode()),
			tgbotapi.NewInlineKeyboardButtonData("🔑 Изменить API ключ", Action{Kind: ActionEditAPIKey}.Encode()),
		),
	)
}

func frequencyKeyboard() tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, f := range allowedFrequencies {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d минут", f),
			Action{Kind: ActionSetPolling, Frequency: f}.Encode(),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
