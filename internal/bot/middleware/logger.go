// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// UpdateKind: тип апдейта для логов и метрик.
func UpdateKind(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && len(update.Message.Photo) > 0:
		return "photo"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil:
		return "message"
	}
	return "other"
}

// LogUpdate логирует входящий апдейт.
// Записывает: user_id, chat_id, username, текст или callback data (первые 50 символов).
func LogUpdate(update tgbotapi.Update) {
	var (
		from *tgbotapi.User
		chat int64
		text string
	)
	switch {
	case update.CallbackQuery != nil:
		from = update.CallbackQuery.From
		text = update.CallbackQuery.Data
		if update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil {
			chat = update.CallbackQuery.Message.Chat.ID
		}
	case update.Message != nil:
		from = update.Message.From
		text = update.Message.Text
		if update.Message.Chat != nil {
			chat = update.Message.Chat.ID
		}
	default:
		return
	}
	if from == nil {
		return
	}

	if r := []rune(text); len(r) > 50 {
		text = string(r[:50]) + "..."
	}

	log.WithFields(log.Fields{
		"user_id":  from.ID,
		"chat_id":  chat,
		"username": from.UserName,
		"kind":     UpdateKind(update),
		"text":     text,
	}).Debug("Входящий апдейт")
}
