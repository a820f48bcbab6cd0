// Package filters решает, какие апдейты бот вообще обрабатывает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только личные чаты с живыми пользователями.
// Зоопарк, кошелёк и диалоги ввода суммы в группах не работают.
type ChatFilter struct{}

func NewChatFilter() *ChatFilter { return &ChatFilter{} }

// CheckAccess проверяет сообщение.
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil || message.From.IsBot {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: нет отправителя или бот")
		return false
	}
	if !message.Chat.IsPrivate() {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
			"user_id":   message.From.ID,
		}).Debug("deny: не личный чат")
		return false
	}
	return true
}

// CheckCallback проверяет нажатие inline-кнопки.
func (f *ChatFilter) CheckCallback(q *tgbotapi.CallbackQuery) bool {
	if q == nil || q.From == nil || q.From.IsBot {
		return false
	}
	return q.Message == nil || q.Message.Chat == nil || q.Message.Chat.IsPrivate()
}
