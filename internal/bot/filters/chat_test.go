package filters

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

func TestCheckAccess(t *testing.T) {
	f := NewChatFilter()
	user := &tgbotapi.User{ID: 1}

	require.True(t, f.CheckAccess(&tgbotapi.Message{From: user, Chat: &tgbotapi.Chat{ID: 1, Type: "private"}}))
	require.False(t, f.CheckAccess(&tgbotapi.Message{From: user, Chat: &tgbotapi.Chat{ID: -100, Type: "supergroup"}}))
	require.False(t, f.CheckAccess(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1, Type: "private"}}))
	require.False(t, f.CheckAccess(&tgbotapi.Message{From: &tgbotapi.User{ID: 2, IsBot: true}, Chat: &tgbotapi.Chat{ID: 2, Type: "private"}}))
	require.False(t, f.CheckAccess(nil))
}

func TestCheckCallback(t *testing.T) {
	f := NewChatFilter()
	user := &tgbotapi.User{ID: 1}

	require.True(t, f.CheckCallback(&tgbotapi.CallbackQuery{From: user,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1, Type: "private"}}}))
	require.False(t, f.CheckCallback(&tgbotapi.CallbackQuery{From: user,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: -5, Type: "group"}}}))
	require.False(t, f.CheckCallback(&tgbotapi.CallbackQuery{}))
}
