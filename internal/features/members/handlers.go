// Package members: handlers.go обрабатывает /start: регистрация,
// приветствие и уведомление пригласившего.
package members

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/features/referral"
)

// Handler обрабатывает команды регистрации.
type Handler struct {
	service *Service
	bot     ui.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot ui.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleStart регистрирует игрока. payload: аргумент /start (например "ref42").
func (h *Handler) HandleStart(ctx context.Context, chatID int64, p Profile, payload string) {
	var referrerID *int64
	if id, ok := referral.ParseCode(payload); ok {
		referrerID = &id
	}

	reg, err := h.service.Register(ctx, p, referrerID)
	if err != nil {
		log.WithError(err).WithField("user_id", p.UserID).Error("Ошибка регистрации")
		ui.Send(h.bot, chatID, "❌ Не удалось зарегистрироваться, попробуй ещё раз", nil)
		return
	}

	if reg.Created {
		ui.Send(h.bot, chatID, fmt.Sprintf(
			"🦁 Добро пожаловать в Зоопарк, %s!\n\n"+
				"Покупай животных за 💎 алмазы, они приносят ⭐ звёзды каждый час.\n"+
				"Звёзды копятся до 24 часов, не забывай их собирать.\n"+
				"⭐ → 💰 деньги → 💵 USDT, а ещё есть битвы, кости и лотерея.",
			reg.User.DisplayName()), ui.MainMenu())
	} else {
		ui.Send(h.bot, chatID, fmt.Sprintf("👋 С возвращением, %s!", reg.User.DisplayName()), ui.MainMenu())
	}

	if reg.Referrer != nil {
		ui.Send(h.bot, reg.Referrer.UserID, fmt.Sprintf(
			"🎉 По твоей ссылке пришёл %s!\nБонус: 💰 %s\nВсего приглашено: %d",
			reg.User.DisplayName(),
			common.FormatAmount(h.service.bonus),
			reg.Referrer.TotalReferrals), nil)
	}
}

// HandleHelp выводит список команд.
func (h *Handler) HandleHelp(_ context.Context, chatID int64) {
	ui.Send(h.bot, chatID, "📖 Команды:\n"+
		"/start — главное меню\n"+
		"/zoo — мой зоопарк\n"+
		"/collect — собрать звёзды\n"+
		"/balance — кошелёк\n"+
		"/shop — магазин животных\n"+
		"/games — мини-игры\n"+
		"/ref — рефералы\n"+
		"/login — вход в админ-панель", ui.MainMenu())
}
