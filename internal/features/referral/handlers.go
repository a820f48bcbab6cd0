package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
)

// Handler обрабатывает кнопку «Рефералы».
type Handler struct {
	service     *Service
	bot         ui.Sender
	botUsername string
	bonus       decimal.Decimal
}

// NewHandler создаёт обработчик. botUsername нужен для ссылок-приглашений.
func NewHandler(service *Service, bot ui.Sender, botUsername string, bonus decimal.Decimal) *Handler {
	return &Handler{service: service, bot: bot, botUsername: botUsername, bonus: bonus}
}

// HandleReferrals показывает ссылку и статистику по уровням.
func (h *Handler) HandleReferrals(ctx context.Context, chatID, userID int64) {
	st, err := h.service.Stats(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			ui.Send(h.bot, chatID, "❌ Сначала нажми /start", nil)
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("Ошибка реферальной статистики")
		ui.Send(h.bot, chatID, "❌ Не удалось получить статистику", nil)
		return
	}

	ui.Send(h.bot, chatID, FormatStats(st, Link(h.botUsername, userID), h.bonus), nil)
}

// FormatStats собирает текст статистики.
//
// Формат ответа:
//
//	👥 Реферальная программа
//	За каждого друга: 💰 300
//	🔗 https://t.me/zoo_bot?start=ref42
//	Уровень 1: 3 друга (10%), пополнения 💵 120, доход 💵 12
//	...
func FormatStats(st *Stats, link string, bonus decimal.Decimal) string {
	var sb strings.Builder
	sb.WriteString("👥 Реферальная программа\n\n")
	fmt.Fprintf(&sb, "За каждого приглашённого друга: 💰 %s\n", common.FormatAmount(bonus))
	fmt.Fprintf(&sb, "🔗 Твоя ссылка:\n%s\n\n", link)

	for _, lvl := range st.Levels {
		fmt.Fprintf(&sb, "Уровень %d: %d %s (%s%%), пополнения 💵 %s, доход 💵 %s\n",
			lvl.Number, lvl.Count, common.PluralizeReferrals(lvl.Count),
			lvl.Rate.Shift(2).String(),
			common.FormatAmount(lvl.Deposits), common.FormatAmount(lvl.Earnings))
	}

	fmt.Fprintf(&sb, "\n👥 Всего рефералов: %d\n", st.TotalReferrals)
	fmt.Fprintf(&sb, "💵 Доход с пополнений: %s\n", common.FormatAmount(st.TotalEarnings))
	fmt.Fprintf(&sb, "💰 Бонусы за приглашения: %s", common.FormatAmount(st.BonusEarnings))
	return sb.String()
}
