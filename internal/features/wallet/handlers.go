package wallet

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// Handler обрабатывает кнопку «Баланс» и обмены.
type Handler struct {
	service *Service
	bot     ui.Sender
}

// NewHandler создаёт обработчик кошелька.
func NewHandler(service *Service, bot ui.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleBalance показывает все четыре баланса и курсы.
//
// Формат ответа:
//
//	💼 Твой кошелёк
//	⭐ Звёзды: 150
//	💰 Деньги: 12 500
//	💎 Алмазы: 40
//	💵 USDT: 2
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	u, err := h.service.Balance(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	rates := h.service.Rates().Get()

	text := FormatWallet(u) + fmt.Sprintf("\n\nКурсы: ⭐ 1 = 💰 %s, 💵 1 = 💰 %s",
		common.FormatAmount(rates.StarsToMoney), common.FormatAmount(rates.MoneyToUSDT))

	ui.Send(h.bot, chatID, text, ui.Rows(
		ui.Button("💫 Обменять звёзды на деньги", ui.CbConvertStars),
		ui.Button("💵 Обменять деньги на USDT", ui.CbConvertMoney),
		ui.Button("📥 Пополнить", ui.CbDeposit),
		ui.Button("📤 Вывести", ui.CbWithdraw),
		ui.Button("📜 История заявок", ui.CbHistory),
	))
}

// HandleConvertStars меняет звёзды на деньги.
func (h *Handler) HandleConvertStars(ctx context.Context, chatID, userID int64) {
	conv, err := h.service.ConvertStars(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			ui.Send(h.bot, chatID, "❌ Нет звёзд для обмена. Сначала собери их в зоопарке!", nil)
			return
		}
		h.replyError(chatID, err)
		return
	}
	ui.Send(h.bot, chatID, fmt.Sprintf("✅ Обменяно ⭐ %s → 💰 %s\nДеньги: 💰 %s",
		common.FormatAmount(conv.Spent), common.FormatAmount(conv.Received),
		common.FormatAmount(conv.User.Money)), nil)
}

// HandleConvertMoney меняет деньги на USDT.
func (h *Handler) HandleConvertMoney(ctx context.Context, chatID, userID int64) {
	conv, err := h.service.ConvertMoney(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientBalance) {
			ui.Send(h.bot, chatID, fmt.Sprintf("❌ Для обмена нужно минимум 💰 %s",
				common.FormatAmount(h.service.Rates().Get().MoneyToUSDT)), nil)
			return
		}
		h.replyError(chatID, err)
		return
	}
	ui.Send(h.bot, chatID, fmt.Sprintf("✅ Обменяно 💰 %s → 💵 %s USDT\nОстаток денег: 💰 %s\nUSDT: 💵 %s",
		common.FormatAmount(conv.Spent), common.FormatAmount(conv.Received),
		common.FormatAmount(conv.User.Money), common.FormatAmount(conv.User.USDT)), nil)
}

// FormatWallet выводит балансы игрока.
func FormatWallet(u *domain.User) string {
	return fmt.Sprintf("💼 Твой кошелёк\n\n⭐ Звёзды: %s\n💰 Деньги: %s\n💎 Алмазы: %s\n💵 USDT: %s",
		common.FormatAmount(u.Stars), common.FormatAmount(u.Money),
		common.FormatAmount(u.Diamonds), common.FormatAmount(u.USDT))
}

func (h *Handler) replyError(chatID int64, err error) {
	if errors.Is(err, common.ErrUserNotFound) {
		ui.Send(h.bot, chatID, "❌ Сначала нажми /start", nil)
		return
	}
	log.WithError(err).Error("Ошибка кошелька")
	ui.Send(h.bot, chatID, "❌ Ошибка кошелька, попробуй позже", nil)
}
