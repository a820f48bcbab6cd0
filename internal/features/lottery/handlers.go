package lottery

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
)

// Handler обрабатывает меню лотереи и рассылает итоги розыгрышей.
type Handler struct {
	service *Service
	bot     ui.Sender
}

// NewHandler создаёт обработчик лотереи.
func NewHandler(service *Service, bot ui.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleLottery показывает цену билета и билеты игрока.
//
// Формат ответа:
//
//	🎫 Лотерея
//	Цена билета: 💵 100
//	Твоих билетов: 2
//	Розыгрыш: 15.10.2026 00:00 (через 3 ч 20 мин)
func (h *Handler) HandleLottery(ctx context.Context, chatID, userID int64) {
	n, err := h.service.MyTickets(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	draw := h.service.NextDraw()
	text := fmt.Sprintf("🎫 Лотерея\n\nЦена билета: 💵 %s\nТвоих билетов: %d\nРозыгрыш: %s (через %s)\n\nВесь банк забирает один случайный билет.",
		common.FormatAmount(h.service.Price()), n,
		common.FormatDateTime(draw, h.service.loc), common.FormatDuration(draw.Sub(h.service.clock.Now())))
	ui.Send(h.bot, chatID, text, ui.Rows(ui.Button("🎟 Купить билет", ui.CbLotteryBuy)))
}

// HandleBuy покупает один билет.
func (h *Handler) HandleBuy(ctx context.Context, chatID, userID int64) {
	p, err := h.service.BuyTicket(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	ui.Send(h.bot, chatID, fmt.Sprintf("✅ Билет куплен!\nТвоих билетов на розыгрыш: %d\nОстаток: 💵 %s",
		p.Tickets, common.FormatAmount(p.Money)),
		ui.Rows(ui.Button("🎟 Ещё билет", ui.CbLotteryBuy)))
}

// NotifyWinners поздравляет победителей розыгрышей.
func (h *Handler) NotifyWinners(results []Result) {
	for _, r := range results {
		ui.Send(h.bot, r.WinnerID, fmt.Sprintf("🎉 Ты выиграл в лотерее!\nБилетов в розыгрыше: %d\nВыигрыш: 💵 %s",
			r.Tickets, common.FormatAmount(r.Prize)), nil)
	}
}

func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		ui.Send(h.bot, chatID, fmt.Sprintf("❌ Не хватает денег. Билет стоит 💵 %s", common.FormatAmount(h.service.Price())), nil)
	case errors.Is(err, common.ErrUserNotFound):
		ui.Send(h.bot, chatID, "❌ Сначала нажми /start", nil)
	default:
		log.WithError(err).Error("Ошибка лотереи")
		ui.Send(h.bot, chatID, "❌ Ошибка лотереи, попробуй позже", nil)
	}
}
