// Package zoo: handlers.go обрабатывает кнопки «Мой зоопарк», «Собрать звёзды» и магазин.
package zoo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// Handler обрабатывает команды зоопарка.
type Handler struct {
	service *Service
	bot     ui.Sender
}

// NewHandler создаёт обработчик.
func NewHandler(service *Service, bot ui.Sender) *Handler {
	return &Handler{service: service, bot: bot}
}

// HandleZoo показывает животных и накопленные звёзды.
//
// Формат ответа:
//
//	🦁 Твой зоопарк (2 животных)
//	🦁 Лев — ⭐ 10/ч
//	...
//	Доход: ⭐ 22/ч
//	Накоплено: ⭐ 44
//	До заполнения: 21 ч 00 мин
func (h *Handler) HandleZoo(ctx context.Context, chatID, userID int64) {
	ov, err := h.service.Overview(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	animals := ov.User.Animals
	if len(animals) == 0 {
		ui.Send(h.bot, chatID, "🦁 В твоём зоопарке пока пусто.\nЗагляни в магазин, чтобы купить первое животное!",
			ui.Rows(ui.Button("🛒 Магазин", ui.CbShop)))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🦁 Твой зоопарк (%d %s)\n\n", len(animals), common.PluralizeAnimals(len(animals)))
	for _, a := range animals {
		fmt.Fprintf(&sb, "%s %s — ⭐ %s/ч\n", h.emoji(a.Species), a.Name, common.FormatAmount(a.StarsPerHour))
	}
	fmt.Fprintf(&sb, "\nДоход: ⭐ %s/ч\n", common.FormatAmount(ov.StarsPerHour))
	fmt.Fprintf(&sb, "Накоплено: ⭐ %s\n", common.FormatAmount(ov.Pending))
	if ov.UntilCap > 0 {
		fmt.Fprintf(&sb, "До заполнения: %s", common.FormatDuration(ov.UntilCap))
	} else {
		sb.WriteString("⚠️ Хранилище заполнено, собери звёзды!")
	}

	ui.Send(h.bot, chatID, sb.String(), nil)
}

// HandleCollect собирает звёзды.
func (h *Handler) HandleCollect(ctx context.Context, chatID, userID int64) {
	res, err := h.service.Collect(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	text := fmt.Sprintf("✅ Собрано ⭐ %s\nБаланс звёзд: ⭐ %s",
		common.FormatAmount(res.Collected), common.FormatAmount(res.Stars))
	if res.Capped {
		text += "\n\nℹ️ Звёзды копятся максимум 24 часа — заходи чаще."
	}
	ui.Send(h.bot, chatID, text, nil)
}

// HandleShop показывает разделы магазина.
func (h *Handler) HandleShop(_ context.Context, chatID int64) {
	ui.Send(h.bot, chatID, "🛒 Магазин животных\nВыбери раздел:", ui.Rows(
		ui.Button("🟢 "+RarityTitle(domain.RarityCommon), ui.Data(ui.CbShop, string(domain.RarityCommon))),
		ui.Button("🔵 "+RarityTitle(domain.RarityRare), ui.Data(ui.CbShop, string(domain.RarityRare))),
		ui.Button("🟣 "+RarityTitle(domain.RarityLegendary), ui.Data(ui.CbShop, string(domain.RarityLegendary))),
	))
}

// HandleShopCategory показывает животных одной редкости с кнопками покупки.
func (h *Handler) HandleShopCategory(_ context.Context, chatID int64, rarity domain.Rarity) {
	list := h.service.Catalog().List(rarity)
	if len(list) == 0 {
		ui.Send(h.bot, chatID, "❌ Раздел не найден", nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 %s животные\n\n", RarityTitle(rarity))
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(list)+1)
	for _, s := range list {
		fmt.Fprintf(&sb, "%s — ⭐ %s/ч, 💎 %s\n", s.Title(), common.FormatAmount(s.StarsPerHour), common.FormatAmount(s.PriceDiamonds))
		buttons = append(buttons, ui.Button(
			fmt.Sprintf("Купить %s за 💎 %s", s.Title(), common.FormatAmount(s.PriceDiamonds)),
			ui.Data(ui.CbBuy, s.Key),
		))
	}
	buttons = append(buttons, ui.Button("🔙 Назад", ui.CbShop))

	ui.Send(h.bot, chatID, sb.String(), ui.Rows(buttons...))
}

// HandleBuy покупает животное.
func (h *Handler) HandleBuy(ctx context.Context, chatID, userID int64, speciesKey string) {
	res, err := h.service.Purchase(ctx, userID, speciesKey)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	text := fmt.Sprintf("🎉 %s %s теперь живёт в твоём зоопарке!\nОсталось алмазов: 💎 %s",
		h.emoji(res.Animal.Species), res.Animal.Name, common.FormatAmount(res.User.Diamonds))
	if res.Settled.IsPositive() {
		text += fmt.Sprintf("\nЗаодно собрано ⭐ %s", common.FormatAmount(res.Settled))
	}
	ui.Send(h.bot, chatID, text, nil)
}

func (h *Handler) emoji(species string) string {
	if s, ok := h.service.Catalog().Get(species); ok {
		return s.Emoji
	}
	return "🐾"
}

func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrNothingToCollect):
		ui.Send(h.bot, chatID, "⏳ Звёзды ещё не накопились. Загляни позже!", nil)
	case errors.Is(err, common.ErrInsufficientFunds):
		ui.Send(h.bot, chatID, "❌ Не хватает алмазов для покупки", nil)
	case errors.Is(err, common.ErrUnknownSpecies):
		ui.Send(h.bot, chatID, "❌ Такого животного нет в магазине", nil)
	case errors.Is(err, common.ErrUserNotFound):
		ui.Send(h.bot, chatID, "❌ Сначала нажми /start", nil)
	default:
		log.WithError(err).Error("Ошибка зоопарка")
		ui.Send(h.bot, chatID, "❌ Что-то пошло не так, попробуй ещё раз", nil)
	}
}
