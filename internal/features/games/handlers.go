package games

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
)

// Handler обрабатывает меню игр, битвы и кости.
type Handler struct {
	service *Service
	bets    *Bets
	bot     ui.Sender
}

// NewHandler создаёт обработчик игр.
func NewHandler(service *Service, bets *Bets, bot ui.Sender) *Handler {
	return &Handler{service: service, bets: bets, bot: bot}
}

// GamesMenu: клавиатура выбора игры.
func GamesMenu() tgbotapi.InlineKeyboardMarkup {
	return ui.Rows(
		ui.Button("⚔️ Битва животных", ui.CbBattle),
		ui.Button("🎲 Кости", ui.CbDice),
		ui.Button("🎫 Лотерея", ui.CbLottery),
	)
}

// HandleGames показывает меню игр.
func (h *Handler) HandleGames(_ context.Context, chatID int64) {
	ui.Send(h.bot, chatID, "🎮 Выбери игру:", GamesMenu())
}

func battleKeyboard(bet int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			ui.Button("🔼 Повысить", ui.CbBetUp),
			ui.Button("🔽 Понизить", ui.CbBetDown),
		),
		tgbotapi.NewInlineKeyboardRow(ui.Button(fmt.Sprintf("⚔️ В бой (💎 %s)", common.FormatNumber(bet)), ui.CbBattleStart)),
	)
}

// HandleBattleMenu показывает текущую ставку.
func (h *Handler) HandleBattleMenu(_ context.Context, chatID, userID int64) {
	bet := h.bets.Get(userID)
	ui.Send(h.bot, chatID, fmt.Sprintf("⚔️ Битва животных\n\nТекущая ставка: 💎 %s\nВыбери ставку и начинай бой!",
		common.FormatNumber(bet)), battleKeyboard(bet))
}

// HandleBetChange удваивает или уменьшает вдвое ставку.
func (h *Handler) HandleBetChange(ctx context.Context, chatID, userID int64, increase bool) {
	h.bets.Change(userID, increase)
	h.HandleBattleMenu(ctx, chatID, userID)
}

// HandleBattle проводит бой на текущую ставку.
//
// Формат ответа:
//
//	⚔️ Результаты битвы
//	Твой Дракон: 75 силы
//	Соперник @bob, Лев: 10 силы
//	🎉 Победа! +💎 10
func (h *Handler) HandleBattle(ctx context.Context, chatID, userID int64) {
	bet := h.bets.Get(userID)
	res, err := h.service.Battle(ctx, userID, bet)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	var verdict string
	switch res.Outcome {
	case OutcomeWin:
		verdict = fmt.Sprintf("🎉 Победа! +💎 %s", common.FormatAmount(res.Bet))
	case OutcomeLoss:
		verdict = fmt.Sprintf("😢 Поражение. −💎 %s", common.FormatAmount(res.Bet))
	case OutcomeDraw:
		verdict = "🤝 Ничья, алмазы остаются при вас"
	case OutcomeVoid:
		verdict = "⚠️ Соперник больше не может покрыть ставку, бой отменён"
	}

	text := fmt.Sprintf("⚔️ Результаты битвы\n\nТвой %s: %s силы\nСоперник %s, %s: %s силы\n\n%s\nАлмазы: 💎 %s",
		res.Animal.Name, common.FormatAmount(res.Power),
		res.Opponent.DisplayName(), res.OpponentAnimal.Name, common.FormatAmount(res.OpponentPower),
		verdict, common.FormatAmount(res.Diamonds))
	ui.Send(h.bot, chatID, text, battleKeyboard(bet))

	if res.Outcome == OutcomeWin || res.Outcome == OutcomeLoss {
		h.notifyOpponent(res)
	}
}

func (h *Handler) notifyOpponent(res *BattleResult) {
	var text string
	if res.Outcome == OutcomeWin {
		text = fmt.Sprintf("⚔️ На твоего %s напали и победили. −💎 %s", res.OpponentAnimal.Name, common.FormatAmount(res.Bet))
	} else {
		text = fmt.Sprintf("⚔️ Твой %s отбился от нападения! +💎 %s", res.OpponentAnimal.Name, common.FormatAmount(res.Bet))
	}
	ui.Send(h.bot, res.Opponent.UserID, text, nil)
}

// HandleDice бросает кости.
func (h *Handler) HandleDice(ctx context.Context, chatID, userID int64) {
	res, err := h.service.Dice(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	var verdict string
	switch res.Outcome {
	case OutcomeWin:
		verdict = fmt.Sprintf("🎉 Победа! +💎 %s", common.FormatAmount(res.Bet))
	case OutcomeLoss:
		verdict = fmt.Sprintf("😢 Поражение. −💎 %s", common.FormatAmount(res.Bet))
	default:
		verdict = "🤝 Ничья"
	}
	ui.Send(h.bot, chatID, fmt.Sprintf("🎲 Кости\n\nТвой бросок: %d\nБросок бота: %d\n\n%s\nАлмазы: 💎 %s",
		res.Roll, res.BotRoll, verdict, common.FormatAmount(res.Diamonds)), GamesMenu())
}

func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrNoAnimals):
		ui.Send(h.bot, chatID, "❌ Для битвы нужны животные. Загляни в магазин!", nil)
	case errors.Is(err, common.ErrInsufficientFunds):
		ui.Send(h.bot, chatID, "❌ Не хватает алмазов для ставки", nil)
	case errors.Is(err, common.ErrNoOpponent):
		ui.Send(h.bot, chatID, "❌ Сейчас нет соперников, способных принять такую ставку", nil)
	case errors.Is(err, common.ErrInvalidAmount):
		ui.Send(h.bot, chatID, fmt.Sprintf("❌ Минимальная ставка: 💎 %d", h.service.MinBet()), nil)
	case errors.Is(err, common.ErrUserNotFound):
		ui.Send(h.bot, chatID, "❌ Сначала нажми /start", nil)
	default:
		log.WithError(err).Error("Ошибка игры")
		ui.Send(h.bot, chatID, "❌ Ошибка игры, попробуй позже", nil)
	}
}
