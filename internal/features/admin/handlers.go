// Package admin: handlers.go обрабатывает взаимодействие с админ-панелью.
// Поток: /admin → пароль → панель → модерация заявок, курсы, статистика.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/dialog"
	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/features/payments"
	"serotonyl.ru/zoo-bot/internal/features/wallet"
)

// Notifier сообщает игроку решение по заявке.
type Notifier interface {
	NotifyResolved(t *domain.Transaction)
}

// Handler обрабатывает админ-команды.
type Handler struct {
	service  *Service
	dialogs  *dialog.Store
	notifier Notifier
	bot      ui.Sender
	loc      *time.Location
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, dialogs *dialog.Store, notifier Notifier, bot ui.Sender, loc *time.Location) *Handler {
	return &Handler{service: service, dialogs: dialogs, notifier: notifier, bot: bot, loc: loc}
}

func panelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			ui.Button("📥 Пополнения", ui.Data(ui.CbAdminPending, string(domain.TxDeposit), "1")),
			ui.Button("📤 Выводы", ui.Data(ui.CbAdminPending, string(domain.TxWithdrawal), "1")),
		),
		tgbotapi.NewInlineKeyboardRow(ui.Button("📊 Статистика", ui.CbAdminStats)),
		tgbotapi.NewInlineKeyboardRow(
			ui.Button("⭐ Курс звёзд", ui.Data(ui.CbAdminRate, wallet.RateStarsToMoney)),
			ui.Button("💵 Курс USDT", ui.Data(ui.CbAdminRate, wallet.RateMoneyToUSDT)),
		),
	)
}

// HandleAdminCommand: /admin: пароль или панель.
// false: пользователь не админ, команду обрабатывать как обычную.
func (h *Handler) HandleAdminCommand(ctx context.Context, chatID, userID int64) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}
	if err := h.service.Authorize(ctx, userID); err != nil {
		h.dialogs.Set(userID, dialog.StateAwaitingPassword, nil)
		ui.Send(h.bot, chatID, "🔐 Введите пароль для доступа к админ-панели:", nil)
		return true
	}
	h.showPanel(chatID)
	return true
}

// HandleLogout: /logout.
func (h *Handler) HandleLogout(ctx context.Context, chatID, userID int64) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}
	if err := h.service.Logout(ctx, userID); err != nil {
		log.WithError(err).Error("Ошибка закрытия сессии")
	}
	h.dialogs.Clear(userID)
	ui.Send(h.bot, chatID, "🚪 Сессия закрыта", nil)
	return true
}

// HandleAdminMessage продолжает админ-диалог. false: сообщение не для админки.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID, userID int64, text string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}
	state := h.dialogs.Get(userID)
	if state == nil {
		return false
	}

	switch state.Name {
	case dialog.StateAwaitingPassword:
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	case dialog.StateAwaitingRate:
		which, _ := state.Data.(string)
		h.handleRateInput(ctx, chatID, userID, which, text)
		return true
	}
	return false
}

func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, password string) {
	h.dialogs.Clear(userID)
	if err := h.service.VerifyPassword(ctx, userID, strings.TrimSpace(password)); err != nil {
		h.replyError(chatID, err)
		return
	}
	ui.Send(h.bot, chatID, "✅ Аутентификация успешна!", nil)
	h.showPanel(chatID)
}

func (h *Handler) showPanel(chatID int64) {
	ui.Send(h.bot, chatID, "✅ Админ-панель открыта", panelKeyboard())
}

// HandlePending показывает страницу заявок с кнопками решения.
//
// Формат ответа:
//
//	📥 Заявки на пополнение: 12 (стр. 1/2)
//	📥 Пополнение #1a2b3c4d
//	Игрок: 42
//	Сумма: 25 USDT (TRC20)
func (h *Handler) HandlePending(ctx context.Context, chatID, userID int64, kind domain.TxKind, page int) {
	p, err := h.service.Pending(ctx, userID, kind, page)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	title := "📥 Заявки на пополнение"
	if kind == domain.TxWithdrawal {
		title = "📤 Заявки на вывод"
	}
	if p.Total == 0 {
		ui.Send(h.bot, chatID, title+": нет 🎉", panelKeyboard())
		return
	}

	ui.Send(h.bot, chatID, fmt.Sprintf("%s: %d (стр. %d/%d)", title, p.Total, p.Page, p.Pages), nil)
	for _, t := range p.Items {
		ui.Send(h.bot, chatID, payments.FormatTransaction(t, h.loc), payments.ResolveKeyboard(t.ID))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if p.Page > 1 {
		nav = append(nav, ui.Button("⬅️", ui.Data(ui.CbAdminPending, string(kind), strconv.Itoa(p.Page-1))))
	}
	if p.Page < p.Pages {
		nav = append(nav, ui.Button("➡️", ui.Data(ui.CbAdminPending, string(kind), strconv.Itoa(p.Page+1))))
	}
	if len(nav) > 0 {
		ui.Send(h.bot, chatID, "Страницы:", tgbotapi.NewInlineKeyboardMarkup(nav))
	}
}

// HandleResolve одобряет или отклоняет заявку и уведомляет игрока.
func (h *Handler) HandleResolve(ctx context.Context, chatID, userID int64, txID string, approve bool) {
	var (
		t   *domain.Transaction
		err error
	)
	if approve {
		t, err = h.service.Approve(ctx, userID, txID)
	} else {
		t, err = h.service.Reject(ctx, userID, txID)
	}
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	verdict := "✅ Одобрено"
	if !approve {
		verdict = "❌ Отклонено"
	}
	ui.Send(h.bot, chatID, verdict+"\n\n"+payments.FormatTransaction(t, h.loc), nil)
	h.notifier.NotifyResolved(t)
}

// HandleStats показывает агрегаты по игре.
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64) {
	if err := h.service.Authorize(ctx, userID); err != nil {
		h.replyError(chatID, err)
		return
	}
	st, err := h.service.SystemStats(ctx)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	r := h.service.Rates()
	ui.Send(h.bot, chatID, FormatStats(st, r), panelKeyboard())
}

// FormatStats: текст статистики.
func FormatStats(st domain.SystemStats, r wallet.Rates) string {
	return fmt.Sprintf("📊 Статистика\n\n👥 Игроков: %s\n🦁 Животных: %s\n💎 Алмазов: %s\n💰 Денег: %s\n💵 USDT: %s\n\n"+
		"⏳ Пополнений на проверке: %d\n⏳ Выводов на проверке: %d\n\nКурсы: ⭐ 1 = 💰 %s, 💵 1 = 💰 %s",
		common.FormatNumber(int64(st.Users)), common.FormatNumber(int64(st.Animals)),
		common.FormatAmount(st.Diamonds), common.FormatAmount(st.Money), common.FormatAmount(st.USDT),
		st.PendingDeposits, st.PendingWithdrawals,
		common.FormatAmount(r.StarsToMoney), common.FormatAmount(r.MoneyToUSDT))
}

// HandleRateStart ждёт новое значение курса.
func (h *Handler) HandleRateStart(ctx context.Context, chatID, userID int64, which string) {
	if err := h.service.Authorize(ctx, userID); err != nil {
		h.replyError(chatID, err)
		return
	}
	r := h.service.Rates()
	current := r.StarsToMoney
	label := "⭐ → 💰"
	if which == wallet.RateMoneyToUSDT {
		current = r.MoneyToUSDT
		label = "💰 за 💵 1"
	}
	h.dialogs.Set(userID, dialog.StateAwaitingRate, which)
	ui.Send(h.bot, chatID, fmt.Sprintf("Текущий курс %s: %s\nВведите новое значение:", label, common.FormatAmount(current)), nil)
}

func (h *Handler) handleRateInput(ctx context.Context, chatID, userID int64, which, text string) {
	value, err := payments.ParseAmount(text)
	if err != nil {
		ui.Send(h.bot, chatID, "❌ Введите положительное число", nil)
		return
	}
	h.dialogs.Clear(userID)

	r, err := h.service.UpdateRate(ctx, userID, which, value)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	ui.Send(h.bot, chatID, fmt.Sprintf("✅ Курсы обновлены: ⭐ 1 = 💰 %s, 💵 1 = 💰 %s",
		common.FormatAmount(r.StarsToMoney), common.FormatAmount(r.MoneyToUSDT)), panelKeyboard())
}

func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrNotAdmin), errors.Is(err, common.ErrWrongPassword),
		errors.Is(err, common.ErrTooManyAttempts), errors.Is(err, common.ErrInvalidRate):
		ui.Send(h.bot, chatID, "❌ "+rootMessage(err), nil)
	case errors.Is(err, common.ErrSessionExpired):
		ui.Send(h.bot, chatID, "🔐 Сессия истекла, отправьте /admin и введите пароль", nil)
	case errors.Is(err, common.ErrInvalidState):
		ui.Send(h.bot, chatID, "ℹ️ Заявка уже обработана", nil)
	case errors.Is(err, common.ErrNotFound):
		ui.Send(h.bot, chatID, "❌ Заявка не найдена", nil)
	default:
		log.WithError(err).Error("Ошибка админ-панели")
		ui.Send(h.bot, chatID, "❌ Ошибка: "+err.Error(), nil)
	}
}

// rootMessage: текст сентинела без обёрток.
func rootMessage(err error) string {
	for _, e := range []error{common.ErrNotAdmin, common.ErrWrongPassword, common.ErrTooManyAttempts, common.ErrInvalidRate} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return err.Error()
}
