package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/dialog"
	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// сколько заявок показываем в истории игрока
const historyLimit = 10

// DepositDraft: пополнение, ожидающее скриншот оплаты.
type DepositDraft struct {
	Network string
	Amount  decimal.Decimal
}

// Handler ведёт диалоги пополнения, вывода и настройки адресов.
type Handler struct {
	service *Service
	users   Profiles
	dialogs *dialog.Store
	bot     ui.Sender
	admins  []int64
	loc     *time.Location
}

// Profiles: откуда берём адреса вывода игрока.
type Profiles interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
}

// NewHandler создаёт обработчик платежей. admins получают уведомления о новых заявках.
func NewHandler(service *Service, users Profiles, dialogs *dialog.Store, bot ui.Sender, admins []int64, loc *time.Location) *Handler {
	return &Handler{service: service, users: users, dialogs: dialogs, bot: bot, admins: admins, loc: loc}
}

func networkButtons(prefix string, networks []string) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(networks))
	for _, n := range networks {
		row = append(row, ui.Button(strings.ToUpper(n), ui.Data(prefix, n)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// HandleDepositStart предлагает выбрать сеть пополнения.
func (h *Handler) HandleDepositStart(_ context.Context, chatID int64) {
	networks := h.service.DepositNetworks()
	if len(networks) == 0 {
		ui.Send(h.bot, chatID, "❌ Пополнение временно недоступно", nil)
		return
	}
	ui.Send(h.bot, chatID, "📥 Пополнение USDT\n\nВыбери сеть:", networkButtons(ui.CbDeposit, networks))
}

// HandleDepositNetwork показывает адрес и ждёт сумму.
func (h *Handler) HandleDepositNetwork(_ context.Context, chatID, userID int64, network string) {
	addr, err := h.service.DepositAddress(network)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.dialogs.Set(userID, dialog.StateDepositAmount, network)
	ui.Send(h.bot, chatID, fmt.Sprintf("💳 USDT %s\n\nАдрес для оплаты:\n%s\n\nВведи сумму пополнения (минимум %s USDT):",
		strings.ToUpper(network), addr, common.FormatAmount(h.service.MinDeposit())), nil)
}

// HandleWithdrawStart предлагает выбрать сеть вывода.
func (h *Handler) HandleWithdrawStart(_ context.Context, chatID int64) {
	ui.Send(h.bot, chatID, "📤 Вывод USDT\n\nВыбери сеть:", networkButtons(ui.CbWithdraw, Networks))
}

// HandleWithdrawNetwork ждёт сумму вывода или просит сначала задать адрес.
func (h *Handler) HandleWithdrawNetwork(ctx context.Context, chatID, userID int64, network string) {
	if !KnownNetwork(network) {
		h.replyError(chatID, common.ErrUnknownNetwork)
		return
	}
	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	addr := u.WithdrawalAddresses[network]
	if addr == "" {
		ui.Send(h.bot, chatID, fmt.Sprintf("❌ Адрес вывода для %s не задан", strings.ToUpper(network)),
			ui.Rows(ui.Button("✏️ Указать адрес", ui.Data(ui.CbSetAddress, network))))
		return
	}
	h.dialogs.Set(userID, dialog.StateWithdrawalAmount, network)
	ui.Send(h.bot, chatID, fmt.Sprintf("📤 Вывод на %s\nДоступно: 💵 %s\n\nВведи сумму (минимум %s USDT):",
		addr, common.FormatAmount(u.USDT), common.FormatAmount(h.service.MinWithdrawal())), nil)
}

// HandleSettings показывает сохранённые адреса вывода.
func (h *Handler) HandleSettings(ctx context.Context, chatID, userID int64) {
	u, err := h.users.GetUser(ctx, userID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}

	var sb strings.Builder
	sb.WriteString("⚙️ Адреса вывода\n\n")
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(Networks))
	for _, n := range Networks {
		addr := u.WithdrawalAddresses[n]
		if addr == "" {
			addr = "не задан"
		}
		fmt.Fprintf(&sb, "%s: %s\n", strings.ToUpper(n), addr)
		buttons = append(buttons, ui.Button("✏️ "+strings.ToUpper(n), ui.Data(ui.CbSetAddress, n)))
	}
	ui.Send(h.bot, chatID, sb.String(), ui.Rows(buttons...))
}

// HandleSetAddressStart ждёт адрес для сети.
func (h *Handler) HandleSetAddressStart(_ context.Context, chatID, userID int64, network string) {
	if !KnownNetwork(network) {
		h.replyError(chatID, common.ErrUnknownNetwork)
		return
	}
	h.dialogs.Set(userID, dialog.StateWithdrawalAddress, network)
	ui.Send(h.bot, chatID, fmt.Sprintf("✏️ Отправь адрес USDT в сети %s:", strings.ToUpper(network)), nil)
}

// HandleText продолжает диалог. false: сообщение не относится к платежам.
func (h *Handler) HandleText(ctx context.Context, chatID, userID int64, text string) bool {
	st := h.dialogs.Get(userID)
	if st == nil {
		return false
	}
	network, _ := st.Data.(string)

	switch st.Name {
	case dialog.StateDepositAmount:
		amount, err := ParseAmount(text)
		if err == nil && amount.LessThan(h.service.MinDeposit()) {
			err = common.ErrInvalidAmount
		}
		if err != nil {
			ui.Send(h.bot, chatID, fmt.Sprintf("❌ Введи сумму числом, минимум %s USDT", common.FormatAmount(h.service.MinDeposit())), nil)
			return true
		}
		h.dialogs.Set(userID, dialog.StateDepositProof, DepositDraft{Network: network, Amount: amount})
		ui.Send(h.bot, chatID, fmt.Sprintf("💵 Сумма: %s USDT\n\n📸 Отправь скриншот оплаты одним фото.", common.FormatAmount(amount)), nil)
		return true

	case dialog.StateDepositProof:
		ui.Send(h.bot, chatID, "📸 Нужен скриншот оплаты. Отправь фото.", nil)
		return true

	case dialog.StateWithdrawalAddress:
		if err := h.service.SetWithdrawalAddress(ctx, userID, network, text); err != nil {
			if errors.Is(err, common.ErrInvalidAddress) {
				ui.Send(h.bot, chatID, fmt.Sprintf("❌ Это не похоже на адрес %s, попробуй ещё раз", strings.ToUpper(network)), nil)
				return true
			}
			h.dialogs.Clear(userID)
			h.replyError(chatID, err)
			return true
		}
		h.dialogs.Clear(userID)
		ui.Send(h.bot, chatID, fmt.Sprintf("✅ Адрес %s сохранён:\n%s", strings.ToUpper(network), strings.TrimSpace(text)), nil)
		return true

	case dialog.StateWithdrawalAmount:
		amount, err := ParseAmount(text)
		if err != nil {
			ui.Send(h.bot, chatID, "❌ Введи сумму числом", nil)
			return true
		}
		h.dialogs.Clear(userID)
		t, err := h.service.CreateWithdrawal(ctx, userID, amount, network)
		if err != nil {
			h.replyError(chatID, err)
			return true
		}
		ui.Send(h.bot, chatID, fmt.Sprintf("✅ Заявка на вывод 💵 %s создана и ждёт проверки.\nСумма зарезервирована.",
			common.FormatAmount(t.Amount)), nil)
		h.notifyAdmins(t, "")
		return true
	}
	return false
}

// HandlePhoto принимает скриншот оплаты. false: фото не ждали.
func (h *Handler) HandlePhoto(ctx context.Context, chatID, userID int64, fileID string) bool {
	st := h.dialogs.Get(userID)
	if st == nil || st.Name != dialog.StateDepositProof {
		return false
	}
	draft, ok := st.Data.(DepositDraft)
	h.dialogs.Clear(userID)
	if !ok {
		return false
	}

	t, err := h.service.CreateDeposit(ctx, userID, draft.Amount, draft.Network, fileID)
	if err != nil {
		h.replyError(chatID, err)
		return true
	}
	ui.Send(h.bot, chatID, fmt.Sprintf("✅ Заявка на пополнение 💵 %s отправлена. Баланс пополнится после проверки.",
		common.FormatAmount(t.Amount)), nil)
	h.notifyAdmins(t, fileID)
	return true
}

// FormatTransaction: карточка заявки для админа.
func FormatTransaction(t *domain.Transaction, loc *time.Location) string {
	kind := "📥 Пополнение"
	if t.Kind == domain.TxWithdrawal {
		kind = "📤 Вывод"
	}
	s := fmt.Sprintf("%s #%s\nИгрок: %d\nСумма: %s USDT (%s)\nДата: %s",
		kind, shortID(t.ID), t.UserID, common.FormatAmount(t.Amount), strings.ToUpper(t.Network),
		common.FormatDateTime(t.CreatedAt, loc))
	if t.Kind == domain.TxWithdrawal {
		s += "\nАдрес: " + t.Address
	}
	return s
}

// ResolveKeyboard: кнопки одобрения и отказа.
func ResolveKeyboard(txID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		ui.Button("✅ Одобрить", ui.Data(ui.CbApprove, txID)),
		ui.Button("❌ Отклонить", ui.Data(ui.CbReject, txID)),
	))
}

func (h *Handler) notifyAdmins(t *domain.Transaction, proofFileID string) {
	text := "🆕 Новая заявка\n\n" + FormatTransaction(t, h.loc)
	for _, adminID := range h.admins {
		if proofFileID == "" {
			ui.Send(h.bot, adminID, text, ResolveKeyboard(t.ID))
			continue
		}
		photo := tgbotapi.NewPhoto(adminID, tgbotapi.FileID(proofFileID))
		photo.Caption = text
		photo.ReplyMarkup = ResolveKeyboard(t.ID)
		if _, err := h.bot.Send(photo); err != nil {
			log.WithError(err).WithField("admin_id", adminID).Error("Не удалось уведомить админа")
		}
	}
}

// HandleHistory: последние заявки игрока.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	items, err := h.service.UserHistory(ctx, userID, historyLimit)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if len(items) == 0 {
		ui.Send(h.bot, chatID, "📜 Заявок пока нет", nil)
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Последние заявки\n\n")
	for _, t := range items {
		kind := "📥"
		if t.Kind == domain.TxWithdrawal {
			kind = "📤"
		}
		fmt.Fprintf(&sb, "%s %s USDT · %s · %s\n", kind, common.FormatAmount(t.Amount), statusLabel(t.Status),
			common.FormatDateTime(t.CreatedAt, h.loc))
	}
	ui.Send(h.bot, chatID, sb.String(), nil)
}

// NotifyResolved сообщает игроку решение по заявке.
func (h *Handler) NotifyResolved(t *domain.Transaction) {
	var text string
	switch {
	case t.Kind == domain.TxDeposit && t.Status == domain.TxCompleted:
		text = fmt.Sprintf("✅ Пополнение 💵 %s зачислено", common.FormatAmount(t.Amount))
	case t.Kind == domain.TxDeposit:
		text = fmt.Sprintf("❌ Пополнение 💵 %s отклонено", common.FormatAmount(t.Amount))
	case t.Status == domain.TxCompleted:
		text = fmt.Sprintf("✅ Вывод 💵 %s отправлен на %s", common.FormatAmount(t.Amount), t.Address)
	default:
		text = fmt.Sprintf("❌ Вывод 💵 %s отклонён, сумма вернулась на баланс", common.FormatAmount(t.Amount))
	}
	ui.Send(h.bot, t.UserID, text, nil)
}

func statusLabel(s domain.TxStatus) string {
	switch s {
	case domain.TxCompleted:
		return "✅ выполнена"
	case domain.TxRejected:
		return "❌ отклонена"
	}
	return "⏳ на проверке"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrNoWithdrawalAddress):
		ui.Send(h.bot, chatID, "❌ Сначала укажи адрес вывода в настройках", nil)
	case errors.Is(err, common.ErrInsufficientBalance):
		ui.Send(h.bot, chatID, fmt.Sprintf("❌ Недостаточно USDT (минимум для вывода %s)", common.FormatAmount(h.service.MinWithdrawal())), nil)
	case errors.Is(err, common.ErrInvalidAmount):
		ui.Send(h.bot, chatID, fmt.Sprintf("❌ Минимальное пополнение %s USDT", common.FormatAmount(h.service.MinDeposit())), nil)
	case errors.Is(err, common.ErrUnknownNetwork):
		ui.Send(h.bot, chatID, "❌ Эта сеть не поддерживается", nil)
	case errors.Is(err, common.ErrUserNotFound):
		ui.Send(h.bot, chatID, "❌ Сначала нажми /start", nil)
	default:
		log.WithError(err).Error("Ошибка платежа")
		ui.Send(h.bot, chatID, "❌ Ошибка, попробуй позже", nil)
	}
}
