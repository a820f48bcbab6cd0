// Package bot принимает апдейты Telegram и раздаёт их обработчикам фич.
// bot.go: polling и конвейер апдейта, router.go: маршруты команд и кнопок.
package bot

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot/dialog"
	"serotonyl.ru/zoo-bot/internal/bot/filters"
	"serotonyl.ru/zoo-bot/internal/bot/middleware"
	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/config"
	"serotonyl.ru/zoo-bot/internal/features/admin"
	"serotonyl.ru/zoo-bot/internal/features/games"
	"serotonyl.ru/zoo-bot/internal/features/lottery"
	"serotonyl.ru/zoo-bot/internal/features/members"
	"serotonyl.ru/zoo-bot/internal/features/payments"
	"serotonyl.ru/zoo-bot/internal/features/referral"
	"serotonyl.ru/zoo-bot/internal/features/wallet"
	"serotonyl.ru/zoo-bot/internal/features/zoo"
	"serotonyl.ru/zoo-bot/internal/metrics"
)

// как часто выбрасываем протухшие диалоги
const dialogSweepInterval = time.Minute

// Handlers: обработчики фич, между которыми роутер раздаёт апдейты.
type Handlers struct {
	Members  *members.Handler
	Zoo      *zoo.Handler
	Wallet   *wallet.Handler
	Referral *referral.Handler
	Games    *games.Handler
	Lottery  *lottery.Handler
	Payments *payments.Handler
	Admin    *admin.Handler
}

// Bot: главная структура бота, объединяющая все компоненты.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender ui.Sender
	cfg    *config.Config

	chatFilter *filters.ChatFilter
	limiter    middleware.Limiter
	dialogs    *dialog.Store

	members *members.Service
	h       Handlers

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота. limiter закрывается в Start при остановке.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	handlers Handlers,
	limiter middleware.Limiter,
	dialogs *dialog.Store,
) *Bot {
	b := newBot(api, cfg, memberService, handlers, limiter, dialogs)
	b.api = api
	return b
}

func newBot(
	sender ui.Sender,
	cfg *config.Config,
	memberService *members.Service,
	handlers Handlers,
	limiter middleware.Limiter,
	dialogs *dialog.Store,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		sender:     sender,
		cfg:        cfg,
		chatFilter: filters.NewChatFilter(),
		limiter:    limiter,
		dialogs:    dialogs,
		members:    memberService,
		h:          handlers,
		parser:     NewCommandParser(),
		inflight:   make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)
	defer b.limiter.Close()

	log.WithFields(log.Fields{
		"bot":          b.api.Self.UserName,
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	b.run(ctx, updates)
	b.api.StopReceivingUpdates()
}

// run раздаёт апдейты обработчикам, пока не отменён ctx или не закрыт канал.
// Перед выходом дожидается уже запущенных обработчиков.
func (b *Bot) run(ctx context.Context, updates <-chan tgbotapi.Update) {
	sweep := time.NewTicker(dialogSweepInterval)
	defer sweep.Stop()
	defer b.drain()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			return

		case <-sweep.C:
			if n := b.dialogs.Sweep(); n > 0 {
				log.WithField("count", n).Debug("Протухшие диалоги удалены")
			}

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма; при остановке не ждём свободного слота
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				log.Info("Бот останавливается (ctx done)...")
				return
			}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// drain ждёт, пока доработают уже запущенные обработчики.
func (b *Bot) drain() {
	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic(update.UpdateID)

	started := time.Now()
	metrics.Updates.WithLabelValues(middleware.UpdateKind(update)).Inc()
	defer func() { metrics.UpdateDuration.Observe(time.Since(started).Seconds()) }()

	middleware.LogUpdate(update)

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) allow(ctx context.Context, userID int64) bool {
	if b.limiter.Allow(ctx, userID) {
		return true
	}
	metrics.RateLimited.Inc()
	log.WithField("user_id", userID).Debug("rate limited")
	return false
}

func profileOf(u *tgbotapi.User) members.Profile {
	return members.Profile{UserID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

// ensureMember регистрирует игрока, пришедшего без /start.
func (b *Bot) ensureMember(ctx context.Context, u *tgbotapi.User) {
	if _, err := b.members.EnsureMember(ctx, profileOf(u)); err != nil {
		log.WithError(err).WithField("user_id", u.ID).Warn("EnsureMember failed")
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !b.chatFilter.CheckAccess(message) {
		return
	}
	if !b.allow(ctx, message.From.ID) {
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// /start разбираем до EnsureMember, иначе реферальная ссылка потеряется
	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if isCommand && cmd == "start" {
		payload := ""
		if len(args) > 0 {
			payload = args[0]
		}
		b.dialogs.Clear(userID)
		b.h.Members.HandleStart(ctx, chatID, profileOf(message.From), payload)
		return
	}

	b.ensureMember(ctx, message.From)

	if len(message.Photo) > 0 {
		// берём самое большое превью
		fileID := message.Photo[len(message.Photo)-1].FileID
		if !b.h.Payments.HandlePhoto(ctx, chatID, userID, fileID) {
			ui.Send(b.sender, chatID, "🤔 Не знаю, что делать с этим фото", ui.MainMenu())
		}
		return
	}
	if message.Text == "" {
		return
	}

	if isCommand {
		log.WithFields(log.Fields{"cmd": cmd, "args": args}).Debug("parsed command")
		// команда прерывает незаконченный диалог
		if cmd != "admin" && cmd != "login" {
			b.dialogs.Clear(userID)
		}
		b.routeCommand(ctx, chatID, userID, cmd, args)
		return
	}

	if b.h.Admin.HandleAdminMessage(ctx, chatID, userID, message.Text) {
		return
	}
	if b.routeMenuButton(ctx, chatID, userID, message.Text) {
		return
	}
	if b.h.Payments.HandleText(ctx, chatID, userID, message.Text) {
		return
	}
	ui.Send(b.sender, chatID, "Выбери действие в меню 👇", ui.MainMenu())
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if !b.chatFilter.CheckCallback(q) {
		return
	}
	ui.Answer(b.sender, q.ID, "")
	if !b.allow(ctx, q.From.ID) {
		return
	}

	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}

	b.ensureMember(ctx, q.From)
	b.routeCallback(ctx, chatID, q.From.ID, q.Data)
}

// SendMessageToUser отправляет сообщение пользователю (для напоминаний).
func (b *Bot) SendMessageToUser(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := b.sender.Send(msg); err != nil {
		log.WithError(err).WithField("user_id", userID).Debug("Не удалось отправить сообщение")
		return
	}
	log.WithField("user_id", userID).Debug("message sent")
}
