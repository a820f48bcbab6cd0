package bot

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/bot/dialog"
	"serotonyl.ru/zoo-bot/internal/bot/ui"
	"serotonyl.ru/zoo-bot/internal/bot/ui/uitest"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/config"
	"serotonyl.ru/zoo-bot/internal/db/memory"
	"serotonyl.ru/zoo-bot/internal/features/admin"
	"serotonyl.ru/zoo-bot/internal/features/games"
	"serotonyl.ru/zoo-bot/internal/features/lottery"
	"serotonyl.ru/zoo-bot/internal/features/members"
	"serotonyl.ru/zoo-bot/internal/features/payments"
	"serotonyl.ru/zoo-bot/internal/features/referral"
	"serotonyl.ru/zoo-bot/internal/features/wallet"
	"serotonyl.ru/zoo-bot/internal/features/zoo"
)

type stubLimiter struct{ allow bool }

func (l *stubLimiter) Allow(context.Context, int64) bool { return l.allow }
func (l *stubLimiter) Close()                            {}

type harness struct {
	bot     *Bot
	rec     *uitest.Recorder
	st      *memory.Store
	limiter *stubLimiter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		AdminIDs:              []int64{99},
		BotMaxInflight:        4,
		FeatureGamesEnabled:   true,
		FeatureLotteryEnabled: false,
	}
	st := memory.New()
	rec := &uitest.Recorder{}
	clock := common.NewManualClock(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
	dialogs := dialog.NewStore(dialog.DefaultTTL, clock)
	bonus := decimal.NewFromInt(300)

	rates, err := wallet.NewRatesHolder(wallet.Rates{StarsToMoney: decimal.NewFromInt(1), MoneyToUSDT: decimal.NewFromInt(10000)})
	require.NoError(t, err)
	walletSvc := wallet.NewService(st, rates)
	memberSvc := members.NewService(st, clock, bonus)
	paySvc := payments.NewService(st, st, clock, map[string]string{"trc20": "TDWc9hxjqsmjZQbxKUkCCsL7NvckPipNaM"},
		decimal.NewFromInt(1), decimal.NewFromInt(1))
	lotterySvc := lottery.NewService(st, games.SystemRandom(), clock, time.UTC, decimal.NewFromInt(100))
	adminSvc := admin.NewService(st, st, paySvc, rates, clock, "", cfg.AdminIDs)
	payHandler := payments.NewHandler(paySvc, st, dialogs, rec, cfg.AdminIDs, time.UTC)

	h := Handlers{
		Members:  members.NewHandler(memberSvc, rec),
		Zoo:      zoo.NewHandler(zoo.NewService(st, zoo.DefaultCatalog(), clock), rec),
		Wallet:   wallet.NewHandler(walletSvc, rec),
		Referral: referral.NewHandler(referral.NewService(st), rec, "zoo_bot", bonus),
		Games:    games.NewHandler(games.NewService(st, games.SystemRandom(), 10, 10), games.NewBets(10), rec),
		Lottery:  lottery.NewHandler(lotterySvc, rec),
		Payments: payHandler,
		Admin:    admin.NewHandler(adminSvc, dialogs, payHandler, rec, time.UTC),
	}
	limiter := &stubLimiter{allow: true}
	return &harness{bot: newBot(rec, cfg, memberSvc, h, limiter, dialogs), rec: rec, st: st, limiter: limiter}
}

func message(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Игрок"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: userID, FirstName: "Игрок"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID, Type: "private"}},
		Data:    data,
	}}
}

func TestStartWithReferralLink(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.bot.handleUpdate(ctx, message(1, "/start"))
	require.Contains(t, h.rec.Last(), "Добро пожаловать")

	h.bot.handleUpdate(ctx, message(2, "/start ref1"))
	u, err := h.st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Money.Equal(decimal.NewFromInt(300)))
	require.NotEmpty(t, h.rec.To(1), "пригласивший получил уведомление")

	// повторный старт бонус не начисляет
	h.bot.handleUpdate(ctx, message(2, "/start ref1"))
	require.Contains(t, h.rec.Last(), "С возвращением")
	u, err = h.st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Money.Equal(decimal.NewFromInt(300)))
}

func TestMessageWithoutStartRegisters(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.bot.handleUpdate(ctx, message(3, ui.BtnZoo))
	require.Contains(t, h.rec.Last(), "пусто")

	_, err := h.st.GetUser(ctx, 3)
	require.NoError(t, err)
}

func TestRouting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.bot.handleUpdate(ctx, message(1, "/start"))

	h.bot.handleUpdate(ctx, message(1, "/непонятно"))
	require.Contains(t, h.rec.Last(), "Неизвестная команда")

	h.bot.handleUpdate(ctx, message(1, "просто текст"))
	require.Contains(t, h.rec.Last(), "Выбери действие")

	h.bot.handleUpdate(ctx, message(1, "/lottery"))
	require.Contains(t, h.rec.Last(), "Лотерея временно отключена")

	h.bot.handleUpdate(ctx, message(1, "/admin"))
	require.Contains(t, h.rec.Last(), "Неизвестная команда", "не админ")

	h.bot.handleUpdate(ctx, message(99, "/admin"))
	require.Contains(t, h.rec.Last(), "Введите пароль")

	before := len(h.rec.Requests)
	h.bot.handleUpdate(ctx, callback(1, ui.CbBack))
	require.Contains(t, h.rec.Last(), "Главное меню")
	require.Len(t, h.rec.Requests, before+1, "callback подтверждён")
}

func TestFilteredUpdatesAreIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	group := message(5, "/start")
	group.Message.Chat = &tgbotapi.Chat{ID: -100, Type: "supergroup"}
	h.bot.handleUpdate(ctx, group)
	require.Empty(t, h.rec.Messages)

	h.limiter.allow = false
	h.bot.handleUpdate(ctx, message(5, "/start"))
	require.Empty(t, h.rec.Messages)
	_, err := h.st.GetUser(ctx, 5)
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestRunStopsWhileHandlersBusy(t *testing.T) {
	h := newHarness(t)
	h.bot.inflight = make(chan struct{}, 1)
	h.bot.inflight <- struct{}{} // единственный слот занят долгим обработчиком

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tgbotapi.Update)
	done := make(chan struct{})
	go func() {
		h.bot.run(ctx, updates)
		close(done)
	}()

	updates <- message(1, "/start")
	cancel()
	time.Sleep(50 * time.Millisecond)
	<-h.bot.inflight // обработчик доработал

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run не вернулся после отмены контекста")
	}
	require.Empty(t, h.rec.Messages, "апдейт после остановки не обрабатывается")
}
