// Package app инициализирует все компоненты приложения.
// app.go: точка сборки: БД-пул, хранилище, сервисы, обработчики,
// rate limiter, бот, планировщик и служебный HTTP-сервер.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/bot"
	"serotonyl.ru/zoo-bot/internal/bot/dialog"
	"serotonyl.ru/zoo-bot/internal/bot/middleware"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/config"
	"serotonyl.ru/zoo-bot/internal/db/postgres"
	"serotonyl.ru/zoo-bot/internal/features/admin"
	"serotonyl.ru/zoo-bot/internal/features/games"
	"serotonyl.ru/zoo-bot/internal/features/lottery"
	"serotonyl.ru/zoo-bot/internal/features/members"
	"serotonyl.ru/zoo-bot/internal/features/payments"
	"serotonyl.ru/zoo-bot/internal/features/referral"
	"serotonyl.ru/zoo-bot/internal/features/wallet"
	"serotonyl.ru/zoo-bot/internal/features/zoo"
	"serotonyl.ru/zoo-bot/internal/httpserver"
	"serotonyl.ru/zoo-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	HTTP      *httpserver.Server
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}
	st := postgres.NewStore(pool)

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Сервисы ===
	clock := common.SystemClock{}
	loc := cfg.Location()

	rates, err := wallet.NewRatesHolder(wallet.Rates{StarsToMoney: cfg.StarsToMoneyRate, MoneyToUSDT: cfg.MoneyToUSDTRate})
	if err != nil {
		pool.Close()
		return nil, err
	}
	walletService := wallet.NewService(st, rates)
	zooService := zoo.NewService(st, zoo.DefaultCatalog(), clock)
	memberService := members.NewService(st, clock, cfg.ReferralBonus)
	referralService := referral.NewService(st)
	gameService := games.NewService(st, games.SystemRandom(), cfg.MinBetAmount, cfg.DiceBetAmount)
	lotteryService := lottery.NewService(st, games.SystemRandom(), clock, loc, cfg.LotteryTicketPrice)
	paymentService := payments.NewService(st, st, clock, cfg.DepositAddresses(), cfg.DepositMinUSDT, cfg.WithdrawalMinUSDT)
	adminService := admin.NewService(st, st, paymentService, rates, clock, cfg.AdminPasswordHash, cfg.AdminIDs)

	// === 4. Обработчики ===
	dialogs := dialog.NewStore(dialog.DefaultTTL, clock)
	paymentHandler := payments.NewHandler(paymentService, st, dialogs, botAPI, cfg.AdminIDs, loc)
	lotteryHandler := lottery.NewHandler(lotteryService, botAPI)

	handlers := bot.Handlers{
		Members:  members.NewHandler(memberService, botAPI),
		Zoo:      zoo.NewHandler(zooService, botAPI),
		Wallet:   wallet.NewHandler(walletService, botAPI),
		Referral: referral.NewHandler(referralService, botAPI, botAPI.Self.UserName, cfg.ReferralBonus),
		Games:    games.NewHandler(gameService, games.NewBets(cfg.MinBetAmount), botAPI),
		Lottery:  lotteryHandler,
		Payments: paymentHandler,
		Admin:    admin.NewHandler(adminService, dialogs, paymentHandler, botAPI, loc),
	}

	// === 5. Rate limiter и бот ===
	limiter, err := newLimiter(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	b := bot.New(botAPI, cfg, memberService, handlers, limiter, dialogs)

	// === 6. Планировщик задач ===
	schedule := jobs.Jobs{Winners: lotteryHandler, Stats: adminService, Send: b.SendMessageToUser}
	if cfg.FeatureLotteryEnabled {
		schedule.Drawer = lotteryService
	}
	if cfg.FeatureRemindersEnabled {
		schedule.Reminder = zoo.NewReminder(st, clock)
	}
	scheduler := jobs.NewScheduler(loc, clock, schedule)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		HTTP:      httpserver.New(cfg.HTTPAddr, pool),
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// newLimiter выбирает Redis, если он настроен, иначе лимитер в памяти.
func newLimiter(ctx context.Context, cfg *config.Config) (middleware.Limiter, error) {
	if cfg.RedisAddr == "" {
		return middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis недоступен (%s): %w", cfg.RedisAddr, err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("Rate limit через Redis")
	return middleware.NewRedisRateLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow), nil
}
