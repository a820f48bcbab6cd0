// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// а godotenv подхватывает локальный .env, если он есть.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// Дефолт "postgres" (имя сервиса в docker-compose), для локалки DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"zoobot"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"zoo_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Redis (опционально, для общего rate limit между репликами) ---
	RedisAddr     string `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Economy ---
	StarsToMoneyRate decimal.Decimal `envconfig:"STARS_TO_MONEY_RATE" default:"1"`
	MoneyToUSDTRate  decimal.Decimal `envconfig:"MONEY_TO_USDT_RATE" default:"10000"`
	ReferralBonus    decimal.Decimal `envconfig:"REFERRAL_BONUS" default:"300"`

	// --- Games ---
	MinBetAmount       int64           `envconfig:"MIN_BET_AMOUNT" default:"10"`
	DiceBetAmount      int64           `envconfig:"DICE_BET_AMOUNT" default:"10"`
	LotteryTicketPrice decimal.Decimal `envconfig:"LOTTERY_TICKET_PRICE" default:"100"`

	// --- Payments ---
	DepositMinUSDT      decimal.Decimal `envconfig:"DEPOSIT_MIN_USDT" default:"1"`
	WithdrawalMinUSDT   decimal.Decimal `envconfig:"WITHDRAWAL_MIN_USDT" default:"1"`
	DepositAddressTRC20 string          `envconfig:"DEPOSIT_ADDRESS_TRC20" default:""`
	DepositAddressBEP20 string          `envconfig:"DEPOSIT_ADDRESS_BEP20" default:""`
	DepositAddressERC20 string          `envconfig:"DEPOSIT_ADDRESS_ERC20" default:""`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureGamesEnabled   bool `envconfig:"FEATURE_GAMES_ENABLED" default:"true"`
	FeatureLotteryEnabled bool `envconfig:"FEATURE_LOTTERY_ENABLED" default:"true"`

	// Напоминания о заполненном хранилище звёзд
	FeatureRemindersEnabled bool `envconfig:"FEATURE_REMINDERS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// DepositAddresses возвращает адреса платформы для приёма USDT по сетям.
// Сети без адреса не попадают в результат.
func (c *Config) DepositAddresses() map[string]string {
	out := make(map[string]string, 3)
	for network, addr := range map[string]string{
		"trc20": c.DepositAddressTRC20,
		"bep20": c.DepositAddressBEP20,
		"erc20": c.DepositAddressERC20,
	} {
		if strings.TrimSpace(addr) != "" {
			out[network] = strings.TrimSpace(addr)
		}
	}
	return out
}

// Location возвращает часовой пояс приложения (для cron и даты розыгрыша).
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS пуст")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if !c.StarsToMoneyRate.IsPositive() || !c.MoneyToUSDTRate.IsPositive() {
		return fmt.Errorf("курсы обмена должны быть > 0")
	}
	if c.ReferralBonus.IsNegative() {
		return fmt.Errorf("REFERRAL_BONUS не может быть отрицательным")
	}
	if c.MinBetAmount <= 0 || c.DiceBetAmount <= 0 {
		return fmt.Errorf("ставки должны быть > 0")
	}
	if !c.LotteryTicketPrice.IsPositive() {
		return fmt.Errorf("LOTTERY_TICKET_PRICE должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет Config.
func Load() (*Config, error) {
	// .env не обязателен: в Docker всё приходит через окружение
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
