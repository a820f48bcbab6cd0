package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/config"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// dbEnv: только переменные подключения, без токена бота и прочего.
type dbEnv struct {
	Host     string `envconfig:"DB_HOST"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"zoobot"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"zoo_bot"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// integrationStore подключается к настоящей базе; без DB_HOST тест пропускается.
func integrationStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST не задан, пропускаем тест с PostgreSQL")
	}

	var env dbEnv
	require.NoError(t, envconfig.Process("", &env))
	cfg := &config.Config{
		DBHost: env.Host, DBPort: env.Port, DBUser: env.User, DBPassword: env.Password,
		DBName: env.Name, DBSSLMode: env.SSLMode, DBMaxConns: 20, DBMinConns: 1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := NewPool(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return NewStore(pool), pool
}

// testUserIDs выдаёт id, которые не пересекаются с настоящими игроками,
// и удаляет их записи после теста.
func testUserIDs(t *testing.T, pool *pgxpool.Pool, n int) []int64 {
	t.Helper()
	base := -time.Now().UnixNano() / 1000
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = base - int64(i)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		_, _ = pool.Exec(ctx, `DELETE FROM lottery_tickets WHERE user_id = ANY($1)`, ids)
		_, _ = pool.Exec(ctx, `DELETE FROM zoo_users WHERE user_id = ANY($1)`, ids)
	})
	return ids
}

func newIntegrationUser(id int64, referrer *int64) *domain.User {
	now := time.Now().UTC()
	return &domain.User{UserID: id, FirstName: "test", ReferrerID: referrer, LastCollection: now, CreatedAt: now}
}

func TestIntegrationIncrementBalanceConverges(t *testing.T) {
	st, pool := integrationStore(t)
	ctx := context.Background()
	id := testUserIDs(t, pool, 1)[0]

	_, created, err := st.CreateUser(ctx, newIntegrationUser(id, nil), nil)
	require.NoError(t, err)
	require.True(t, created)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.IncrementBalance(ctx, id, domain.CurrencyDiamonds, decimal.NewFromInt(1)); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Empty(t, errs)

	u, err := st.GetUser(ctx, id)
	require.NoError(t, err)
	require.True(t, u.Diamonds.Equal(decimal.NewFromInt(100)), u.Diamonds.String())

	// условный UPDATE не пускает баланс в минус
	_, err = st.IncrementBalance(ctx, id, domain.CurrencyDiamonds, decimal.NewFromInt(-101))
	require.ErrorIs(t, err, common.ErrInsufficientBalance)
	_, err = st.IncrementBalance(ctx, id-1_000_000, domain.CurrencyDiamonds, decimal.NewFromInt(1))
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestIntegrationReferralBonusOnce(t *testing.T) {
	st, pool := integrationStore(t)
	ctx := context.Background()
	ids := testUserIDs(t, pool, 2)
	referrerID, newID := ids[0], ids[1]

	_, _, err := st.CreateUser(ctx, newIntegrationUser(referrerID, nil), nil)
	require.NoError(t, err)

	bonus := func(ref *domain.User) error {
		ref.Money = ref.Money.Add(decimal.NewFromInt(300))
		ref.TotalReferrals++
		return nil
	}
	_, created, err := st.CreateUser(ctx, newIntegrationUser(newID, &referrerID), bonus)
	require.NoError(t, err)
	require.True(t, created)

	// повторная регистрация: ON CONFLICT DO NOTHING, бонуса нет
	_, created, err = st.CreateUser(ctx, newIntegrationUser(newID, &referrerID), bonus)
	require.NoError(t, err)
	require.False(t, created)

	ref, err := st.GetUser(ctx, referrerID)
	require.NoError(t, err)
	require.True(t, ref.Money.Equal(decimal.NewFromInt(300)), ref.Money.String())
}

func TestIntegrationSettleDrawOnce(t *testing.T) {
	st, pool := integrationStore(t)
	ctx := context.Background()
	id := testUserIDs(t, pool, 1)[0]

	_, _, err := st.CreateUser(ctx, newIntegrationUser(id, nil), nil)
	require.NoError(t, err)

	drawDate := time.Now().UTC().Truncate(time.Hour).Add(-24 * time.Hour)
	ticketID := "it-" + time.Now().Format("150405.000000000")
	require.NoError(t, st.CreateTicket(ctx, &domain.LotteryTicket{
		ID: ticketID, UserID: id, DrawDate: drawDate, CreatedAt: drawDate,
	}, nil))

	// два параллельных расчёта одного розыгрыша: проходит ровно один
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- st.SettleDraw(ctx, []string{ticketID}, id, decimal.NewFromInt(100)) }()
	}
	var ok, rejected int
	for i := 0; i < 2; i++ {
		err := <-results
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, common.ErrInvalidState)
			rejected++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)

	u, err := st.GetUser(ctx, id)
	require.NoError(t, err)
	require.True(t, u.Money.Equal(decimal.NewFromInt(100)), u.Money.String())
}
