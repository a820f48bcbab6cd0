package zoo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/db/memory"
	"serotonyl.ru/zoo-bot/internal/domain"
)

func newTestService(t *testing.T, u *domain.User) (*Service, *memory.Store, *common.ManualClock) {
	t.Helper()
	st := memory.New()
	clock := common.NewManualClock(t0)
	if u.LastCollection.IsZero() {
		u.LastCollection = t0
	}
	_, _, err := st.CreateUser(context.Background(), u, nil)
	require.NoError(t, err)
	return NewService(st, DefaultCatalog(), clock), st, clock
}

func TestCollectOnce(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newTestService(t, &domain.User{UserID: 1, Animals: animals(10)})

	clock.Advance(3 * time.Hour)
	res, err := svc.Collect(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Collected.Equal(decimal.NewFromInt(30)))
	require.False(t, res.Capped)

	_, err = svc.Collect(ctx, 1)
	require.ErrorIs(t, err, common.ErrNothingToCollect)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Stars.Equal(decimal.NewFromInt(30)))
	require.Equal(t, clock.Now(), u.LastCollection)
}

func TestCollectCapped(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t, &domain.User{UserID: 1, Animals: animals(10)})

	clock.Advance(72 * time.Hour)
	res, err := svc.Collect(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Capped)
	require.True(t, res.Stars.Equal(decimal.NewFromInt(240)))
}

func TestCollectWithoutAnimals(t *testing.T) {
	svc, _, clock := newTestService(t, &domain.User{UserID: 1})
	clock.Advance(10 * time.Hour)

	_, err := svc.Collect(context.Background(), 1)
	require.ErrorIs(t, err, common.ErrNothingToCollect)
}

func TestCollectUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t, &domain.User{UserID: 1})
	_, err := svc.Collect(context.Background(), 404)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestConcurrentCollectCreditsOnce(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newTestService(t, &domain.User{UserID: 1, Animals: animals(10)})
	clock.Advance(2 * time.Hour)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Collect(ctx, 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, ok)
	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Stars.Equal(decimal.NewFromInt(20)))
}

func TestPurchaseExactPrice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, &domain.User{UserID: 1, Diamonds: decimal.NewFromInt(50)})

	res, err := svc.Purchase(ctx, 1, "lion")
	require.NoError(t, err)
	require.True(t, res.User.Diamonds.IsZero())
	require.Len(t, res.User.Animals, 1)
	require.Equal(t, "lion", res.Animal.Species)
	require.NotEmpty(t, res.Animal.ID)

	_, err = svc.Purchase(ctx, 1, "lion")
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
}

func TestPurchaseUnknownSpecies(t *testing.T) {
	svc, _, _ := newTestService(t, &domain.User{UserID: 1, Diamonds: decimal.NewFromInt(1000)})
	_, err := svc.Purchase(context.Background(), 1, "cat")
	require.ErrorIs(t, err, common.ErrUnknownSpecies)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestFirstPurchaseStartsAccrualNow(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t, &domain.User{UserID: 1, Diamonds: decimal.NewFromInt(100)})

	// Игрок зарегистрирован давно, но животных не было.
	clock.Advance(30 * time.Hour)
	_, err := svc.Purchase(ctx, 1, "lion")
	require.NoError(t, err)

	_, err = svc.Collect(ctx, 1)
	require.ErrorIs(t, err, common.ErrNothingToCollect)

	clock.Advance(time.Hour)
	res, err := svc.Collect(ctx, 1)
	require.NoError(t, err)
	require.True(t, res.Collected.Equal(decimal.NewFromInt(10)))
}

func TestPurchaseSettlesPendingStars(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t, &domain.User{
		UserID:   1,
		Animals:  animals(10),
		Diamonds: decimal.NewFromInt(60),
	})

	clock.Advance(2 * time.Hour)
	res, err := svc.Purchase(ctx, 1, "tiger")
	require.NoError(t, err)
	require.True(t, res.Settled.Equal(decimal.NewFromInt(20)))
	require.True(t, res.User.Stars.Equal(decimal.NewFromInt(20)))

	clock.Advance(time.Hour)
	ov, err := svc.Overview(ctx, 1)
	require.NoError(t, err)
	require.True(t, ov.StarsPerHour.Equal(decimal.NewFromInt(22)))
	require.True(t, ov.Pending.Equal(decimal.NewFromInt(22)))
	require.Equal(t, 23*time.Hour, ov.UntilCap)
}

func TestCatalogChangeKeepsOwnedRate(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, &domain.User{UserID: 1, Diamonds: decimal.NewFromInt(50)})

	_, err := svc.Purchase(ctx, 1, "lion")
	require.NoError(t, err)

	lion, _ := svc.Catalog().Get("lion")
	lion.StarsPerHour = decimal.NewFromInt(99)
	svc.Catalog().Set(lion)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Animals[0].StarsPerHour.Equal(decimal.NewFromInt(10)))
}

func TestConcurrentPurchasesNeverOverspend(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, &domain.User{UserID: 1, Diamonds: decimal.NewFromInt(170)})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Purchase(ctx, 1, "lion")
		}()
	}
	wg.Wait()

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, u.Animals, 3)
	require.True(t, u.Diamonds.Equal(decimal.NewFromInt(20)))
}
