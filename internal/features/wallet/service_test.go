package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/db/memory"
	"serotonyl.ru/zoo-bot/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultRates() Rates {
	return Rates{StarsToMoney: dec("1"), MoneyToUSDT: dec("10000")}
}

func newTestService(t *testing.T, u *domain.User) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	_, _, err := st.CreateUser(context.Background(), u, nil)
	require.NoError(t, err)
	rates, err := NewRatesHolder(defaultRates())
	require.NoError(t, err)
	return NewService(st, rates), st
}

func TestConvertStars(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &domain.User{UserID: 1, Stars: dec("150")})

	conv, err := svc.ConvertStars(ctx, 1)
	require.NoError(t, err)
	require.True(t, conv.Received.Equal(dec("150")))
	require.True(t, conv.User.Stars.IsZero())
	require.True(t, conv.User.Money.Equal(dec("150")))

	_, err = svc.ConvertStars(ctx, 1)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)
}

func TestConvertStarsUsesCurrentRate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &domain.User{UserID: 1, Stars: dec("10.5")})

	require.NoError(t, svc.Rates().UpdateRates(Rates{StarsToMoney: dec("2"), MoneyToUSDT: dec("10000")}))
	conv, err := svc.ConvertStars(ctx, 1)
	require.NoError(t, err)
	require.True(t, conv.User.Money.Equal(dec("21")))
}

func TestConvertMoneyKeepsRemainder(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &domain.User{UserID: 1, Money: dec("25000")})

	conv, err := svc.ConvertMoney(ctx, 1)
	require.NoError(t, err)
	require.True(t, conv.Received.Equal(dec("2")))
	require.True(t, conv.Spent.Equal(dec("20000")))
	require.True(t, conv.User.Money.Equal(dec("5000")))
	require.True(t, conv.User.USDT.Equal(dec("2")))
}

func TestConvertMoneyBelowRate(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, Money: dec("9999"), USDT: dec("3")})

	_, err := svc.ConvertMoney(ctx, 1)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Money.Equal(dec("9999")))
	require.True(t, u.USDT.Equal(dec("3")))
}

func TestAdjustBalanceConcurrent(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, Diamonds: dec("40")})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AdjustBalance(ctx, 1, domain.CurrencyDiamonds, decimal.NewFromInt(1))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Diamonds.Equal(dec("140")), "diamonds=%s", u.Diamonds)
}

func TestAdjustBalanceRejectsNegative(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, Money: dec("5")})

	_, err := svc.AdjustBalance(ctx, 1, domain.CurrencyMoney, dec("-6"))
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	v, err := svc.AdjustBalance(ctx, 1, domain.CurrencyMoney, dec("-5"))
	require.NoError(t, err)
	require.True(t, v.IsZero())

	u, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, u.Money.IsZero())
}

func TestAdjustBalanceUnknown(t *testing.T) {
	svc, _ := newTestService(t, &domain.User{UserID: 1})

	_, err := svc.AdjustBalance(context.Background(), 2, domain.CurrencyStars, dec("1"))
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.AdjustBalance(context.Background(), 1, domain.Currency("gold"), dec("1"))
	require.Error(t, err)
}

func TestUpdateRatesValidation(t *testing.T) {
	h, err := NewRatesHolder(defaultRates())
	require.NoError(t, err)

	err = h.UpdateRates(Rates{StarsToMoney: dec("0"), MoneyToUSDT: dec("100")})
	require.ErrorIs(t, err, common.ErrInvalidRate)
	require.True(t, h.Get().MoneyToUSDT.Equal(dec("10000")))

	next, err := h.Get().With(RateMoneyToUSDT, dec("5000"))
	require.NoError(t, err)
	require.NoError(t, h.UpdateRates(next))
	require.True(t, h.Get().MoneyToUSDT.Equal(dec("5000")))

	_, err = h.Get().With("gold", dec("1"))
	require.Error(t, err)

	_, err = NewRatesHolder(Rates{})
	require.ErrorIs(t, err, common.ErrInvalidRate)
}
