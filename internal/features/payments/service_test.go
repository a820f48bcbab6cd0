package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/bot/dialog"
	"serotonyl.ru/zoo-bot/internal/bot/ui/uitest"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/db/memory"
	"serotonyl.ru/zoo-bot/internal/domain"
)

const (
	trcAddr = "TDWc9hxjqsmjZQbxKUkCCsL7NvckPipNaM"
	bepAddr = "0x1234567890abcdef1234567890abcdef12345678"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T, users ...*domain.User) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	for _, u := range users {
		_, _, err := st.CreateUser(context.Background(), u, nil)
		require.NoError(t, err)
	}
	svc := NewService(st, st, common.NewManualClock(t0),
		map[string]string{"trc20": trcAddr, "bep20": bepAddr}, dec("1"), dec("1"))
	return svc, st
}

func user(t *testing.T, st *memory.Store, id int64) *domain.User {
	t.Helper()
	u, err := st.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount(" 12,5 ")
	require.NoError(t, err)
	require.True(t, v.Equal(dec("12.5")))

	v, err = ParseAmount("1 000.456")
	require.NoError(t, err)
	require.True(t, v.Equal(dec("1000.46")))

	for _, bad := range []string{"", "abc", "0", "-5"} {
		_, err := ParseAmount(bad)
		require.ErrorIs(t, err, common.ErrInvalidAmount, bad)
	}
}

func TestValidAddress(t *testing.T) {
	require.True(t, ValidAddress("trc20", trcAddr))
	require.True(t, ValidAddress("erc20", bepAddr))
	require.False(t, ValidAddress("trc20", bepAddr))
	require.False(t, ValidAddress("bep20", "0x123"))
	require.False(t, ValidAddress("ton", trcAddr))

	// испорчена контрольная сумма
	require.False(t, ValidAddress("trc20", "TDWc9hxjqsmjZQbxKUkCCsL7NvckPipNaN"))
	require.False(t, ValidAddress("erc20", "1234567890abcdef1234567890abcdef12345678"), "без 0x")
	require.True(t, ValidAddress("erc20", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	require.False(t, ValidAddress("erc20", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"))
}

func TestDepositLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1})

	tx, err := svc.CreateDeposit(ctx, 1, dec("25"), "trc20", "file-1")
	require.NoError(t, err)
	require.Equal(t, domain.TxPending, tx.Status)
	require.Equal(t, trcAddr, tx.Address)
	require.True(t, user(t, st, 1).USDT.IsZero(), "до одобрения баланс не меняется")

	done, err := svc.Resolve(ctx, tx.ID, domain.TxCompleted, 99)
	require.NoError(t, err)
	require.Equal(t, domain.TxCompleted, done.Status)
	require.Equal(t, int64(99), *done.ResolvedBy)
	require.Equal(t, t0, *done.ResolvedAt)

	u := user(t, st, 1)
	require.True(t, u.USDT.Equal(dec("25")))
	require.True(t, u.TotalDeposits.Equal(dec("25")))

	_, err = svc.Resolve(ctx, tx.ID, domain.TxRejected, 99)
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.True(t, user(t, st, 1).USDT.Equal(dec("25")))
}

func TestDepositRejectedChangesNothing(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1})

	tx, err := svc.CreateDeposit(ctx, 1, dec("5"), "bep20", "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, tx.ID, domain.TxRejected, 99)
	require.NoError(t, err)

	u := user(t, st, 1)
	require.True(t, u.USDT.IsZero())
	require.True(t, u.TotalDeposits.IsZero())
}

func TestDepositValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &domain.User{UserID: 1})

	_, err := svc.CreateDeposit(ctx, 1, dec("0.5"), "trc20", "")
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	// для erc20 адрес платформы не настроен
	_, err = svc.CreateDeposit(ctx, 1, dec("5"), "erc20", "")
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.CreateDeposit(ctx, 2, dec("5"), "trc20", "")
	require.ErrorIs(t, err, common.ErrUserNotFound)

	require.Equal(t, []string{"trc20", "bep20"}, svc.DepositNetworks())
}

func TestWithdrawalReservesAndReleases(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, USDT: dec("10")})

	_, err := svc.CreateWithdrawal(ctx, 1, dec("4"), "trc20")
	require.ErrorIs(t, err, common.ErrNoWithdrawalAddress)

	require.NoError(t, svc.SetWithdrawalAddress(ctx, 1, "trc20", " "+trcAddr+" "))
	require.Equal(t, trcAddr, user(t, st, 1).WithdrawalAddresses["trc20"])

	tx, err := svc.CreateWithdrawal(ctx, 1, dec("4"), "trc20")
	require.NoError(t, err)
	require.Equal(t, trcAddr, tx.Address)
	require.True(t, user(t, st, 1).USDT.Equal(dec("6")))

	_, err = svc.Resolve(ctx, tx.ID, domain.TxRejected, 99)
	require.NoError(t, err)
	require.True(t, user(t, st, 1).USDT.Equal(dec("10")))

	tx, err = svc.CreateWithdrawal(ctx, 1, dec("10"), "trc20")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, tx.ID, domain.TxCompleted, 99)
	require.NoError(t, err)
	require.True(t, user(t, st, 1).USDT.IsZero())

	_, err = svc.Resolve(ctx, tx.ID, domain.TxRejected, 99)
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.True(t, user(t, st, 1).USDT.IsZero(), "повторное решение не возвращает резерв")
}

func TestWithdrawalLimits(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, USDT: dec("3"),
		WithdrawalAddresses: map[string]string{"bep20": bepAddr}})

	_, err := svc.CreateWithdrawal(ctx, 1, dec("0.5"), "bep20")
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	_, err = svc.CreateWithdrawal(ctx, 1, dec("3.01"), "bep20")
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	_, err = svc.CreateWithdrawal(ctx, 1, dec("1"), "ton")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.ErrorIs(t, svc.SetWithdrawalAddress(ctx, 1, "trc20", "nope"), common.ErrInvalidAddress)
	require.True(t, user(t, st, 1).USDT.Equal(dec("3")))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, USDT: dec("5"),
		WithdrawalAddresses: map[string]string{"trc20": trcAddr}})

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CreateWithdrawal(ctx, 1, dec("2"), "trc20"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, ok)
	require.True(t, user(t, st, 1).USDT.Equal(dec("1")))
}

func TestConcurrentResolveAppliesOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1})
	tx, err := svc.CreateDeposit(ctx, 1, dec("7"), "trc20", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Resolve(ctx, tx.ID, domain.TxCompleted, 99)
		}()
	}
	wg.Wait()
	require.True(t, user(t, st, 1).USDT.Equal(dec("7")))
}

func TestResolveErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &domain.User{UserID: 1})

	_, err := svc.Resolve(ctx, "missing", domain.TxCompleted, 99)
	require.ErrorIs(t, err, common.ErrNotFound)

	tx, err := svc.CreateDeposit(ctx, 1, dec("2"), "trc20", "")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, tx.ID, domain.TxPending, 99)
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestListPendingPages(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	_, _, err := st.CreateUser(ctx, &domain.User{UserID: 1}, nil)
	require.NoError(t, err)
	clock := common.NewManualClock(t0)
	svc := NewService(st, st, clock, map[string]string{"trc20": trcAddr}, dec("1"), dec("1"))

	var first string
	for i := 0; i < 23; i++ {
		tx, err := svc.CreateDeposit(ctx, 1, dec("1"), "trc20", "")
		require.NoError(t, err)
		if i == 0 {
			first = tx.ID
		}
		clock.Advance(time.Second)
	}
	_, err = svc.Resolve(ctx, first, domain.TxCompleted, 99)
	require.NoError(t, err)

	p, err := svc.ListPending(ctx, domain.TxDeposit, 1)
	require.NoError(t, err)
	require.Equal(t, 22, p.Total)
	require.Equal(t, 3, p.Pages)
	require.Len(t, p.Items, PageSize)
	require.True(t, p.Items[0].CreatedAt.Before(p.Items[1].CreatedAt))

	p, err = svc.ListPending(ctx, domain.TxDeposit, 9)
	require.NoError(t, err)
	require.Equal(t, 3, p.Page)
	require.Len(t, p.Items, 2)

	p, err = svc.ListPending(ctx, domain.TxWithdrawal, 1)
	require.NoError(t, err)
	require.Zero(t, p.Total)
	require.Equal(t, 1, p.Pages)

	hist, err := svc.UserHistory(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	require.True(t, hist[0].CreatedAt.After(hist[1].CreatedAt))
}

func TestDepositDialog(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1})
	rec := &uitest.Recorder{}
	h := NewHandler(svc, st, dialog.NewStore(dialog.DefaultTTL, common.NewManualClock(t0)), rec, []int64{99}, time.UTC)

	require.False(t, h.HandleText(ctx, 1, 1, "привет"))

	h.HandleDepositNetwork(ctx, 1, 1, "trc20")
	require.Contains(t, rec.Last(), trcAddr)

	require.True(t, h.HandleText(ctx, 1, 1, "0.3"))
	require.Contains(t, rec.Last(), "минимум")

	require.True(t, h.HandleText(ctx, 1, 1, "15"))
	require.Contains(t, rec.Last(), "скриншот")

	require.True(t, h.HandlePhoto(ctx, 1, 1, "photo-file"))
	require.Contains(t, rec.Last(), "отправлена")
	require.Len(t, rec.Photos, 1)
	require.Equal(t, int64(99), rec.Photos[0].ChatID)

	p, err := svc.ListPending(ctx, domain.TxDeposit, 1)
	require.NoError(t, err)
	require.Equal(t, 1, p.Total)
	require.Equal(t, "photo-file", p.Items[0].ProofFileID)

	// диалог закрыт, следующее фото не наше
	require.False(t, h.HandlePhoto(ctx, 1, 1, "photo-2"))
}

func TestWithdrawalDialog(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t, &domain.User{UserID: 1, USDT: dec("8")})
	rec := &uitest.Recorder{}
	h := NewHandler(svc, st, dialog.NewStore(dialog.DefaultTTL, common.NewManualClock(t0)), rec, []int64{99}, time.UTC)

	h.HandleWithdrawNetwork(ctx, 1, 1, "bep20")
	require.Contains(t, rec.Last(), "не задан")

	h.HandleSetAddressStart(ctx, 1, 1, "bep20")
	require.True(t, h.HandleText(ctx, 1, 1, "garbage"))
	require.Contains(t, rec.Last(), "не похоже")
	require.True(t, h.HandleText(ctx, 1, 1, bepAddr))
	require.Contains(t, rec.Last(), "сохранён")

	h.HandleWithdrawNetwork(ctx, 1, 1, "bep20")
	require.True(t, h.HandleText(ctx, 1, 1, "5"))
	require.Contains(t, rec.To(1)[len(rec.To(1))-1].Text, "зарезервирована")
	require.Len(t, rec.To(99), 1)
	require.True(t, user(t, st, 1).USDT.Equal(dec("3")))
}
