package lottery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/bot/ui/uitest"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/db/memory"
	"serotonyl.ru/zoo-bot/internal/domain"
)

var t0 = time.Date(2026, 10, 14, 21, 40, 0, 0, time.UTC)

type fixedPick int

func (p fixedPick) IntN(n int) int { return int(p) % n }

func newTestService(t *testing.T, pick int, users ...*domain.User) (*Service, *memory.Store, *common.ManualClock) {
	t.Helper()
	st := memory.New()
	for _, u := range users {
		_, _, err := st.CreateUser(context.Background(), u, nil)
		require.NoError(t, err)
	}
	clock := common.NewManualClock(t0)
	svc := NewService(st, fixedPick(pick), clock, time.UTC, decimal.NewFromInt(100))
	return svc, st, clock
}

func money(t *testing.T, st *memory.Store, id int64) decimal.Decimal {
	t.Helper()
	u, err := st.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u.Money
}

func TestNextDrawDate(t *testing.T) {
	require.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), NextDrawDate(t0, time.UTC))

	midnight := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), NextDrawDate(midnight, time.UTC))

	msk := time.FixedZone("MSK", 3*3600)
	// 21:40 UTC = 00:40 МСК следующего дня
	require.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, msk), NextDrawDate(t0, msk))

	// конец месяца
	require.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
		NextDrawDate(time.Date(2026, 10, 31, 12, 0, 0, 0, time.UTC), time.UTC))
}

func TestBuyTicket(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(250)})

	p, err := svc.BuyTicket(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, p.Tickets)
	require.True(t, p.Money.Equal(decimal.NewFromInt(150)))
	require.Equal(t, svc.NextDraw(), p.Ticket.DrawDate)

	p, err = svc.BuyTicket(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, p.Tickets)

	_, err = svc.BuyTicket(ctx, 1)
	require.ErrorIs(t, err, common.ErrInsufficientFunds)
	require.True(t, money(t, st, 1).Equal(decimal.NewFromInt(50)))

	n, err := svc.MyTickets(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestBuyTicketUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t, 0)
	_, err := svc.BuyTicket(context.Background(), 42)
	require.ErrorIs(t, err, common.ErrUserNotFound)
}

func TestDrawPaysWholePot(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newTestService(t, 2,
		&domain.User{UserID: 1, Money: decimal.NewFromInt(200)},
		&domain.User{UserID: 2, Money: decimal.NewFromInt(100)},
	)

	for _, id := range []int64{1, 1, 2} {
		_, err := svc.BuyTicket(ctx, id)
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	// до полуночи розыгрывать нечего
	res, err := svc.Draw(ctx, clock.Now())
	require.NoError(t, err)
	require.Empty(t, res)

	clock.Advance(3 * time.Hour)
	res, err = svc.Draw(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, 3, res[0].Tickets)
	require.Equal(t, int64(2), res[0].WinnerID)
	require.True(t, res[0].Prize.Equal(decimal.NewFromInt(300)))
	require.True(t, money(t, st, 2).Equal(decimal.NewFromInt(300)))
	require.True(t, money(t, st, 1).IsZero())

	// билеты сгорели, повторный розыгрыш ничего не платит
	res, err = svc.Draw(ctx, clock.Now())
	require.NoError(t, err)
	require.Empty(t, res)
	require.True(t, money(t, st, 2).Equal(decimal.NewFromInt(300)))
}

func TestDrawKeepsTicketsForNextDay(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(200)})

	_, err := svc.BuyTicket(ctx, 1)
	require.NoError(t, err)
	clock.Advance(3 * time.Hour) // 00:40, уже следующий день
	_, err = svc.BuyTicket(ctx, 1)
	require.NoError(t, err)

	res, err := svc.Draw(ctx, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, 1, res[0].Tickets)

	n, err := svc.MyTickets(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestDrawCatchesUpMissedDays(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(200)})

	_, err := svc.BuyTicket(ctx, 1)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	_, err = svc.BuyTicket(ctx, 1)
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	res, err := svc.Draw(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.True(t, res[0].DrawDate.Before(res[1].DrawDate))
}

// flakyStore роняет первый SettleDraw, как при обрыве соединения.
type flakyStore struct {
	*memory.Store
	failed bool
}

func (f *flakyStore) SettleDraw(ctx context.Context, ids []string, winnerID int64, prize decimal.Decimal) error {
	if !f.failed {
		f.failed = true
		return errors.New("conn reset")
	}
	return f.Store.SettleDraw(ctx, ids, winnerID, prize)
}

func TestDrawFailedSettlePaysOnce(t *testing.T) {
	ctx := context.Background()
	_, st, clock := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(100)})
	flaky := &flakyStore{Store: st}
	svc := NewService(flaky, fixedPick(0), clock, time.UTC, decimal.NewFromInt(100))

	_, err := svc.BuyTicket(ctx, 1)
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)

	_, err = svc.Draw(ctx, clock.Now())
	require.Error(t, err)
	require.True(t, money(t, st, 1).IsZero(), "без расчёта выигрыш не начислен")

	res, err := svc.Draw(ctx, clock.Now())
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.True(t, money(t, st, 1).Equal(decimal.NewFromInt(100)))

	res, err = svc.Draw(ctx, clock.Now())
	require.NoError(t, err)
	require.Empty(t, res)
	require.True(t, money(t, st, 1).Equal(decimal.NewFromInt(100)))
}

// barrierStore держит ListDueTickets, пока оба розыгрыша не прочитают билеты.
type barrierStore struct {
	*memory.Store
	wg sync.WaitGroup
}

func (b *barrierStore) ListDueTickets(ctx context.Context, until time.Time) ([]*domain.LotteryTicket, error) {
	out, err := b.Store.ListDueTickets(ctx, until)
	b.wg.Done()
	b.wg.Wait()
	return out, err
}

func TestConcurrentDrawsPayOnce(t *testing.T) {
	ctx := context.Background()
	_, st, clock := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(100)})
	bs := &barrierStore{Store: st}
	bs.wg.Add(2)
	svc := NewService(bs, fixedPick(0), clock, time.UTC, decimal.NewFromInt(100))

	_, err := svc.BuyTicket(ctx, 1)
	require.NoError(t, err)
	clock.Advance(3 * time.Hour)

	var (
		mu    sync.Mutex
		paid  int
		errs  []error
		draws sync.WaitGroup
	)
	for i := 0; i < 2; i++ {
		draws.Add(1)
		go func() {
			defer draws.Done()
			res, err := svc.Draw(ctx, clock.Now())
			mu.Lock()
			defer mu.Unlock()
			paid += len(res)
			if err != nil {
				errs = append(errs, err)
			}
		}()
	}
	draws.Wait()

	require.Empty(t, errs)
	require.Equal(t, 1, paid)
	require.True(t, money(t, st, 1).Equal(decimal.NewFromInt(100)))
}

func TestDrawKeepsTicketBoughtDuringDraw(t *testing.T) {
	ctx := context.Background()
	_, st, _ := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(300)})

	due := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.CreateTicket(ctx, &domain.LotteryTicket{ID: "a", UserID: 1, DrawDate: due}, nil))
	require.NoError(t, st.CreateTicket(ctx, &domain.LotteryTicket{ID: "b", UserID: 1, DrawDate: due}, nil))

	// "b" не попал в розыгрыш: удаляются только переданные билеты
	require.NoError(t, st.SettleDraw(ctx, []string{"a"}, 1, decimal.NewFromInt(100)))
	n, err := st.CountTickets(ctx, 1, due)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	err = st.SettleDraw(ctx, []string{"a", "b"}, 1, decimal.NewFromInt(200))
	require.ErrorIs(t, err, common.ErrInvalidState)
	require.True(t, money(t, st, 1).Equal(decimal.NewFromInt(400)))
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 0, &domain.User{UserID: 1, Money: decimal.NewFromInt(150)})
	rec := &uitest.Recorder{}
	h := NewHandler(svc, rec)

	h.HandleLottery(ctx, 1, 1)
	require.Contains(t, rec.Last(), "Цена билета: 💵 100")
	require.Contains(t, rec.Last(), "15.10.2026 00:00")

	h.HandleBuy(ctx, 1, 1)
	require.Contains(t, rec.Last(), "Билет куплен")

	h.HandleBuy(ctx, 1, 1)
	require.Contains(t, rec.Last(), "Не хватает денег")

	h.NotifyWinners([]Result{{WinnerID: 7, Tickets: 4, Prize: decimal.NewFromInt(400)}})
	require.Len(t, rec.To(7), 1)
	require.Contains(t, rec.Last(), "💵 400")
}
