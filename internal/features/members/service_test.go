package members

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/bot/ui/uitest"
	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/db/memory"
)

var bonus = decimal.NewFromInt(300)

func newTestService() (*Service, *memory.Store) {
	st := memory.New()
	clock := common.NewManualClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	return NewService(st, clock, bonus), st
}

func id(v int64) *int64 { return &v }

func TestRegisterReferralBonusOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()

	_, err := svc.Register(ctx, Profile{UserID: 1, Username: "alice"}, nil)
	require.NoError(t, err)

	reg, err := svc.Register(ctx, Profile{UserID: 2, Username: "bob"}, id(1))
	require.NoError(t, err)
	require.True(t, reg.Created)
	require.NotNil(t, reg.Referrer)
	require.Equal(t, int64(1), *reg.User.ReferrerID)

	// повторный /start с той же ссылкой
	reg, err = svc.Register(ctx, Profile{UserID: 2, Username: "bob"}, id(1))
	require.NoError(t, err)
	require.False(t, reg.Created)
	require.Nil(t, reg.Referrer)

	ref, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.True(t, ref.Money.Equal(bonus))
	require.True(t, ref.ReferralEarnings.Equal(bonus))
	require.Equal(t, 1, ref.TotalReferrals)
}

func TestRegisterConcurrentStartBonusOnce(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService()
	_, err := svc.Register(ctx, Profile{UserID: 1}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Register(ctx, Profile{UserID: 2}, id(1))
		}()
	}
	wg.Wait()

	ref, err := st.GetUser(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, ref.TotalReferrals)
	require.True(t, ref.Money.Equal(bonus))
}

func TestRegisterUnknownOrSelfReferrer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	reg, err := svc.Register(ctx, Profile{UserID: 5}, id(999))
	require.NoError(t, err)
	require.True(t, reg.Created)
	require.Nil(t, reg.User.ReferrerID)
	require.Nil(t, reg.Referrer)

	reg, err = svc.Register(ctx, Profile{UserID: 6}, id(6))
	require.NoError(t, err)
	require.Nil(t, reg.User.ReferrerID)
}

func TestRegisterStartsWithEmptyWallet(t *testing.T) {
	svc, _ := newTestService()
	reg, err := svc.Register(context.Background(), Profile{UserID: 3}, nil)
	require.NoError(t, err)
	require.True(t, reg.User.Stars.IsZero())
	require.True(t, reg.User.Diamonds.IsZero())
	require.Empty(t, reg.User.Animals)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), reg.User.LastCollection)
}

func TestEnsureMemberRefreshesProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	ok, err := svc.IsMember(ctx, 9)
	require.NoError(t, err)
	require.False(t, ok)

	u, err := svc.EnsureMember(ctx, Profile{UserID: 9, Username: "old"})
	require.NoError(t, err)
	require.Equal(t, "old", u.Username)

	u, err = svc.EnsureMember(ctx, Profile{UserID: 9, Username: "new", FirstName: "Вася"})
	require.NoError(t, err)
	require.Equal(t, "new", u.Username)
	require.Equal(t, "Вася", u.FirstName)

	ok, err = svc.IsMember(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHandleStartNotifiesReferrer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	rec := &uitest.Recorder{}
	h := NewHandler(svc, rec)

	h.HandleStart(ctx, 1, Profile{UserID: 1, Username: "alice"}, "")
	h.HandleStart(ctx, 2, Profile{UserID: 2, Username: "bob"}, "ref1")

	toReferrer := rec.To(1)
	require.Len(t, toReferrer, 2)
	require.Contains(t, toReferrer[1].Text, "@bob")
	require.Contains(t, toReferrer[1].Text, "💰 300")
	require.Contains(t, rec.To(2)[0].Text, "Добро пожаловать")
}
