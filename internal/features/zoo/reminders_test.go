package zoo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/domain"
)

func TestSendReminders(t *testing.T) {
	ctx := context.Background()
	svc, st, clock := newTestService(t, &domain.User{UserID: 1, Animals: animals(10)})
	_, _, err := st.CreateUser(ctx, &domain.User{UserID: 2, LastCollection: t0}, nil)
	require.NoError(t, err)

	r := NewReminder(st, clock)
	got := map[int64][]string{}
	send := func(id int64, text string) { got[id] = append(got[id], text) }

	clock.Advance(23 * time.Hour)
	n, err := r.SendReminders(ctx, send)
	require.NoError(t, err)
	require.Zero(t, n, "ещё не заполнено")

	clock.Advance(2 * time.Hour)
	n, err = r.SendReminders(ctx, send)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, got[1][0], "⭐ 240")
	require.Empty(t, got[2], "без животных не напоминаем")

	// второй раз за тот же период не пишем
	clock.Advance(time.Hour)
	n, err = r.SendReminders(ctx, send)
	require.NoError(t, err)
	require.Zero(t, n)

	// после сбора новый период
	_, err = svc.Collect(ctx, 1)
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	n, err = r.SendReminders(ctx, send)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, got[1], 2)
}
