package zoo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/zoo-bot/internal/bot/ui/uitest"
	"serotonyl.ru/zoo-bot/internal/domain"
)

func TestHandleCollectMessages(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t, &domain.User{UserID: 1, Animals: animals(10)})
	rec := &uitest.Recorder{}
	h := NewHandler(svc, rec)

	h.HandleCollect(ctx, 1, 1)
	require.Contains(t, rec.Last(), "ещё не накопились")

	clock.Advance(90 * time.Minute)
	h.HandleCollect(ctx, 1, 1)
	require.Contains(t, rec.Last(), "Собрано ⭐ 15")
}

func TestHandleBuyNotEnoughDiamonds(t *testing.T) {
	svc, _, _ := newTestService(t, &domain.User{UserID: 1, Diamonds: decimal.NewFromInt(10)})
	rec := &uitest.Recorder{}
	h := NewHandler(svc, rec)

	h.HandleBuy(context.Background(), 1, 1, "dragon")
	require.Contains(t, rec.Last(), "Не хватает алмазов")
}

func TestHandleShopCategoryListsPrices(t *testing.T) {
	svc, _, _ := newTestService(t, &domain.User{UserID: 1})
	rec := &uitest.Recorder{}
	h := NewHandler(svc, rec)

	h.HandleShopCategory(context.Background(), 1, domain.RarityLegendary)
	require.Contains(t, rec.Last(), "🐉 Дракон")
	require.Contains(t, rec.Last(), "💎 750")
}
