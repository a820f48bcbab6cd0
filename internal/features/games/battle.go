// Package games: мини-игры на алмазы: битва животных с другим игроком
// и кости против бота.
package games

import (
	"math"
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/domain"
)

// Random: источник случайности. В тестах подменяется сценарием.
type Random interface {
	Float64() float64 // [0, 1)
	IntN(n int) int   // [0, n)
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }
func (globalRandom) IntN(n int) int   { return rand.Intn(n) }

// SystemRandom: генератор math/rand (потокобезопасный).
func SystemRandom() Random { return globalRandom{} }

// Множители силы по редкости.
var rarityMultiplier = map[domain.Rarity]decimal.Decimal{
	domain.RarityCommon:    decimal.NewFromInt(1),
	domain.RarityRare:      decimal.RequireFromString("1.2"),
	domain.RarityLegendary: decimal.RequireFromString("1.5"),
}

// Границы случайного разброса силы.
var (
	jitterMin   = decimal.RequireFromString("0.8")
	jitterRange = decimal.RequireFromString("0.4")
)

// Jitter переводит u ∈ [0, 1] в множитель [0.8, 1.2]. u за пределами отрезка
// прижимается к ближайшему краю.
func Jitter(u float64) decimal.Decimal {
	u = min(max(u, 0), 1)
	return jitterMin.Add(jitterRange.Mul(decimal.NewFromFloat(u)))
}

// BattlePower = доходность × множитель редкости × разброс, до 2 знаков.
func BattlePower(a domain.Animal, jitter decimal.Decimal) decimal.Decimal {
	mult, ok := rarityMultiplier[a.Rarity]
	if !ok {
		mult = decimal.NewFromInt(1)
	}
	return a.StarsPerHour.Mul(mult).Mul(jitter).Round(2)
}

// NextBet удваивает ставку или делит её пополам, но не ниже minBet.
func NextBet(current, minBet int64, increase bool) int64 {
	if current < minBet {
		current = minBet
	}
	if increase {
		if current > math.MaxInt64/2 {
			return current
		}
		return current * 2
	}
	if next := current / 2; next > minBet {
		return next
	}
	return minBet
}

// Bets: текущая ставка в битве для каждого игрока. Живёт в памяти.
type Bets struct {
	mu     sync.Mutex
	bets   map[int64]int64
	minBet int64
}

// NewBets создаёт книгу ставок.
func NewBets(minBet int64) *Bets {
	return &Bets{bets: make(map[int64]int64), minBet: minBet}
}

// Get возвращает ставку игрока (по умолчанию минимальная).
func (b *Bets) Get(userID int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.bets[userID]; ok {
		return v
	}
	return b.minBet
}

// Change меняет ставку и возвращает новое значение.
func (b *Bets) Change(userID int64, increase bool) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.bets[userID]
	if !ok {
		cur = b.minBet
	}
	next := NextBet(cur, b.minBet, increase)
	b.bets[userID] = next
	return next
}

// Reset возвращает минимальную ставку.
func (b *Bets) Reset(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bets, userID)
}
