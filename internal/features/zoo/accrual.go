package zoo

import (
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/domain"
)

// MaxAccrual: сколько максимум копится без сбора.
const MaxAccrual = 24 * time.Hour

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// AccruedHours: часы с последнего сбора, зажатые в [0, 24].
func AccruedHours(lastCollection, now time.Time) decimal.Decimal {
	elapsed := now.Sub(lastCollection)
	if elapsed <= 0 {
		return decimal.Zero
	}
	if elapsed > MaxAccrual {
		elapsed = MaxAccrual
	}
	return decimal.NewFromInt(int64(elapsed)).Div(nanosPerHour)
}

// ComputePendingAccrual считает несобранные звёзды. Чистая функция.
//
// Результат = Σ stars_per_hour × часы, округлённый до 2 знаков по правилу
// half-up (все слагаемые неотрицательны). Без животных или при elapsed <= 0: ровно 0.
func ComputePendingAccrual(animals []domain.Animal, lastCollection, now time.Time) decimal.Decimal {
	if len(animals) == 0 {
		return decimal.Zero
	}
	hours := AccruedHours(lastCollection, now)
	if !hours.IsPositive() {
		return decimal.Zero
	}

	rate := decimal.Zero
	for _, a := range animals {
		rate = rate.Add(a.StarsPerHour)
	}
	return rate.Mul(hours).Round(2)
}

// UntilCap: сколько осталось до упора в 24 часа.
func UntilCap(lastCollection, now time.Time) time.Duration {
	left := MaxAccrual - now.Sub(lastCollection)
	if left < 0 {
		return 0
	}
	if left > MaxAccrual {
		return MaxAccrual
	}
	return left
}
