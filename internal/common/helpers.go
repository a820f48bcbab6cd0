// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм, работа с временем.
package common

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Clock: источник текущего времени. В тестах подменяется фиксированными часами.
type Clock interface {
	Now() time.Time
}

// SystemClock: реальные часы (UTC).
type SystemClock struct{}

// Now возвращает текущее время в UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Pluralize выбирает форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
//
// Пример:
//
//	Pluralize(3, "животное", "животных", "животных") → "животных"
func Pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeAnimals: форма слова «животное».
func PluralizeAnimals(n int) string {
	return Pluralize(int64(n), "животное", "животных", "животных")
}

// PluralizeTickets: форма слова «билет».
func PluralizeTickets(n int) string {
	return Pluralize(int64(n), "билет", "билета", "билетов")
}

// PluralizeReferrals: форма слова «друг».
func PluralizeReferrals(n int) string {
	return Pluralize(int64(n), "друг", "друга", "друзей")
}

// Round2 округляет до двух знаков (half-up для неотрицательных значений).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatDateTime форматирует время в "02.01.2006 15:04" в указанном поясе.
// Используется для отображения дат транзакций.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}

// FormatDuration выводит длительность как "5 ч 07 мин".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%s ч %02d мин", FormatNumber(h), m)
}

// ManualClock: часы, которые двигаются только вручную (тесты, воспроизведение).
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock создаёт часы, остановленные на t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы вперёд на d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
