// Package domain описывает сущности игры: игрок, животное, транзакция,
// лотерейный билет, админ-сессия. Хранилища и сервисы работают только с ними.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Currency: поле кошелька, над которым выполняется операция.
type Currency string

const (
	CurrencyStars    Currency = "stars"
	CurrencyMoney    Currency = "money"
	CurrencyDiamonds Currency = "diamonds"
	CurrencyUSDT     Currency = "usdt"
)

// Valid проверяет, что валюта известна.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyStars, CurrencyMoney, CurrencyDiamonds, CurrencyUSDT:
		return true
	}
	return false
}

// Rarity: редкость животного.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// Animal: животное в зоопарке. После покупки не меняется.
type Animal struct {
	ID           string          `db:"animal_id"`
	Species      string          `db:"species"`
	Name         string          `db:"name"`
	Rarity       Rarity          `db:"rarity"`
	StarsPerHour decimal.Decimal `db:"stars_per_hour"`
	AcquiredAt   time.Time       `db:"acquired_at"`
}

// User: запись игрока: кошелёк, животные, реферальные данные.
// Все четыре баланса всегда >= 0.
type User struct {
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`

	Stars    decimal.Decimal `db:"stars"`
	Money    decimal.Decimal `db:"money"`
	Diamonds decimal.Decimal `db:"diamonds"`
	USDT     decimal.Decimal `db:"usdt"`

	Animals        []Animal  `db:"-"`
	LastCollection time.Time `db:"last_collection"`

	ReferrerID       *int64          `db:"referrer_id"`
	ReferralEarnings decimal.Decimal `db:"referral_earnings"`
	TotalReferrals   int             `db:"total_referrals"`
	TotalDeposits    decimal.Decimal `db:"total_deposits"`

	WithdrawalAddresses map[string]string `db:"withdrawal_addresses"`

	CreatedAt time.Time `db:"created_at"`
}

// DisplayName возвращает имя для отображения (@username или имя).
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("id%d", u.UserID)
}

// Balance возвращает значение поля кошелька.
func (u *User) Balance(c Currency) decimal.Decimal {
	switch c {
	case CurrencyStars:
		return u.Stars
	case CurrencyMoney:
		return u.Money
	case CurrencyDiamonds:
		return u.Diamonds
	case CurrencyUSDT:
		return u.USDT
	}
	return decimal.Zero
}

// SetBalance записывает значение поля кошелька.
func (u *User) SetBalance(c Currency, v decimal.Decimal) {
	switch c {
	case CurrencyStars:
		u.Stars = v
	case CurrencyMoney:
		u.Money = v
	case CurrencyDiamonds:
		u.Diamonds = v
	case CurrencyUSDT:
		u.USDT = v
	}
}

// NonNegative проверяет инвариант кошелька.
func (u *User) NonNegative() bool {
	return !u.Stars.IsNegative() && !u.Money.IsNegative() &&
		!u.Diamonds.IsNegative() && !u.USDT.IsNegative()
}

// StarsPerHour: суммарная доходность зоопарка.
func (u *User) StarsPerHour() decimal.Decimal {
	total := decimal.Zero
	for _, a := range u.Animals {
		total = total.Add(a.StarsPerHour)
	}
	return total
}

// Clone возвращает глубокую копию (слайсы и карты не разделяются).
func (u *User) Clone() *User {
	c := *u
	if u.Animals != nil {
		c.Animals = append([]Animal(nil), u.Animals...)
	}
	if u.ReferrerID != nil {
		ref := *u.ReferrerID
		c.ReferrerID = &ref
	}
	if u.WithdrawalAddresses != nil {
		c.WithdrawalAddresses = make(map[string]string, len(u.WithdrawalAddresses))
		for k, v := range u.WithdrawalAddresses {
			c.WithdrawalAddresses[k] = v
		}
	}
	return &c
}
