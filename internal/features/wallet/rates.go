// Package wallet: кошелёк игрока: курсы обмена, конвертации валют
// и атомарная корректировка баланса.
package wallet

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
)

// Rates: курсы обмена.
type Rates struct {
	StarsToMoney decimal.Decimal // 💰 за одну ⭐
	MoneyToUSDT  decimal.Decimal // 💰 за один USDT
}

// Validate проверяет, что оба курса положительны.
func (r Rates) Validate() error {
	if !r.StarsToMoney.IsPositive() {
		return fmt.Errorf("stars→money %s: %w", r.StarsToMoney.String(), common.ErrInvalidRate)
	}
	if !r.MoneyToUSDT.IsPositive() {
		return fmt.Errorf("money→usdt %s: %w", r.MoneyToUSDT.String(), common.ErrInvalidRate)
	}
	return nil
}

// Имена курсов для админки.
const (
	RateStarsToMoney = "stars_to_money"
	RateMoneyToUSDT  = "money_to_usdt"
)

// With возвращает копию с заменённым курсом which.
func (r Rates) With(which string, value decimal.Decimal) (Rates, error) {
	switch which {
	case RateStarsToMoney:
		r.StarsToMoney = value
	case RateMoneyToUSDT:
		r.MoneyToUSDT = value
	default:
		return r, fmt.Errorf("неизвестный курс %q", which)
	}
	return r, nil
}

// RatesHolder хранит текущие курсы. Изменения только через UpdateRates.
type RatesHolder struct {
	mu    sync.RWMutex
	rates Rates
}

// NewRatesHolder создаёт хранилище курсов со стартовыми значениями из конфига.
func NewRatesHolder(initial Rates) (*RatesHolder, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	return &RatesHolder{rates: initial}, nil
}

// Get возвращает снимок курсов.
func (h *RatesHolder) Get() Rates {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rates
}

// UpdateRates заменяет курсы целиком. Невалидные значения отклоняются,
// текущие курсы при этом не меняются.
func (h *RatesHolder) UpdateRates(r Rates) error {
	if err := r.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	old := h.rates
	h.rates = r
	h.mu.Unlock()

	log.WithFields(log.Fields{
		"stars_to_money_old": old.StarsToMoney.String(),
		"stars_to_money":     r.StarsToMoney.String(),
		"money_to_usdt_old":  old.MoneyToUSDT.String(),
		"money_to_usdt":      r.MoneyToUSDT.String(),
	}).Info("Курсы обмена обновлены")
	return nil
}
