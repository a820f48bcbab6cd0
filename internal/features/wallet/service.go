package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/metrics"
	"serotonyl.ru/zoo-bot/internal/store"
)

// Service выполняет операции с кошельком.
type Service struct {
	users store.UserStore
	rates *RatesHolder
}

// NewService создаёт сервис кошелька.
func NewService(users store.UserStore, rates *RatesHolder) *Service {
	return &Service{users: users, rates: rates}
}

// Rates возвращает хранилище курсов.
func (s *Service) Rates() *RatesHolder { return s.rates }

// Conversion: итог обмена.
type Conversion struct {
	Spent    decimal.Decimal // списано исходной валюты
	Received decimal.Decimal // зачислено целевой валюты
	User     *domain.User    // кошелёк после обмена
}

// Balance возвращает кошелёк игрока.
func (s *Service) Balance(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetUser(ctx, userID)
}

// ConvertStars меняет все звёзды на деньги по курсу stars→money.
// Нет звёзд → common.ErrInsufficientBalance.
func (s *Service) ConvertStars(ctx context.Context, userID int64) (*Conversion, error) {
	rate := s.rates.Get().StarsToMoney
	var conv Conversion

	u, err := s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		if !u.Stars.IsPositive() {
			return common.ErrInsufficientBalance
		}
		conv.Spent = u.Stars
		conv.Received = common.Round2(u.Stars.Mul(rate))
		u.Money = u.Money.Add(conv.Received)
		u.Stars = decimal.Zero
		return nil
	})
	metrics.Observe("convert_stars", err)
	if err != nil {
		return nil, err
	}

	conv.User = u
	log.WithFields(log.Fields{
		"user_id": userID,
		"stars":   conv.Spent.String(),
		"money":   conv.Received.String(),
	}).Info("Звёзды обменяны")
	return &conv, nil
}

// ConvertMoney меняет деньги на целые USDT: usdt = floor(money / rate),
// остаток остаётся на балансе. Меньше курса → common.ErrInsufficientBalance.
func (s *Service) ConvertMoney(ctx context.Context, userID int64) (*Conversion, error) {
	rate := s.rates.Get().MoneyToUSDT
	var conv Conversion

	u, err := s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		if u.Money.LessThan(rate) {
			return fmt.Errorf("нужно минимум %s: %w", rate.String(), common.ErrInsufficientBalance)
		}
		usdt, _ := u.Money.QuoRem(rate, 0)
		conv.Received = usdt
		conv.Spent = usdt.Mul(rate)
		u.Money = u.Money.Sub(conv.Spent)
		u.USDT = u.USDT.Add(usdt)
		return nil
	})
	metrics.Observe("convert_money", err)
	if err != nil {
		return nil, err
	}

	conv.User = u
	log.WithFields(log.Fields{
		"user_id": userID,
		"money":   conv.Spent.String(),
		"usdt":    conv.Received.String(),
	}).Info("Деньги обменяны на USDT")
	return &conv, nil
}

// AdjustBalance атомарно прибавляет delta к одному полю кошелька.
// Результат ниже нуля → common.ErrInsufficientBalance, баланс не меняется.
func (s *Service) AdjustBalance(ctx context.Context, userID int64, field domain.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	if !field.Valid() {
		return decimal.Zero, fmt.Errorf("неизвестная валюта %q", field)
	}
	v, err := s.users.IncrementBalance(ctx, userID, field, delta)
	metrics.Observe("adjust_balance", err)
	if err != nil {
		return decimal.Zero, fmt.Errorf("изменение %s на %s: %w", field, delta.String(), err)
	}
	return v, nil
}
