package referral

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/store"
)

// LevelRates: доля с пополнений рефералов на уровнях 1..3.
var LevelRates = [3]decimal.Decimal{
	decimal.RequireFromString("0.10"),
	decimal.RequireFromString("0.03"),
	decimal.RequireFromString("0.01"),
}

// Level: агрегаты одного уровня.
type Level struct {
	Number   int
	Rate     decimal.Decimal
	Count    int
	Deposits decimal.Decimal // сумма пополнений рефералов уровня
	Earnings decimal.Decimal // Deposits × Rate
}

// Stats: реферальная статистика игрока. Считается при каждом запросе и нигде не хранится.
type Stats struct {
	Levels          [3]Level
	TotalReferrals  int
	TotalEarnings   decimal.Decimal // сумма по уровням
	BonusEarnings   decimal.Decimal // начисленные бонусы за приглашения
	DirectReferrals int             // счётчик из записи игрока
}

// Service считает реферальную статистику.
type Service struct {
	users store.UserStore
}

// NewService создаёт сервис.
func NewService(users store.UserStore) *Service {
	return &Service{users: users}
}

// Stats обходит дерево приглашений на три уровня вниз.
func (s *Service) Stats(ctx context.Context, userID int64) (*Stats, error) {
	owner, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalEarnings:   decimal.Zero,
		BonusEarnings:   owner.ReferralEarnings,
		DirectReferrals: owner.TotalReferrals,
	}

	parents := []int64{userID}
	for i := range st.Levels {
		lvl := Level{Number: i + 1, Rate: LevelRates[i], Deposits: decimal.Zero}

		var next []int64
		if len(parents) > 0 {
			refs, err := s.users.FindUsers(ctx, store.UserFilter{ReferrerIDs: parents})
			if err != nil {
				return nil, fmt.Errorf("рефералы уровня %d: %w", i+1, err)
			}
			for _, r := range refs {
				lvl.Count++
				lvl.Deposits = lvl.Deposits.Add(r.TotalDeposits)
				next = append(next, r.UserID)
			}
		}

		lvl.Earnings = lvl.Deposits.Mul(lvl.Rate).Round(2)
		st.Levels[i] = lvl
		st.TotalReferrals += lvl.Count
		st.TotalEarnings = st.TotalEarnings.Add(lvl.Earnings)
		parents = next
	}
	return st, nil
}
