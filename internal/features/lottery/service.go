// Package lottery: ежедневная лотерея: билеты за деньги, розыгрыш в полночь,
// весь банк уходит одному случайному билету.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/metrics"
	"serotonyl.ru/zoo-bot/internal/store"
)

// Random выбирает победный билет.
type Random interface {
	IntN(n int) int
}

// Service продаёт билеты и проводит розыгрыши.
type Service struct {
	tickets store.LotteryStore
	rnd     Random
	clock   common.Clock
	loc     *time.Location
	price   decimal.Decimal
}

// NewService создаёт сервис лотереи. loc: пояс, в котором считается полночь.
func NewService(tickets store.LotteryStore, rnd Random, clock common.Clock, loc *time.Location, price decimal.Decimal) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{tickets: tickets, rnd: rnd, clock: clock, loc: loc, price: price}
}

// Price: цена билета.
func (s *Service) Price() decimal.Decimal { return s.price }

// NextDrawDate: ближайшая полночь в поясе loc строго после now.
func NextDrawDate(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

// NextDraw: дата ближайшего розыгрыша.
func (s *Service) NextDraw() time.Time {
	return NextDrawDate(s.clock.Now(), s.loc)
}

// Purchase: итог покупки билета.
type Purchase struct {
	Ticket  domain.LotteryTicket
	Tickets int             // билетов игрока на этот розыгрыш
	Money   decimal.Decimal // деньги после оплаты
}

// BuyTicket списывает цену билета и регистрирует билет на ближайший розыгрыш.
// Не хватает денег → common.ErrInsufficientFunds.
func (s *Service) BuyTicket(ctx context.Context, userID int64) (*Purchase, error) {
	now := s.clock.Now()
	t := domain.LotteryTicket{
		ID:        uuid.NewString(),
		UserID:    userID,
		DrawDate:  NextDrawDate(now, s.loc),
		CreatedAt: now,
	}

	var money decimal.Decimal
	err := s.tickets.CreateTicket(ctx, &t, func(u *domain.User) error {
		if u.Money.LessThan(s.price) {
			return common.ErrInsufficientFunds
		}
		u.Money = u.Money.Sub(s.price)
		money = u.Money
		return nil
	})
	metrics.Observe("lottery_ticket", err)
	if err != nil {
		return nil, err
	}

	n, err := s.tickets.CountTickets(ctx, userID, t.DrawDate)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": userID, "draw_date": t.DrawDate}).Info("Куплен лотерейный билет")
	return &Purchase{Ticket: t, Tickets: n, Money: money}, nil
}

// MyTickets: сколько билетов у игрока на ближайший розыгрыш.
func (s *Service) MyTickets(ctx context.Context, userID int64) (int, error) {
	return s.tickets.CountTickets(ctx, userID, s.NextDraw())
}

// Result: итог одного розыгрыша.
type Result struct {
	DrawDate time.Time
	Tickets  int
	WinnerID int64
	Prize    decimal.Decimal
}

// Draw разыгрывает все розыгрыши с датой <= now. Обычно он один, несколько
// бывает, если бот простаивал в полночь. Банк = билеты × цена, победитель
// определяется случайным билетом. Выигрыш и удаление билетов идут одной
// операцией хранилища: розыгрыш, уже проведённый другим вызовом, пропускается.
func (s *Service) Draw(ctx context.Context, now time.Time) ([]Result, error) {
	due, err := s.tickets.ListDueTickets(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения билетов: %w", err)
	}
	if len(due) == 0 {
		return nil, nil
	}

	groups := make(map[int64][]*domain.LotteryTicket)
	var dates []time.Time
	for _, t := range due {
		key := t.DrawDate.Unix()
		if _, ok := groups[key]; !ok {
			dates = append(dates, t.DrawDate)
		}
		groups[key] = append(groups[key], t)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	results := make([]Result, 0, len(dates))
	for _, date := range dates {
		tickets := groups[date.Unix()]
		winner := tickets[s.rnd.IntN(len(tickets))]
		prize := s.price.Mul(decimal.NewFromInt(int64(len(tickets))))

		ids := make([]string, len(tickets))
		for i, t := range tickets {
			ids[i] = t.ID
		}

		err := s.tickets.SettleDraw(ctx, ids, winner.UserID, prize)
		if errors.Is(err, common.ErrInvalidState) {
			log.WithField("draw_date", date).Warn("Розыгрыш уже проведён, пропускаем")
			continue
		}
		if err != nil {
			metrics.Observe("lottery_draw", err)
			return results, fmt.Errorf("ошибка расчёта розыгрыша %s: %w", date.Format("2006-01-02"), err)
		}

		log.WithFields(log.Fields{
			"draw_date": date,
			"tickets":   len(tickets),
			"winner_id": winner.UserID,
			"prize":     prize.String(),
		}).Info("Лотерея разыграна")
		results = append(results, Result{DrawDate: date, Tickets: len(tickets), WinnerID: winner.UserID, Prize: prize})
	}
	metrics.Observe("lottery_draw", nil)
	return results, nil
}
