package games

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/metrics"
	"serotonyl.ru/zoo-bot/internal/store"
)

// Outcome: исход игры для игрока.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
	OutcomeVoid Outcome = "void" // ставка аннулирована: кто-то уже не может её покрыть
)

// сколько кандидатов в соперники просим у хранилища
const opponentPool = 20

var errVoid = errors.New("ставка аннулирована")

// Service проводит игры.
type Service struct {
	users   store.UserStore
	rnd     Random
	minBet  int64
	diceBet int64
}

// NewService создаёт сервис игр.
func NewService(users store.UserStore, rnd Random, minBet, diceBet int64) *Service {
	return &Service{users: users, rnd: rnd, minBet: minBet, diceBet: diceBet}
}

// MinBet: минимальная ставка в битве.
func (s *Service) MinBet() int64 { return s.minBet }

// DiceBet: фиксированная ставка в костях.
func (s *Service) DiceBet() int64 { return s.diceBet }

// BattleResult: итог битвы.
type BattleResult struct {
	Outcome        Outcome
	Bet            decimal.Decimal
	Opponent       *domain.User
	Animal         domain.Animal
	OpponentAnimal domain.Animal
	Power          decimal.Decimal
	OpponentPower  decimal.Decimal
	Diamonds       decimal.Decimal // алмазы игрока после расчёта
}

// Battle проводит битву против случайного игрока, у которого есть животные
// и хватает алмазов покрыть ставку. Перевод ставки от проигравшего к
// победителю выполняется одной транзакцией над обеими записями.
func (s *Service) Battle(ctx context.Context, userID, bet int64) (*BattleResult, error) {
	res, err := s.battle(ctx, userID, bet)
	metrics.Observe("battle", err)
	return res, err
}

func (s *Service) battle(ctx context.Context, userID, bet int64) (*BattleResult, error) {
	if bet < s.minBet {
		return nil, fmt.Errorf("ставка %d меньше минимальной %d: %w", bet, s.minBet, common.ErrInvalidAmount)
	}
	stake := decimal.NewFromInt(bet)

	me, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(me.Animals) == 0 {
		return nil, common.ErrNoAnimals
	}
	if me.Diamonds.LessThan(stake) {
		return nil, common.ErrInsufficientFunds
	}

	candidates, err := s.users.FindUsers(ctx, store.UserFilter{
		HasAnimals:    true,
		MinDiamonds:   &stake,
		ExcludeUserID: userID,
		Shuffle:       true,
		Limit:         opponentPool,
	})
	if err != nil {
		return nil, fmt.Errorf("поиск соперника: %w", err)
	}
	if len(candidates) == 0 {
		return nil, common.ErrNoOpponent
	}
	opp := candidates[s.rnd.IntN(len(candidates))]

	res := &BattleResult{
		Bet:            stake,
		Opponent:       opp,
		Animal:         me.Animals[s.rnd.IntN(len(me.Animals))],
		OpponentAnimal: opp.Animals[s.rnd.IntN(len(opp.Animals))],
		Diamonds:       me.Diamonds,
	}
	res.Power = BattlePower(res.Animal, Jitter(s.rnd.Float64()))
	res.OpponentPower = BattlePower(res.OpponentAnimal, Jitter(s.rnd.Float64()))

	switch res.Power.Cmp(res.OpponentPower) {
	case 1:
		res.Outcome = OutcomeWin
	case -1:
		res.Outcome = OutcomeLoss
	default:
		res.Outcome = OutcomeDraw
		return res, nil
	}

	first, _, err := s.users.UpdateUserPair(ctx, userID, opp.UserID, func(u, o *domain.User) error {
		if u.Diamonds.LessThan(stake) || o.Diamonds.LessThan(stake) {
			return errVoid
		}
		if res.Outcome == OutcomeWin {
			u.Diamonds = u.Diamonds.Add(stake)
			o.Diamonds = o.Diamonds.Sub(stake)
		} else {
			u.Diamonds = u.Diamonds.Sub(stake)
			o.Diamonds = o.Diamonds.Add(stake)
		}
		return nil
	})
	if errors.Is(err, errVoid) {
		res.Outcome = OutcomeVoid
		log.WithFields(log.Fields{"user_id": userID, "opponent_id": opp.UserID, "bet": bet}).Info("Битва аннулирована")
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("расчёт битвы: %w", err)
	}

	res.Diamonds = first.Diamonds
	log.WithFields(log.Fields{
		"user_id":     userID,
		"opponent_id": opp.UserID,
		"bet":         bet,
		"outcome":     res.Outcome,
	}).Info("Битва завершена")
	return res, nil
}

// DiceResult: итог игры в кости.
type DiceResult struct {
	Outcome  Outcome
	Bet      decimal.Decimal
	Roll     int
	BotRoll  int
	Diamonds decimal.Decimal
}

// Dice: бросок костей против бота на фиксированную ставку.
// Выигрыш +ставка, проигрыш −ставка, ничья без изменений.
func (s *Service) Dice(ctx context.Context, userID int64) (*DiceResult, error) {
	res, err := s.dice(ctx, userID)
	metrics.Observe("dice", err)
	return res, err
}

func (s *Service) dice(ctx context.Context, userID int64) (*DiceResult, error) {
	stake := decimal.NewFromInt(s.diceBet)

	me, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if me.Diamonds.LessThan(stake) {
		return nil, common.ErrInsufficientFunds
	}

	res := &DiceResult{
		Bet:      stake,
		Roll:     s.rnd.IntN(6) + 1,
		BotRoll:  s.rnd.IntN(6) + 1,
		Diamonds: me.Diamonds,
	}

	var delta decimal.Decimal
	switch {
	case res.Roll > res.BotRoll:
		res.Outcome = OutcomeWin
		delta = stake
	case res.Roll < res.BotRoll:
		res.Outcome = OutcomeLoss
		delta = stake.Neg()
	default:
		res.Outcome = OutcomeDraw
		return res, nil
	}

	v, err := s.users.IncrementBalance(ctx, userID, domain.CurrencyDiamonds, delta)
	if errors.Is(err, common.ErrInsufficientBalance) {
		// алмазы успели потратить между проверкой и списанием
		return nil, common.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("расчёт костей: %w", err)
	}
	res.Diamonds = v
	return res, nil
}
