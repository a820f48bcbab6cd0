package zoo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/metrics"
	"serotonyl.ru/zoo-bot/internal/store"
)

// Service управляет зоопарками игроков.
type Service struct {
	users   store.UserStore
	catalog *Catalog
	clock   common.Clock
}

// NewService создаёт сервис зоопарка.
func NewService(users store.UserStore, catalog *Catalog, clock common.Clock) *Service {
	return &Service{users: users, catalog: catalog, clock: clock}
}

// Catalog возвращает каталог видов.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Overview: состояние зоопарка на текущий момент.
type Overview struct {
	User         *domain.User
	StarsPerHour decimal.Decimal
	Pending      decimal.Decimal
	UntilCap     time.Duration
}

// CollectResult: итог сбора звёзд.
type CollectResult struct {
	Collected decimal.Decimal // сколько начислено
	Stars     decimal.Decimal // баланс звёзд после сбора
	Capped    bool            // упёрлись в лимит 24 часа
}

// Overview возвращает животных, доходность и несобранные звёзды.
func (s *Service) Overview(ctx context.Context, userID int64) (*Overview, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return &Overview{
		User:         u,
		StarsPerHour: u.StarsPerHour(),
		Pending:      ComputePendingAccrual(u.Animals, u.LastCollection, now),
		UntilCap:     UntilCap(u.LastCollection, now),
	}, nil
}

// Collect переносит накопленные звёзды на баланс.
// Начисление и сдвиг last_collection: одна атомарная запись, поэтому
// параллельный повторный сбор увидит нулевой остаток.
// Нечего собирать → common.ErrNothingToCollect.
func (s *Service) Collect(ctx context.Context, userID int64) (*CollectResult, error) {
	now := s.clock.Now()
	var res CollectResult

	u, err := s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		pending := ComputePendingAccrual(u.Animals, u.LastCollection, now)
		if !pending.IsPositive() {
			return common.ErrNothingToCollect
		}
		res.Capped = now.Sub(u.LastCollection) >= MaxAccrual
		res.Collected = pending
		u.Stars = u.Stars.Add(pending)
		u.LastCollection = now
		return nil
	})
	metrics.Observe("collect", err)
	if err != nil {
		return nil, err
	}

	res.Stars = u.Stars
	log.WithFields(log.Fields{
		"user_id":   userID,
		"collected": res.Collected.String(),
		"capped":    res.Capped,
	}).Debug("Звёзды собраны")
	return &res, nil
}

// PurchaseResult: итог покупки.
type PurchaseResult struct {
	Animal  domain.Animal
	User    *domain.User
	Settled decimal.Decimal // звёзды, собранные автоматически перед покупкой
}

// Purchase покупает животное за алмазы.
//
// Списание алмазов и добавление животного: одна запись. Доходность
// копируется из каталога на момент покупки. Перед добавлением накопленное
// старыми животными переносится на баланс, чтобы новое животное не
// начисляло звёзды за время до покупки.
func (s *Service) Purchase(ctx context.Context, userID int64, speciesKey string) (*PurchaseResult, error) {
	sp, ok := s.catalog.Get(speciesKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownSpecies, speciesKey)
	}

	now := s.clock.Now()
	animal := domain.Animal{
		ID:           uuid.NewString(),
		Species:      sp.Key,
		Name:         sp.Name,
		Rarity:       sp.Rarity,
		StarsPerHour: sp.StarsPerHour,
		AcquiredAt:   now,
	}

	var settled decimal.Decimal
	u, err := s.users.UpdateUser(ctx, userID, func(u *domain.User) error {
		if u.Diamonds.LessThan(sp.PriceDiamonds) {
			return fmt.Errorf("%w: нужно %s, есть %s", common.ErrInsufficientFunds,
				sp.PriceDiamonds.String(), u.Diamonds.String())
		}

		settled = ComputePendingAccrual(u.Animals, u.LastCollection, now)
		u.Stars = u.Stars.Add(settled)
		u.LastCollection = now

		u.Diamonds = u.Diamonds.Sub(sp.PriceDiamonds)
		u.Animals = append(u.Animals, animal)
		return nil
	})
	metrics.Observe("purchase", err)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"species": sp.Key,
		"price":   sp.PriceDiamonds.String(),
	}).Info("Куплено животное")

	return &PurchaseResult{Animal: animal, User: u, Settled: settled}, nil
}
