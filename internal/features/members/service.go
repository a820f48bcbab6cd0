// Package members управляет игроками: регистрацией по /start (в том числе
// по реферальной ссылке) и актуализацией имени и @username.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/features/referral"
	"serotonyl.ru/zoo-bot/internal/metrics"
	"serotonyl.ru/zoo-bot/internal/store"
)

// Profile: данные пользователя из Telegram.
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
}

// Registration: итог регистрации.
type Registration struct {
	User     *domain.User
	Created  bool         // запись создана сейчас
	Referrer *domain.User // пригласивший после начисления бонуса (nil, если бонуса не было)
}

// Service управляет игроками.
type Service struct {
	users store.UserStore
	clock common.Clock
	bonus decimal.Decimal
}

// NewService создаёт сервис. bonus: сколько денег получает пригласивший.
func NewService(users store.UserStore, clock common.Clock, bonus decimal.Decimal) *Service {
	return &Service{users: users, clock: clock, bonus: bonus}
}

// Register создаёт игрока, если его ещё нет.
//
// Бонус пригласившему начисляется в той же транзакции, что и вставка,
// и только если запись действительно создана. Повторный /start, в том
// числе с чужой ссылкой, ничего не начисляет и пригласившего не меняет.
func (s *Service) Register(ctx context.Context, p Profile, referrerID *int64) (*Registration, error) {
	if referrerID != nil && *referrerID == p.UserID {
		referrerID = nil
	}

	now := s.clock.Now()
	u := &domain.User{
		UserID:         p.UserID,
		Username:       p.Username,
		FirstName:      p.FirstName,
		ReferrerID:     referrerID,
		LastCollection: now,
		CreatedAt:      now,
	}

	var referrer *domain.User
	hook := referral.BonusHook(s.bonus)
	created, ok, err := s.users.CreateUser(ctx, u, func(ref *domain.User) error {
		if err := hook(ref); err != nil {
			return err
		}
		referrer = ref.Clone()
		return nil
	})
	metrics.Observe("register", err)
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации игрока %d: %w", p.UserID, err)
	}

	if ok {
		fields := log.Fields{"user_id": p.UserID, "username": p.Username}
		if created.ReferrerID != nil {
			fields["referrer_id"] = *created.ReferrerID
		}
		log.WithFields(fields).Info("Новый игрок зарегистрирован")
	} else {
		referrer = nil
		if created, err = s.refreshProfile(ctx, created, p); err != nil {
			return nil, err
		}
	}

	return &Registration{User: created, Created: ok, Referrer: referrer}, nil
}

// EnsureMember гарантирует, что игрок есть в базе. Вызывается на каждый апдейт.
func (s *Service) EnsureMember(ctx context.Context, p Profile) (*domain.User, error) {
	u, err := s.users.GetUser(ctx, p.UserID)
	if errors.Is(err, common.ErrUserNotFound) {
		reg, err := s.Register(ctx, p, nil)
		if err != nil {
			return nil, err
		}
		return reg.User, nil
	}
	if err != nil {
		return nil, err
	}
	return s.refreshProfile(ctx, u, p)
}

// IsMember проверяет, что игрок зарегистрирован.
func (s *Service) IsMember(ctx context.Context, userID int64) (bool, error) {
	_, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, common.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Get возвращает игрока.
func (s *Service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetUser(ctx, userID)
}

// refreshProfile обновляет имя и @username, если они поменялись в Telegram.
func (s *Service) refreshProfile(ctx context.Context, u *domain.User, p Profile) (*domain.User, error) {
	if u.Username == p.Username && u.FirstName == p.FirstName {
		return u, nil
	}
	updated, err := s.users.UpdateUser(ctx, p.UserID, func(u *domain.User) error {
		u.Username = p.Username
		u.FirstName = p.FirstName
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления профиля %d: %w", p.UserID, err)
	}
	log.WithField("user_id", p.UserID).Debug("Профиль игрока обновлён")
	return updated, nil
}
