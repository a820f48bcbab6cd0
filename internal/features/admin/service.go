// Package admin: service.go содержит аутентификацию администратора,
// сессии и действия панели: модерация заявок, курсы, статистика.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/features/payments"
	"serotonyl.ru/zoo-bot/internal/features/wallet"
	"serotonyl.ru/zoo-bot/internal/store"
)

const (
	sessionTTL    = 24 * time.Hour
	maxAttempts   = 3
	attemptWindow = time.Hour
)

// Service управляет админ-панелью.
type Service struct {
	sessions     store.AdminStore
	users        store.UserStore
	payments     *payments.Service
	rates        *wallet.RatesHolder
	clock        common.Clock
	passwordHash string
	admins       map[int64]struct{}
}

// NewService создаёт сервис админ-панели. admins: ADMIN_IDS.
func NewService(sessions store.AdminStore, users store.UserStore, pay *payments.Service, rates *wallet.RatesHolder,
	clock common.Clock, passwordHash string, admins []int64) *Service {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Service{
		sessions:     sessions,
		users:        users,
		payments:     pay,
		rates:        rates,
		clock:        clock,
		passwordHash: passwordHash,
		admins:       set,
	}
}

// IsAdmin: входит ли пользователь в ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	_, ok := s.admins[userID]
	return ok
}

// VerifyPassword проверяет пароль и открывает сессию на 24 часа.
// 3 неудачные попытки за час блокируют вход.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	now := s.clock.Now()

	failed, err := s.sessions.CountFailedAttempts(ctx, userID, now.Add(-attemptWindow))
	if err != nil {
		return err
	}
	if failed >= maxAttempts {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.passwordHash)
	if err := s.sessions.LogAttempt(ctx, userID, match, now); err != nil {
		log.WithError(err).Error("Ошибка записи попытки входа")
	}
	if !match {
		log.WithFields(log.Fields{"user_id": userID, "failed": failed + 1}).Warn("Неверный пароль админки")
		return common.ErrWrongPassword
	}

	err = s.sessions.CreateSession(ctx, &domain.AdminSession{
		UserID:          userID,
		SessionToken:    generateSecureToken(),
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(sessionTTL),
		LastActivity:    now,
	})
	if err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Админ авторизован")
	return nil
}

// Authorize проверяет права и сессию, продлевает активность.
func (s *Service) Authorize(ctx context.Context, userID int64) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}
	now := s.clock.Now()
	if _, err := s.sessions.GetActiveSession(ctx, userID, now); err != nil {
		if errors.Is(err, common.ErrSessionExpired) {
			return err
		}
		return fmt.Errorf("проверка сессии: %w", err)
	}
	if err := s.sessions.UpdateActivity(ctx, userID, now); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.sessions.DeactivateSession(ctx, userID)
}

// Approve одобряет заявку.
func (s *Service) Approve(ctx context.Context, adminID int64, txID string) (*domain.Transaction, error) {
	return s.resolve(ctx, adminID, txID, domain.TxCompleted)
}

// Reject отклоняет заявку.
func (s *Service) Reject(ctx context.Context, adminID int64, txID string) (*domain.Transaction, error) {
	return s.resolve(ctx, adminID, txID, domain.TxRejected)
}

func (s *Service) resolve(ctx context.Context, adminID int64, txID string, status domain.TxStatus) (*domain.Transaction, error) {
	if err := s.Authorize(ctx, adminID); err != nil {
		return nil, err
	}
	return s.payments.Resolve(ctx, txID, status, adminID)
}

// Pending: страница заявок в очереди.
func (s *Service) Pending(ctx context.Context, adminID int64, kind domain.TxKind, page int) (*payments.Page, error) {
	if err := s.Authorize(ctx, adminID); err != nil {
		return nil, err
	}
	return s.payments.ListPending(ctx, kind, page)
}

// Rates: текущие курсы.
func (s *Service) Rates() wallet.Rates { return s.rates.Get() }

// UpdateRate меняет один курс обмена.
func (s *Service) UpdateRate(ctx context.Context, adminID int64, which string, value decimal.Decimal) (wallet.Rates, error) {
	if err := s.Authorize(ctx, adminID); err != nil {
		return wallet.Rates{}, err
	}
	next, err := s.rates.Get().With(which, value)
	if err != nil {
		return wallet.Rates{}, err
	}
	if err := s.rates.UpdateRates(next); err != nil {
		return wallet.Rates{}, err
	}
	log.WithFields(log.Fields{"admin_id": adminID, "rate": which, "value": value.String()}).Info("Админ изменил курс")
	return next, nil
}

// SystemStats собирает агрегаты по игрокам и очередь заявок.
func (s *Service) SystemStats(ctx context.Context) (domain.SystemStats, error) {
	st, err := s.users.Stats(ctx)
	if err != nil {
		return st, fmt.Errorf("статистика игроков: %w", err)
	}
	if st.PendingDeposits, err = s.payments.CountPending(ctx, domain.TxDeposit); err != nil {
		return st, err
	}
	if st.PendingWithdrawals, err = s.payments.CountPending(ctx, domain.TxWithdrawal); err != nil {
		return st, err
	}
	return st, nil
}
