package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// CreateSession создаёт новую сессию администратора.
func (s *Store) CreateSession(ctx context.Context, session *domain.AdminSession) error {
	query := `
		INSERT INTO admin_sessions (user_id, session_token, authenticated_at, expires_at, last_activity, is_active)
		VALUES ($1, $2, $3, $4, $3, TRUE)
	`
	_, err := s.db.Exec(ctx, query, session.UserID, session.SessionToken, session.AuthenticatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// GetActiveSession возвращает действующую сессию или common.ErrSessionExpired.
func (s *Store) GetActiveSession(ctx context.Context, userID int64, now time.Time) (*domain.AdminSession, error) {
	query := `
		SELECT id, user_id, session_token, authenticated_at, expires_at, last_activity, is_active
		FROM admin_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > $2
		ORDER BY authenticated_at DESC
		LIMIT 1
	`
	var sess domain.AdminSession
	err := s.db.QueryRow(ctx, query, userID, now).Scan(
		&sess.ID, &sess.UserID, &sess.SessionToken, &sess.AuthenticatedAt,
		&sess.ExpiresAt, &sess.LastActivity, &sess.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения сессии: %w", err)
	}
	return &sess, nil
}

// DeactivateSession закрывает все сессии администратора.
func (s *Store) DeactivateSession(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `UPDATE admin_sessions SET is_active = FALSE WHERE user_id = $1`, userID)
	return err
}

// UpdateActivity обновляет время последней активности.
func (s *Store) UpdateActivity(ctx context.Context, userID int64, now time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE admin_sessions SET last_activity = $2 WHERE user_id = $1 AND is_active = TRUE`, userID, now)
	return err
}

// LogAttempt записывает попытку входа.
func (s *Store) LogAttempt(ctx context.Context, userID int64, success bool, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO admin_login_attempts (user_id, success, attempt_time) VALUES ($1, $2, $3)`, userID, success, at)
	return err
}

// CountFailedAttempts возвращает количество неудачных попыток начиная с since.
func (s *Store) CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time >= $2
	`, userID, since).Scan(&count)
	return count, err
}
