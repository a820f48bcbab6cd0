package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/store"
)

func (s *Store) CreateTicket(ctx context.Context, t *domain.LotteryTicket, charge store.UserFunc) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		fn := charge
		if fn == nil {
			fn = func(*domain.User) error { return nil }
		}
		if _, err := updateLocked(ctx, tx, t.UserID, fn); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO lottery_tickets (id, user_id, draw_date, created_at) VALUES ($1, $2, $3, $4)
		`, t.ID, t.UserID, t.DrawDate, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка создания билета: %w", err)
		}
		return nil
	})
}

func (s *Store) ListDueTickets(ctx context.Context, until time.Time) ([]*domain.LotteryTicket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, draw_date, created_at FROM lottery_tickets
		WHERE draw_date <= $1 ORDER BY created_at
	`, until)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения билетов: %w", err)
	}
	defer rows.Close()

	var out []*domain.LotteryTicket
	for rows.Next() {
		var t domain.LotteryTicket
		if err := rows.Scan(&t.ID, &t.UserID, &t.DrawDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения билета: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) SettleDraw(ctx context.Context, ticketIDs []string, winnerID int64, prize decimal.Decimal) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		// Параллельный розыгрыш ждёт на блокировке строк и потом не находит билетов
		rows, err := tx.Query(ctx, `DELETE FROM lottery_tickets WHERE id = ANY($1) RETURNING id`, ticketIDs)
		if err != nil {
			return fmt.Errorf("ошибка удаления билетов: %w", err)
		}
		deleted := 0
		for rows.Next() {
			deleted++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("ошибка удаления билетов: %w", err)
		}
		if deleted != len(ticketIDs) {
			return fmt.Errorf("удалено %d билетов из %d: %w", deleted, len(ticketIDs), common.ErrInvalidState)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE zoo_users SET money = money + $2, updated_at = NOW() WHERE user_id = $1
		`, winnerID, prize)
		if err != nil {
			return fmt.Errorf("ошибка начисления выигрыша: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) CountTickets(ctx context.Context, userID int64, drawDate time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM lottery_tickets WHERE user_id = $1 AND draw_date = $2
	`, userID, drawDate).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта билетов: %w", err)
	}
	return n, nil
}
