package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/store"
)

const txColumns = `id, user_id, kind, amount, network, address, proof_file_id, status,
	created_at, resolved_at, resolved_by`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Network, &t.Address, &t.ProofFileID, &t.Status,
		&t.CreatedAt, &t.ResolvedAt, &t.ResolvedBy,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction, reserve store.UserFunc) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		// Резерв списывается в той же транзакции, что и создаётся заявка
		fn := reserve
		if fn == nil {
			fn = func(*domain.User) error { return nil }
		}
		if _, err := updateLocked(ctx, tx, t.UserID, fn); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO payment_transactions (id, user_id, kind, amount, network, address, proof_file_id, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, t.ID, t.UserID, t.Kind, t.Amount, t.Network, t.Address, t.ProofFileID, t.Status, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка создания заявки: %w", err)
		}
		return nil
	})
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	t, err := scanTransaction(s.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM payment_transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявки: %w", err)
	}
	return t, nil
}

func (s *Store) ResolveTransaction(ctx context.Context, id string, fn store.TxFunc) (*domain.Transaction, error) {
	var result *domain.Transaction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		t, err := scanTransaction(tx.QueryRow(ctx,
			`SELECT `+txColumns+` FROM payment_transactions WHERE id = $1 FOR UPDATE`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrTransactionNotFound
		}
		if err != nil {
			return fmt.Errorf("ошибка блокировки заявки: %w", err)
		}

		_, err = updateLocked(ctx, tx, t.UserID, func(u *domain.User) error {
			return fn(t, u)
		})
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE payment_transactions SET status = $2, resolved_at = $3, resolved_by = $4
			WHERE id = $1
		`, t.ID, t.Status, t.ResolvedAt, t.ResolvedBy)
		if err != nil {
			return fmt.Errorf("ошибка обновления заявки: %w", err)
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func txWhere(f store.TransactionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Kind != "" {
		args = append(args, f.Kind)
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (s *Store) ListTransactions(ctx context.Context, f store.TransactionFilter) ([]*domain.Transaction, error) {
	where, args := txWhere(f)
	query := `SELECT ` + txColumns + ` FROM payment_transactions` + where
	if f.Newest {
		query += ` ORDER BY created_at DESC`
	} else {
		query += ` ORDER BY created_at`
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения заявок: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения заявки: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CountTransactions(ctx context.Context, f store.TransactionFilter) (int, error) {
	where, args := txWhere(f)
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM payment_transactions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта заявок: %w", err)
	}
	return n, nil
}
