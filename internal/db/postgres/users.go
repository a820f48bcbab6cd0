package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/store"
)

var (
	_ store.UserStore        = (*Store)(nil)
	_ store.TransactionStore = (*Store)(nil)
	_ store.LotteryStore     = (*Store)(nil)
	_ store.AdminStore       = (*Store)(nil)
)

// Store реализует все интерфейсы store поверх пула pgx.
type Store struct {
	db *pgxpool.Pool
}

// NewStore создаёт хранилище.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const userColumns = `user_id, username, first_name, stars, money, diamonds, usdt,
	last_collection, referrer_id, referral_earnings, total_referrals, total_deposits,
	withdrawal_addresses, created_at`

// queryer: общее у pgxpool.Pool и pgx.Tx.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.UserID, &u.Username, &u.FirstName, &u.Stars, &u.Money, &u.Diamonds, &u.USDT,
		&u.LastCollection, &u.ReferrerID, &u.ReferralEarnings, &u.TotalReferrals, &u.TotalDeposits,
		&u.WithdrawalAddresses, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func loadAnimals(ctx context.Context, q queryer, userID int64) ([]domain.Animal, error) {
	rows, err := q.Query(ctx, `
		SELECT animal_id, species, name, rarity, stars_per_hour, acquired_at
		FROM zoo_animals WHERE user_id = $1 ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения животных: %w", err)
	}
	defer rows.Close()

	var animals []domain.Animal
	for rows.Next() {
		var a domain.Animal
		if err := rows.Scan(&a.ID, &a.Species, &a.Name, &a.Rarity, &a.StarsPerHour, &a.AcquiredAt); err != nil {
			return nil, fmt.Errorf("ошибка чтения животного: %w", err)
		}
		animals = append(animals, a)
	}
	return animals, rows.Err()
}

// getUser читает игрока; forUpdate блокирует строку до конца транзакции.
func getUser(ctx context.Context, q queryer, userID int64, forUpdate bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM zoo_users WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	u, err := scanUser(q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	if u.Animals, err = loadAnimals(ctx, q, userID); err != nil {
		return nil, err
	}
	return u, nil
}

// saveUser записывает изменения после проверки инвариантов и добавляет новых животных.
func saveUser(ctx context.Context, tx pgx.Tx, before, after *domain.User) error {
	if err := store.ValidateWrite(before, after); err != nil {
		return err
	}

	addresses := after.WithdrawalAddresses
	if addresses == nil {
		addresses = map[string]string{}
	}

	_, err := tx.Exec(ctx, `
		UPDATE zoo_users SET
			username = $2, first_name = $3,
			stars = $4, money = $5, diamonds = $6, usdt = $7,
			last_collection = $8, referrer_id = $9,
			referral_earnings = $10, total_referrals = $11, total_deposits = $12,
			withdrawal_addresses = $13, updated_at = NOW()
		WHERE user_id = $1
	`, after.UserID, after.Username, after.FirstName,
		after.Stars, after.Money, after.Diamonds, after.USDT,
		after.LastCollection, after.ReferrerID,
		after.ReferralEarnings, after.TotalReferrals, after.TotalDeposits,
		addresses,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}

	for _, a := range after.Animals[len(before.Animals):] {
		_, err := tx.Exec(ctx, `
			INSERT INTO zoo_animals (animal_id, user_id, species, name, rarity, stars_per_hour, acquired_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, after.UserID, a.Species, a.Name, a.Rarity, a.StarsPerHour, a.AcquiredAt)
		if err != nil {
			return fmt.Errorf("ошибка добавления животного: %w", err)
		}
	}
	return nil
}

// updateLocked: read-modify-write одной записи внутри уже открытой транзакции.
func updateLocked(ctx context.Context, tx pgx.Tx, userID int64, fn store.UserFunc) (*domain.User, error) {
	before, err := getUser(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	after := before.Clone()
	if err := fn(after); err != nil {
		return nil, err
	}
	if err := saveUser(ctx, tx, before, after); err != nil {
		return nil, err
	}
	return after, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	return getUser(ctx, s.db, userID, false)
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User, onReferrer store.UserFunc) (*domain.User, bool, error) {
	var (
		result  *domain.User
		created bool
	)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Пригласившего блокируем до вставки: бонус идёт в той же транзакции
		var referrer *domain.User
		if u.ReferrerID != nil && *u.ReferrerID != u.UserID {
			ref, err := getUser(ctx, tx, *u.ReferrerID, true)
			switch {
			case err == nil:
				referrer = ref
			case !errors.Is(err, common.ErrNotFound):
				return err
			}
		}

		var referrerID *int64
		if referrer != nil {
			referrerID = &referrer.UserID
		}

		var insertedID int64
		err := tx.QueryRow(ctx, `
			INSERT INTO zoo_users (user_id, username, first_name, last_collection, referrer_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id) DO NOTHING
			RETURNING user_id
		`, u.UserID, u.Username, u.FirstName, u.LastCollection, referrerID, u.CreatedAt).Scan(&insertedID)

		if errors.Is(err, pgx.ErrNoRows) {
			// Уже зарегистрирован: бонус не начисляем
			existing, err := getUser(ctx, tx, u.UserID, false)
			if err != nil {
				return err
			}
			result = existing
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка создания пользователя: %w", err)
		}

		if referrer != nil && onReferrer != nil {
			after := referrer.Clone()
			if err := onReferrer(after); err != nil {
				return err
			}
			if err := saveUser(ctx, tx, referrer, after); err != nil {
				return err
			}
		}

		created = true
		result, err = getUser(ctx, tx, u.UserID, false)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *Store) IncrementBalance(ctx context.Context, userID int64, field domain.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	col, err := balanceColumn(field)
	if err != nil {
		return decimal.Zero, err
	}

	// Условный UPDATE: баланс не уходит в минус, гонки решает сама БД
	query := fmt.Sprintf(`
		UPDATE zoo_users SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE user_id = $1 AND %[1]s + $2 >= 0
		RETURNING %[1]s
	`, col)

	var next decimal.Decimal
	err = s.db.QueryRow(ctx, query, userID, delta).Scan(&next)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := s.db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM zoo_users WHERE user_id = $1)`, userID,
		).Scan(&exists); err != nil {
			return decimal.Zero, fmt.Errorf("ошибка проверки пользователя: %w", err)
		}
		if !exists {
			return decimal.Zero, common.ErrUserNotFound
		}
		return decimal.Zero, common.ErrInsufficientBalance
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ошибка изменения баланса: %w", err)
	}
	return next, nil
}

func (s *Store) UpdateUser(ctx context.Context, userID int64, fn store.UserFunc) (*domain.User, error) {
	var result *domain.User
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		u, err := updateLocked(ctx, tx, userID, fn)
		result = u
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateUserPair(ctx context.Context, firstID, secondID int64, fn func(first, second *domain.User) error) (*domain.User, *domain.User, error) {
	if firstID == secondID {
		return nil, nil, fmt.Errorf("пара из одного игрока %d", firstID)
	}

	var first, second *domain.User
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		// Блокируем в порядке возрастания id, чтобы встречные бои не дали deadlock
		lowID, highID := firstID, secondID
		if lowID > highID {
			lowID, highID = highID, lowID
		}
		low, err := getUser(ctx, tx, lowID, true)
		if err != nil {
			return err
		}
		high, err := getUser(ctx, tx, highID, true)
		if err != nil {
			return err
		}

		b1, b2 := low, high
		if b1.UserID != firstID {
			b1, b2 = high, low
		}
		a1, a2 := b1.Clone(), b2.Clone()
		if err := fn(a1, a2); err != nil {
			return err
		}
		if err := saveUser(ctx, tx, b1, a1); err != nil {
			return err
		}
		if err := saveUser(ctx, tx, b2, a2); err != nil {
			return err
		}
		first, second = a1, a2
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func (s *Store) SetWithdrawalAddress(ctx context.Context, userID int64, network, address string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE zoo_users
		SET withdrawal_addresses = withdrawal_addresses || jsonb_build_object($2::text, $3::text),
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID, network, address)
	if err != nil {
		return fmt.Errorf("ошибка сохранения адреса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

func (s *Store) FindUsers(ctx context.Context, f store.UserFilter) ([]*domain.User, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.ReferrerIDs) > 0 {
		where = append(where, "u.referrer_id = ANY("+arg(f.ReferrerIDs)+")")
	}
	if f.HasAnimals {
		where = append(where, "EXISTS (SELECT 1 FROM zoo_animals a WHERE a.user_id = u.user_id)")
	}
	if f.MinDiamonds != nil {
		where = append(where, "u.diamonds >= "+arg(*f.MinDiamonds))
	}
	if f.ExcludeUserID != 0 {
		where = append(where, "u.user_id <> "+arg(f.ExcludeUserID))
	}

	query := `SELECT ` + userColumns + ` FROM zoo_users u`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Shuffle {
		query += ` ORDER BY random()`
	} else {
		query += ` ORDER BY u.user_id`
	}
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователей: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения пользователя: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if f.HasAnimals {
		for _, u := range users {
			if u.Animals, err = loadAnimals(ctx, s.db, u.UserID); err != nil {
				return nil, err
			}
		}
	}
	return users, nil
}

func (s *Store) Stats(ctx context.Context) (domain.SystemStats, error) {
	var st domain.SystemStats
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(diamonds), 0), COALESCE(SUM(money), 0), COALESCE(SUM(usdt), 0)
		FROM zoo_users
	`).Scan(&st.Users, &st.Diamonds, &st.Money, &st.USDT)
	if err != nil {
		return st, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM zoo_animals`).Scan(&st.Animals); err != nil {
		return st, fmt.Errorf("ошибка подсчёта животных: %w", err)
	}
	return st, nil
}
