// Package store объявляет интерфейсы хранилищ, с которыми работают сервисы.
// Реализации: db/postgres (боевая) и db/memory (для тестов).
//
// Каждая мутация баланса: одна атомарная операция хранилища: либо нативный
// инкремент с условием, либо read-modify-write над заблокированной записью.
// Хранилище само следит, чтобы балансы не уходили в минус
// (иначе common.ErrInsufficientBalance) и чтобы животные только добавлялись.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/domain"
)

// UserFunc изменяет заблокированную запись игрока. Ошибка отменяет изменения.
type UserFunc func(u *domain.User) error

// UserFilter: условия выборки игроков.
type UserFilter struct {
	ReferrerIDs   []int64          // только приглашённые этими игроками
	HasAnimals    bool             // только владельцы животных
	MinDiamonds   *decimal.Decimal // баланс алмазов не ниже
	ExcludeUserID int64            // кроме этого игрока
	Shuffle       bool             // случайный порядок (иначе по user_id)
	Limit         int
}

// UserStore: хранилище игроков.
type UserStore interface {
	// GetUser возвращает игрока с животными или common.ErrUserNotFound.
	GetUser(ctx context.Context, userID int64) (*domain.User, error)

	// CreateUser создаёт игрока, если его ещё нет. created=false: запись уже была,
	// возвращается существующая. onReferrer вызывается в той же транзакции и только
	// для новой записи с существующим пригласившим; несуществующий пригласивший
	// отбрасывается.
	CreateUser(ctx context.Context, u *domain.User, onReferrer UserFunc) (user *domain.User, created bool, err error)

	// IncrementBalance атомарно прибавляет delta к полю и возвращает новое значение.
	// Результат < 0 → common.ErrInsufficientBalance, запись не меняется.
	IncrementBalance(ctx context.Context, userID int64, field domain.Currency, delta decimal.Decimal) (decimal.Decimal, error)

	// UpdateUser выполняет fn над заблокированной записью и сохраняет результат.
	UpdateUser(ctx context.Context, userID int64, fn UserFunc) (*domain.User, error)

	// UpdateUserPair блокирует две записи (в порядке возрастания id) и сохраняет обе.
	UpdateUserPair(ctx context.Context, firstID, secondID int64, fn func(first, second *domain.User) error) (*domain.User, *domain.User, error)

	// SetWithdrawalAddress сохраняет адрес вывода для сети.
	SetWithdrawalAddress(ctx context.Context, userID int64, network, address string) error

	// FindUsers возвращает игроков по фильтру (без животных, кроме HasAnimals).
	FindUsers(ctx context.Context, filter UserFilter) ([]*domain.User, error)

	// Stats считает агрегаты по всем игрокам (без pending-счётчиков).
	Stats(ctx context.Context) (domain.SystemStats, error)
}

// TxFunc меняет заявку и её владельца внутри одной транзакции хранилища.
type TxFunc func(t *domain.Transaction, u *domain.User) error

// TransactionFilter: условия выборки заявок.
type TransactionFilter struct {
	UserID *int64
	Kind   domain.TxKind
	Status domain.TxStatus
	Limit  int
	Offset int
	Newest bool // сначала новые (по умолчанию сначала старые)
}

// TransactionStore: хранилище заявок на ввод/вывод.
type TransactionStore interface {
	// CreateTransaction сохраняет заявку; reserve (если не nil) меняет кошелёк
	// владельца в той же транзакции.
	CreateTransaction(ctx context.Context, t *domain.Transaction, reserve UserFunc) error
	// GetTransaction возвращает заявку или common.ErrTransactionNotFound.
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ResolveTransaction блокирует заявку и владельца, применяет fn, сохраняет обе записи.
	ResolveTransaction(ctx context.Context, id string, fn TxFunc) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*domain.Transaction, error)
	CountTransactions(ctx context.Context, filter TransactionFilter) (int, error)
}

// LotteryStore: хранилище лотерейных билетов.
type LotteryStore interface {
	// CreateTicket сохраняет билет и в той же транзакции списывает оплату через charge.
	CreateTicket(ctx context.Context, t *domain.LotteryTicket, charge UserFunc) error
	// ListDueTickets: билеты розыгрышей с датой <= until.
	ListDueTickets(ctx context.Context, until time.Time) ([]*domain.LotteryTicket, error)
	// SettleDraw одной транзакцией удаляет ровно ticketIDs и начисляет prize денег
	// winnerID. Если хоть одного билета уже нет (розыгрыш провёл другой процесс),
	// ничего не меняется и возвращается common.ErrInvalidState.
	SettleDraw(ctx context.Context, ticketIDs []string, winnerID int64, prize decimal.Decimal) error
	// CountTickets: билеты игрока на розыгрыш drawDate.
	CountTickets(ctx context.Context, userID int64, drawDate time.Time) (int, error)
}

// AdminStore: сессии и попытки входа в админку.
type AdminStore interface {
	CreateSession(ctx context.Context, s *domain.AdminSession) error
	GetActiveSession(ctx context.Context, userID int64, now time.Time) (*domain.AdminSession, error)
	UpdateActivity(ctx context.Context, userID int64, now time.Time) error
	DeactivateSession(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool, at time.Time) error
	CountFailedAttempts(ctx context.Context, userID int64, since time.Time) (int, error)
}
