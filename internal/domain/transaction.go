package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxKind: тип заявки.
type TxKind string

const (
	TxDeposit    TxKind = "deposit"
	TxWithdrawal TxKind = "withdrawal"
)

// TxStatus: статус заявки: pending → completed | rejected.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxRejected  TxStatus = "rejected"
)

// Terminal: конечный ли статус.
func (s TxStatus) Terminal() bool {
	return s == TxCompleted || s == TxRejected
}

// Transaction: заявка на пополнение или вывод USDT.
// Создаётся пользователем, меняется только решением админа.
type Transaction struct {
	ID          string          `db:"id"`
	UserID      int64           `db:"user_id"`
	Kind        TxKind          `db:"kind"`
	Amount      decimal.Decimal `db:"amount"`
	Network     string          `db:"network"`
	Address     string          `db:"address"`
	ProofFileID string          `db:"proof_file_id"`
	Status      TxStatus        `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	ResolvedAt  *time.Time      `db:"resolved_at"`
	ResolvedBy  *int64          `db:"resolved_by"`
}

// LotteryTicket: билет на ближайший розыгрыш.
type LotteryTicket struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	DrawDate  time.Time `db:"draw_date"`
	CreatedAt time.Time `db:"created_at"`
}

// AdminSession: активная сессия администратора.
type AdminSession struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// SystemStats: агрегаты для админ-панели.
type SystemStats struct {
	Users              int
	Animals            int
	Diamonds           decimal.Decimal
	Money              decimal.Decimal
	USDT               decimal.Decimal
	PendingDeposits    int
	PendingWithdrawals int
}
