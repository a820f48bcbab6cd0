// Package memory: in-memory реализация интерфейсов store.
// Используется как тестовый дубль: один мьютекс на всё хранилище
// даёт ту же атомарность, что и блокировки строк в PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

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

// Store хранит все сущности в памяти процесса.
type Store struct {
	mu           sync.Mutex
	users        map[int64]*domain.User
	transactions map[string]*domain.Transaction
	tickets      map[string]*domain.LotteryTicket
	sessions     []*domain.AdminSession
	attempts     []loginAttempt
	nextSession  int64
}

type loginAttempt struct {
	userID  int64
	success bool
	at      time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		users:        make(map[int64]*domain.User),
		transactions: make(map[string]*domain.Transaction),
		tickets:      make(map[string]*domain.LotteryTicket),
	}
}

// --- Игроки ---

func (s *Store) GetUser(_ context.Context, userID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User, onReferrer store.UserFunc) (*domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.UserID]; ok {
		return existing.Clone(), false, nil
	}

	created := u.Clone()
	var referrer *domain.User
	if created.ReferrerID != nil {
		ref, ok := s.users[*created.ReferrerID]
		if !ok || ref.UserID == created.UserID {
			created.ReferrerID = nil
		} else {
			referrer = ref.Clone()
		}
	}

	if referrer != nil && onReferrer != nil {
		before := s.users[referrer.UserID]
		if err := onReferrer(referrer); err != nil {
			return nil, false, err
		}
		if err := store.ValidateWrite(before, referrer); err != nil {
			return nil, false, err
		}
		s.users[referrer.UserID] = referrer
	}

	s.users[created.UserID] = created
	return created.Clone(), true, nil
}

func (s *Store) IncrementBalance(_ context.Context, userID int64, field domain.Currency, delta decimal.Decimal) (decimal.Decimal, error) {
	if !field.Valid() {
		return decimal.Zero, fmt.Errorf("неизвестная валюта %q", field)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return decimal.Zero, common.ErrUserNotFound
	}
	next := u.Balance(field).Add(delta)
	if next.IsNegative() {
		return decimal.Zero, common.ErrInsufficientBalance
	}
	u.SetBalance(field, next)
	return next, nil
}

func (s *Store) UpdateUser(_ context.Context, userID int64, fn store.UserFunc) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.users[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	after := before.Clone()
	if err := fn(after); err != nil {
		return nil, err
	}
	if err := store.ValidateWrite(before, after); err != nil {
		return nil, err
	}
	s.users[userID] = after
	return after.Clone(), nil
}

func (s *Store) UpdateUserPair(_ context.Context, firstID, secondID int64, fn func(first, second *domain.User) error) (*domain.User, *domain.User, error) {
	if firstID == secondID {
		return nil, nil, fmt.Errorf("пара из одного игрока %d", firstID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b1, ok := s.users[firstID]
	if !ok {
		return nil, nil, common.ErrUserNotFound
	}
	b2, ok := s.users[secondID]
	if !ok {
		return nil, nil, common.ErrUserNotFound
	}

	a1, a2 := b1.Clone(), b2.Clone()
	if err := fn(a1, a2); err != nil {
		return nil, nil, err
	}
	if err := store.ValidateWrite(b1, a1); err != nil {
		return nil, nil, err
	}
	if err := store.ValidateWrite(b2, a2); err != nil {
		return nil, nil, err
	}
	s.users[firstID] = a1
	s.users[secondID] = a2
	return a1.Clone(), a2.Clone(), nil
}

func (s *Store) SetWithdrawalAddress(_ context.Context, userID int64, network, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	if u.WithdrawalAddresses == nil {
		u.WithdrawalAddresses = make(map[string]string)
	}
	u.WithdrawalAddresses[network] = address
	return nil
}

func (s *Store) FindUsers(_ context.Context, f store.UserFilter) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make(map[int64]struct{}, len(f.ReferrerIDs))
	for _, id := range f.ReferrerIDs {
		refs[id] = struct{}{}
	}

	var out []*domain.User
	for _, u := range s.users {
		if len(f.ReferrerIDs) > 0 {
			if u.ReferrerID == nil {
				continue
			}
			if _, ok := refs[*u.ReferrerID]; !ok {
				continue
			}
		}
		if f.HasAnimals && len(u.Animals) == 0 {
			continue
		}
		if f.MinDiamonds != nil && u.Diamonds.LessThan(*f.MinDiamonds) {
			continue
		}
		if f.ExcludeUserID != 0 && u.UserID == f.ExcludeUserID {
			continue
		}
		out = append(out, u.Clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if f.Shuffle {
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) Stats(_ context.Context) (domain.SystemStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.SystemStats{Diamonds: decimal.Zero, Money: decimal.Zero, USDT: decimal.Zero}
	for _, u := range s.users {
		st.Users++
		st.Animals += len(u.Animals)
		st.Diamonds = st.Diamonds.Add(u.Diamonds)
		st.Money = st.Money.Add(u.Money)
		st.USDT = st.USDT.Add(u.USDT)
	}
	return st, nil
}

// --- Заявки ---

func (s *Store) CreateTransaction(_ context.Context, t *domain.Transaction, reserve store.UserFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.users[t.UserID]
	if !ok {
		return common.ErrUserNotFound
	}
	if _, dup := s.transactions[t.ID]; dup {
		return fmt.Errorf("транзакция %s уже существует", t.ID)
	}

	if reserve != nil {
		after := before.Clone()
		if err := reserve(after); err != nil {
			return err
		}
		if err := store.ValidateWrite(before, after); err != nil {
			return err
		}
		s.users[t.UserID] = after
	}

	cp := *t
	s.transactions[t.ID] = &cp
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, common.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) ResolveTransaction(_ context.Context, id string, fn store.TxFunc) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, common.ErrTransactionNotFound
	}
	before, ok := s.users[t.UserID]
	if !ok {
		return nil, common.ErrUserNotFound
	}

	tx := *t
	after := before.Clone()
	if err := fn(&tx, after); err != nil {
		return nil, err
	}
	if err := store.ValidateWrite(before, after); err != nil {
		return nil, err
	}

	s.transactions[id] = &tx
	s.users[t.UserID] = after
	cp := tx
	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, f store.TransactionFilter) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.filterTransactions(f)
	sort.Slice(out, func(i, j int) bool {
		if f.Newest {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountTransactions(_ context.Context, f store.TransactionFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filterTransactions(f)), nil
}

func (s *Store) filterTransactions(f store.TransactionFilter) []*domain.Transaction {
	var out []*domain.Transaction
	for _, t := range s.transactions {
		if f.UserID != nil && t.UserID != *f.UserID {
			continue
		}
		if f.Kind != "" && t.Kind != f.Kind {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// --- Лотерея ---

func (s *Store) CreateTicket(_ context.Context, t *domain.LotteryTicket, charge store.UserFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.users[t.UserID]
	if !ok {
		return common.ErrUserNotFound
	}
	if charge != nil {
		after := before.Clone()
		if err := charge(after); err != nil {
			return err
		}
		if err := store.ValidateWrite(before, after); err != nil {
			return err
		}
		s.users[t.UserID] = after
	}

	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *Store) ListDueTickets(_ context.Context, until time.Time) ([]*domain.LotteryTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.LotteryTicket
	for _, t := range s.tickets {
		if !t.DrawDate.After(until) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SettleDraw(_ context.Context, ticketIDs []string, winnerID int64, prize decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ticketIDs {
		if _, ok := s.tickets[id]; !ok {
			return fmt.Errorf("билет %s уже разыгран: %w", id, common.ErrInvalidState)
		}
	}
	winner, ok := s.users[winnerID]
	if !ok {
		return common.ErrUserNotFound
	}
	winner.Money = winner.Money.Add(prize)
	for _, id := range ticketIDs {
		delete(s.tickets, id)
	}
	return nil
}

func (s *Store) CountTickets(_ context.Context, userID int64, drawDate time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tickets {
		if t.UserID == userID && t.DrawDate.Equal(drawDate) {
			n++
		}
	}
	return n, nil
}

// --- Админка ---

func (s *Store) CreateSession(_ context.Context, sess *domain.AdminSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSession++
	cp := *sess
	cp.ID = s.nextSession
	cp.IsActive = true
	s.sessions = append(s.sessions, &cp)
	return nil
}

func (s *Store) GetActiveSession(_ context.Context, userID int64, now time.Time) (*domain.AdminSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.sessions) - 1; i >= 0; i-- {
		sess := s.sessions[i]
		if sess.UserID == userID && sess.IsActive && sess.ExpiresAt.After(now) {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, common.ErrSessionExpired
}

func (s *Store) UpdateActivity(_ context.Context, userID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.IsActive {
			sess.LastActivity = now
		}
	}
	return nil
}

func (s *Store) DeactivateSession(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sess.IsActive = false
		}
	}
	return nil
}

func (s *Store) LogAttempt(_ context.Context, userID int64, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, loginAttempt{userID: userID, success: success, at: at})
	return nil
}

func (s *Store) CountFailedAttempts(_ context.Context, userID int64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, a := range s.attempts {
		if a.userID == userID && !a.success && !a.at.Before(since) {
			n++
		}
	}
	return n, nil
}
