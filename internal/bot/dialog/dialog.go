// Package dialog хранит состояния пошаговых диалогов (ввод суммы, адреса, пароля).
// Состояние живёт в памяти процесса и истекает через TTL.
package dialog

import (
	"sync"
	"time"

	"serotonyl.ru/zoo-bot/internal/common"
)

// DefaultTTL: сколько ждём ответа пользователя.
const DefaultTTL = 5 * time.Minute

// Возможные состояния
const (
	StateNone              = ""
	StateAwaitingPassword  = "awaiting_password"   // админ: пароль
	StateAwaitingRate      = "awaiting_rate"       // админ: новое значение курса, Data = имя курса
	StateDepositAmount     = "deposit_amount"      // игрок: сумма пополнения, Data = сеть
	StateDepositProof      = "deposit_proof"       // игрок: скриншот оплаты, Data = DepositDraft
	StateWithdrawalAddress = "withdrawal_address"  // игрок: адрес вывода, Data = сеть
	StateWithdrawalAmount  = "withdrawal_amount"   // игрок: сумма вывода, Data = сеть
)

// State: текущий шаг диалога.
type State struct {
	Name      string
	Data      interface{}
	ExpiresAt time.Time
}

// Store: состояния по user_id.
type Store struct {
	mu     sync.RWMutex
	states map[int64]*State
	ttl    time.Duration
	clock  common.Clock
}

// NewStore создаёт хранилище состояний.
func NewStore(ttl time.Duration, clock common.Clock) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{states: make(map[int64]*State), ttl: ttl, clock: clock}
}

// Get возвращает состояние или nil, если его нет или оно истекло.
func (s *Store) Get(userID int64) *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[userID]
	if !ok || s.clock.Now().After(st.ExpiresAt) {
		return nil
	}
	cp := *st
	return &cp
}

// Is проверяет, что пользователь сейчас на шаге name.
func (s *Store) Is(userID int64, name string) bool {
	st := s.Get(userID)
	return st != nil && st.Name == name
}

// Set переводит диалог на шаг name.
func (s *Store) Set(userID int64, name string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = &State{
		Name:      name,
		Data:      data,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}
}

// Clear сбрасывает диалог.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// Sweep удаляет истёкшие состояния и возвращает их число.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for id, st := range s.states {
		if now.After(st.ExpiresAt) {
			delete(s.states, id)
			n++
		}
	}
	return n
}
