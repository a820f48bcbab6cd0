// Package payments: заявки на пополнение и вывод USDT.
// Заявка создаётся игроком в статусе pending и закрывается только админом.
// Вывод резервирует сумму сразу, отказ возвращает резерв.
package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/metrics"
	"serotonyl.ru/zoo-bot/internal/store"
)

// PageSize: заявок на страницу в админке.
const PageSize = 10

// Networks: поддерживаемые сети USDT в порядке показа.
var Networks = []string{"trc20", "bep20", "erc20"}

// версия TRON-адреса в base58check
const tronAddressVersion = 0x41

var addressValidators = map[string]func(string) bool{
	"trc20": validTronAddress,
	"bep20": validEVMAddress,
	"erc20": validEVMAddress,
}

// KnownNetwork проверяет название сети.
func KnownNetwork(network string) bool {
	_, ok := addressValidators[network]
	return ok
}

// ValidAddress проверяет адрес для сети вместе с контрольной суммой.
func ValidAddress(network, address string) bool {
	valid, ok := addressValidators[network]
	return ok && valid(strings.TrimSpace(address))
}

func validTronAddress(address string) bool {
	payload, version, err := base58.CheckDecode(address)
	return err == nil && version == tronAddressVersion && len(payload) == 20
}

// адрес в смешанном регистре обязан совпасть с EIP-55
func validEVMAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") || !ethcommon.IsHexAddress(address) {
		return false
	}
	body := address[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return ethcommon.HexToAddress(address).Hex() == address
}

// ParseAmount разбирает сумму из текста ("12.5", "12,5", "1 000").
func ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(text), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := decimal.NewFromString(s)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%q: %w", text, common.ErrInvalidAmount)
	}
	return common.Round2(v), nil
}

// Service ведёт заявки.
type Service struct {
	txs           store.TransactionStore
	users         store.UserStore
	clock         common.Clock
	addresses     map[string]string
	minDeposit    decimal.Decimal
	minWithdrawal decimal.Decimal
}

// NewService создаёт сервис платежей. addresses: адреса платформы для пополнения.
func NewService(txs store.TransactionStore, users store.UserStore, clock common.Clock,
	addresses map[string]string, minDeposit, minWithdrawal decimal.Decimal) *Service {
	return &Service{
		txs:           txs,
		users:         users,
		clock:         clock,
		addresses:     addresses,
		minDeposit:    minDeposit,
		minWithdrawal: minWithdrawal,
	}
}

// MinDeposit: минимальное пополнение.
func (s *Service) MinDeposit() decimal.Decimal { return s.minDeposit }

// MinWithdrawal: минимальный вывод.
func (s *Service) MinWithdrawal() decimal.Decimal { return s.minWithdrawal }

// DepositNetworks: сети, для которых настроен адрес пополнения.
func (s *Service) DepositNetworks() []string {
	var out []string
	for _, n := range Networks {
		if s.addresses[n] != "" {
			out = append(out, n)
		}
	}
	return out
}

// DepositAddress: адрес платформы в сети network.
func (s *Service) DepositAddress(network string) (string, error) {
	addr, ok := s.addresses[network]
	if !ok || addr == "" {
		return "", fmt.Errorf("%w: %s", common.ErrUnknownNetwork, network)
	}
	return addr, nil
}

// CreateDeposit создаёт заявку на пополнение. Баланс не меняется до одобрения.
func (s *Service) CreateDeposit(ctx context.Context, userID int64, amount decimal.Decimal, network, proofFileID string) (*domain.Transaction, error) {
	if _, err := s.DepositAddress(network); err != nil {
		return nil, err
	}
	if amount.LessThan(s.minDeposit) {
		return nil, fmt.Errorf("пополнение %s меньше минимума %s: %w", amount, s.minDeposit, common.ErrInvalidAmount)
	}

	t := s.newTransaction(userID, domain.TxDeposit, amount, network)
	t.Address = s.addresses[network]
	t.ProofFileID = proofFileID

	err := s.txs.CreateTransaction(ctx, t, nil)
	metrics.Observe("deposit_create", err)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": userID, "tx_id": t.ID, "amount": amount.String(), "network": network}).
		Info("Создана заявка на пополнение")
	return t, nil
}

// SetWithdrawalAddress сохраняет адрес вывода игрока.
func (s *Service) SetWithdrawalAddress(ctx context.Context, userID int64, network, address string) error {
	if !KnownNetwork(network) {
		return fmt.Errorf("%w: %s", common.ErrUnknownNetwork, network)
	}
	address = strings.TrimSpace(address)
	if !ValidAddress(network, address) {
		return fmt.Errorf("адрес %q не подходит для %s: %w", address, network, common.ErrInvalidAddress)
	}
	if err := s.users.SetWithdrawalAddress(ctx, userID, network, address); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "network": network}).Info("Сохранён адрес вывода")
	return nil
}

// CreateWithdrawal резервирует сумму и создаёт заявку на вывод одной транзакцией.
func (s *Service) CreateWithdrawal(ctx context.Context, userID int64, amount decimal.Decimal, network string) (*domain.Transaction, error) {
	if !KnownNetwork(network) {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownNetwork, network)
	}
	if amount.LessThan(s.minWithdrawal) {
		return nil, fmt.Errorf("вывод %s меньше минимума %s: %w", amount, s.minWithdrawal, common.ErrInsufficientBalance)
	}

	t := s.newTransaction(userID, domain.TxWithdrawal, amount, network)
	err := s.txs.CreateTransaction(ctx, t, func(u *domain.User) error {
		addr := u.WithdrawalAddresses[network]
		if addr == "" {
			return common.ErrNoWithdrawalAddress
		}
		if u.USDT.LessThan(amount) {
			return fmt.Errorf("на балансе %s USDT: %w", u.USDT, common.ErrInsufficientBalance)
		}
		t.Address = addr
		u.USDT = u.USDT.Sub(amount)
		return nil
	})
	metrics.Observe("withdrawal_create", err)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": userID, "tx_id": t.ID, "amount": amount.String(), "network": network}).
		Info("Создана заявка на вывод, сумма зарезервирована")
	return t, nil
}

func (s *Service) newTransaction(userID int64, kind domain.TxKind, amount decimal.Decimal, network string) *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Network:   network,
		Status:    domain.TxPending,
		CreatedAt: s.clock.Now(),
	}
}

// Resolve закрывает заявку решением админа.
//
//	пополнение одобрено → usdt += amount, total_deposits += amount
//	вывод отклонён      → резерв возвращается, usdt += amount
//
// Повторное решение → common.ErrInvalidState.
func (s *Service) Resolve(ctx context.Context, txID string, status domain.TxStatus, adminID int64) (*domain.Transaction, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("статус %q: %w", status, common.ErrInvalidState)
	}
	now := s.clock.Now()

	t, err := s.txs.ResolveTransaction(ctx, txID, func(t *domain.Transaction, u *domain.User) error {
		if t.Status.Terminal() {
			return fmt.Errorf("заявка %s уже %s: %w", t.ID, t.Status, common.ErrInvalidState)
		}
		switch {
		case t.Kind == domain.TxDeposit && status == domain.TxCompleted:
			u.USDT = u.USDT.Add(t.Amount)
			u.TotalDeposits = u.TotalDeposits.Add(t.Amount)
		case t.Kind == domain.TxWithdrawal && status == domain.TxRejected:
			u.USDT = u.USDT.Add(t.Amount)
		}
		t.Status = status
		t.ResolvedAt = &now
		t.ResolvedBy = &adminID
		return nil
	})
	metrics.Observe("resolve_"+string(status), err)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"tx_id":    t.ID,
		"kind":     t.Kind,
		"status":   t.Status,
		"admin_id": adminID,
		"user_id":  t.UserID,
	}).Info("Заявка закрыта")
	return t, nil
}

// Get возвращает заявку.
func (s *Service) Get(ctx context.Context, txID string) (*domain.Transaction, error) {
	return s.txs.GetTransaction(ctx, txID)
}

// Page: страница заявок.
type Page struct {
	Items []*domain.Transaction
	Page  int // с 1
	Pages int
	Total int
}

// ListPending возвращает страницу заявок pending, сначала старые.
func (s *Service) ListPending(ctx context.Context, kind domain.TxKind, page int) (*Page, error) {
	filter := store.TransactionFilter{Kind: kind, Status: domain.TxPending}
	total, err := s.txs.CountTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}

	pages := (total + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	filter.Limit = PageSize
	filter.Offset = (page - 1) * PageSize
	items, err := s.txs.ListTransactions(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &Page{Items: items, Page: page, Pages: pages, Total: total}, nil
}

// CountPending: число заявок pending данного типа.
func (s *Service) CountPending(ctx context.Context, kind domain.TxKind) (int, error) {
	return s.txs.CountTransactions(ctx, store.TransactionFilter{Kind: kind, Status: domain.TxPending})
}

// UserHistory: последние заявки игрока, сначала новые.
func (s *Service) UserHistory(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	return s.txs.ListTransactions(ctx, store.TransactionFilter{UserID: &userID, Limit: limit, Newest: true})
}
