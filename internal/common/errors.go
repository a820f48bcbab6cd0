// Package common: errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Обработчики различают их через errors.Is и отправляют пользователю понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// Базовая таксономия ошибок ядра
var (
	// ErrInsufficientBalance: конвертация или вывод ниже минимума / с нулевого баланса
	ErrInsufficientBalance = errors.New("недостаточно средств на балансе")
	// ErrInsufficientFunds: не хватает на покупку или ставку
	ErrInsufficientFunds = errors.New("недостаточно средств для оплаты")
	// ErrNotFound: неизвестный пользователь, транзакция или вид животного
	ErrNotFound = errors.New("не найдено")
	// ErrInvalidState: транзакция уже в конечном статусе
	ErrInvalidState = errors.New("недопустимое состояние")
)

// Уточнения ErrNotFound
var (
	ErrUserNotFound        = fmt.Errorf("пользователь %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("транзакция %w", ErrNotFound)
	ErrUnknownSpecies      = fmt.Errorf("вид животного %w", ErrNotFound)
	ErrUnknownNetwork      = fmt.Errorf("сеть %w", ErrNotFound)
)

// Ошибки игровых операций
var (
	// ErrInvalidAmount: некорректная сумма (ноль, отрицательная, ниже минимальной ставки)
	ErrInvalidAmount = errors.New("некорректная сумма")
	// ErrNothingToCollect: звёзды ещё не накопились (это не сбой, а сигнал)
	ErrNothingToCollect = errors.New("нечего собирать")
	// ErrNoAnimals: у пользователя нет ни одного животного
	ErrNoAnimals = errors.New("в зоопарке нет животных")
	// ErrNoOpponent: не нашлось соперника, способного покрыть ставку
	ErrNoOpponent = errors.New("соперник не найден")
	// ErrNoWithdrawalAddress: не сохранён адрес вывода для сети
	ErrNoWithdrawalAddress = errors.New("адрес вывода не задан")
	// ErrInvalidAddress: адрес не подходит под формат сети
	ErrInvalidAddress = errors.New("некорректный адрес")
)

// Ошибки админки
var (
	// ErrNotAdmin: пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword: неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts: слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired: сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
	// ErrInvalidRate: курс обмена должен быть положительным
	ErrInvalidRate = errors.New("курс должен быть больше нуля")
)

// expected: ошибки, которые означают отказ по правилам игры, а не сбой.
var expected = []error{
	ErrInsufficientBalance, ErrInsufficientFunds, ErrNotFound, ErrInvalidState,
	ErrInvalidAmount, ErrNothingToCollect, ErrNoAnimals, ErrNoOpponent,
	ErrNoWithdrawalAddress, ErrInvalidAddress, ErrNotAdmin, ErrWrongPassword, ErrTooManyAttempts,
	ErrSessionExpired, ErrInvalidRate,
}

// IsExpected сообщает, что ошибку нужно показать пользователю как есть.
func IsExpected(err error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
