package common

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPluralizeAnimals(t *testing.T) {
	cases := map[int]string{
		1: "животное", 2: "животных", 5: "животных", 11: "животных", 21: "животное",
	}
	for n, want := range cases {
		require.Equal(t, want, PluralizeAnimals(n), "n=%d", n)
	}
}

func TestPluralizeTickets(t *testing.T) {
	require.Equal(t, "билет", PluralizeTickets(1))
	require.Equal(t, "билета", PluralizeTickets(3))
	require.Equal(t, "билетов", PluralizeTickets(12))
	require.Equal(t, "билета", PluralizeTickets(22))
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "0", FormatNumber(0))
	require.Equal(t, "999", FormatNumber(999))
	require.Equal(t, "2 350", FormatNumber(2350))
	require.Equal(t, "1 000 001", FormatNumber(1000001))
	require.Equal(t, "-12 000", FormatNumber(-12000))
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "12 500", FormatAmount(decimal.NewFromInt(12500)))
	require.Equal(t, "1 234.50", FormatAmount(decimal.RequireFromString("1234.5")))
	require.Equal(t, "0.13", FormatAmount(decimal.RequireFromString("0.125")))
	require.Equal(t, "-0.50", FormatAmount(decimal.RequireFromString("-0.5")))
	require.Equal(t, "+150", FormatSigned(decimal.NewFromInt(150)))
	require.Equal(t, "-20", FormatSigned(decimal.NewFromInt(-20)))
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "5 ч 07 мин", FormatDuration(5*time.Hour+7*time.Minute))
	require.Equal(t, "0 ч 00 мин", FormatDuration(-time.Minute))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	require.Equal(t, start, c.Now())
	c.Advance(90 * time.Minute)
	require.Equal(t, start.Add(90*time.Minute), c.Now())
}

func TestNotFoundFamily(t *testing.T) {
	require.True(t, errors.Is(ErrUserNotFound, ErrNotFound))
	require.True(t, errors.Is(ErrTransactionNotFound, ErrNotFound))
	require.True(t, errors.Is(ErrUnknownSpecies, ErrNotFound))
	require.False(t, errors.Is(ErrInvalidState, ErrNotFound))
}

func TestIsExpected(t *testing.T) {
	require.True(t, IsExpected(ErrInsufficientFunds))
	require.True(t, IsExpected(ErrUserNotFound))
	require.True(t, IsExpected(fmt.Errorf("покупка: %w", ErrInsufficientFunds)))
	require.False(t, IsExpected(errors.New("connection refused")))
	require.False(t, IsExpected(nil))
}
