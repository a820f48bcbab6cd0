// Package referral: реферальная программа: бонус за приглашение,
// реферальные ссылки и статистика по трём уровням.
package referral

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/store"
)

// codePrefix: payload в /start: "ref123".
const codePrefix = "ref"

// Code возвращает реферальный код игрока.
func Code(userID int64) string {
	return codePrefix + strconv.FormatInt(userID, 10)
}

// ParseCode разбирает payload из /start. ok=false для чужих и битых кодов.
func ParseCode(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, codePrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, codePrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Link: ссылка-приглашение: https://t.me/<bot>?start=ref<id>.
func Link(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), Code(userID))
}

// BonusHook возвращает изменение записи пригласившего: +bonus денег,
// +bonus к заработку с рефералов и +1 приглашённый.
// Вызывается хранилищем ровно один раз, при создании нового игрока.
func BonusHook(bonus decimal.Decimal) store.UserFunc {
	return func(referrer *domain.User) error {
		referrer.Money = referrer.Money.Add(bonus)
		referrer.ReferralEarnings = referrer.ReferralEarnings.Add(bonus)
		referrer.TotalReferrals++
		return nil
	}
}
