package store

import (
	"fmt"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
)

// ValidateWrite проверяет запись игрока перед сохранением:
// балансы не отрицательны, животные только добавляются и не меняются.
func ValidateWrite(before, after *domain.User) error {
	if after.UserID != before.UserID {
		return fmt.Errorf("нельзя менять user_id")
	}
	if !after.NonNegative() {
		return common.ErrInsufficientBalance
	}
	if len(after.Animals) < len(before.Animals) {
		return fmt.Errorf("животных нельзя удалять")
	}
	for i := range before.Animals {
		if after.Animals[i].ID != before.Animals[i].ID ||
			!after.Animals[i].StarsPerHour.Equal(before.Animals[i].StarsPerHour) {
			return fmt.Errorf("животные неизменяемы")
		}
	}
	return nil
}
