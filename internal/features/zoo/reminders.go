package zoo

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/store"
)

// Reminder напоминает собрать звёзды тем, у кого хранилище упёрлось в 24 часа.
// Одно напоминание на каждый период накопления: после сбора счётчик начинается заново.
type Reminder struct {
	users store.UserStore
	clock common.Clock

	mu   sync.Mutex
	sent map[int64]int64 // user_id → LastCollection (unix), за который уже напомнили
}

// NewReminder создаёт напоминалку.
func NewReminder(users store.UserStore, clock common.Clock) *Reminder {
	return &Reminder{users: users, clock: clock, sent: make(map[int64]int64)}
}

// SendReminders рассылает напоминания и возвращает, скольким игрокам написали.
// Запускается кроном каждый час.
func (r *Reminder) SendReminders(ctx context.Context, send func(userID int64, text string)) (int, error) {
	owners, err := r.users.FindUsers(ctx, store.UserFilter{HasAnimals: true})
	if err != nil {
		return 0, fmt.Errorf("ошибка выборки владельцев: %w", err)
	}

	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, u := range owners {
		if UntilCap(u.LastCollection, now) > 0 {
			continue
		}
		stamp := u.LastCollection.Unix()
		if r.sent[u.UserID] == stamp {
			continue
		}

		pending := ComputePendingAccrual(u.Animals, u.LastCollection, now)
		send(u.UserID, fmt.Sprintf("⚠️ Хранилище зоопарка заполнено: ⭐ %s ждут сбора.\n"+
			"Пока не соберёшь, новые звёзды не копятся!", common.FormatAmount(pending)))
		r.sent[u.UserID] = stamp
		count++
	}

	if count > 0 {
		log.WithField("count", count).Info("Напоминания о сборе отправлены")
	}
	return count, nil
}
