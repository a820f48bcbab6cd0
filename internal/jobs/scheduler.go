// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: розыгрыш лотереи в полночь,
// ежечасные напоминания о полном хранилище и обновление метрик.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/common"
	"serotonyl.ru/zoo-bot/internal/domain"
	"serotonyl.ru/zoo-bot/internal/features/lottery"
	"serotonyl.ru/zoo-bot/internal/metrics"
)

// Drawer проводит розыгрыши, срок которых наступил.
type Drawer interface {
	Draw(ctx context.Context, now time.Time) ([]lottery.Result, error)
}

// WinnerNotifier поздравляет победителей.
type WinnerNotifier interface {
	NotifyWinners(results []lottery.Result)
}

// StatsSource отдаёт агрегаты для gauge-метрик.
type StatsSource interface {
	SystemStats(ctx context.Context) (domain.SystemStats, error)
}

// Reminder рассылает напоминания о сборе звёзд.
type Reminder interface {
	SendReminders(ctx context.Context, send func(userID int64, text string)) (int, error)
}

// Jobs: зависимости задач. Пустой Drawer или Reminder выключает задачу.
type Jobs struct {
	Drawer   Drawer
	Winners  WinnerNotifier
	Stats    StatsSource
	Reminder Reminder
	Send     func(userID int64, text string)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron  *cron.Cron
	loc   *time.Location
	clock common.Clock
	jobs  Jobs

	// один розыгрыш за раз: догоняющий запуск может совпасть с полуночным
	drawMu sync.Mutex
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(loc *time.Location, clock common.Clock, jobs Jobs) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithLocation(loc)),
		loc:   loc,
		clock: clock,
		jobs:  jobs,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.jobs.Drawer != nil {
		// Ежедневный розыгрыш в 00:00 по местному времени
		if _, err := s.cron.AddFunc("0 0 * * *", func() {
			log.Info("[CRON] Розыгрыш лотереи")
			s.RunDraw(ctx)
		}); err != nil {
			return err
		}
		// розыгрыши, пропущенные пока бот лежал
		go s.RunDraw(ctx)
	}

	if s.jobs.Reminder != nil && s.jobs.Send != nil {
		// Напоминания каждый час
		if _, err := s.cron.AddFunc("0 * * * *", func() {
			log.Debug("[CRON] Проверка напоминаний")
			s.RunReminders(ctx)
		}); err != nil {
			return err
		}
	}

	if s.jobs.Stats != nil {
		if _, err := s.cron.AddFunc("@every 1m", func() { s.RefreshMetrics(ctx) }); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.WithField("tz", s.loc.String()).Info("Планировщик задач запущен")
	return nil
}

// RunDraw разыгрывает все наступившие тиражи и уведомляет победителей.
func (s *Scheduler) RunDraw(ctx context.Context) {
	if !s.drawMu.TryLock() {
		log.Warn("[CRON] Розыгрыш уже идёт, пропускаем запуск")
		return
	}
	defer s.drawMu.Unlock()

	results, err := s.jobs.Drawer.Draw(ctx, s.clock.Now())
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка розыгрыша")
	}
	if len(results) > 0 && s.jobs.Winners != nil {
		s.jobs.Winners.NotifyWinners(results)
	}
}

// RunReminders напоминает игрокам с заполненным хранилищем.
func (s *Scheduler) RunReminders(ctx context.Context) {
	if _, err := s.jobs.Reminder.SendReminders(ctx, s.jobs.Send); err != nil {
		log.WithError(err).Error("[CRON] Ошибка напоминаний")
	}
}

// RefreshMetrics обновляет gauge игроков и очереди заявок.
func (s *Scheduler) RefreshMetrics(ctx context.Context) {
	st, err := s.jobs.Stats.SystemStats(ctx)
	if err != nil {
		log.WithError(err).Warn("[CRON] Не удалось обновить метрики")
		return
	}
	metrics.Users.Set(float64(st.Users))
	metrics.PendingTransactions.WithLabelValues(string(domain.TxDeposit)).Set(float64(st.PendingDeposits))
	metrics.PendingTransactions.WithLabelValues(string(domain.TxWithdrawal)).Set(float64(st.PendingWithdrawals))
}

// Stop останавливает планировщик и ждёт текущие задачи, но не дольше ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Info("Планировщик задач остановлен")
	case <-ctx.Done():
		log.Warn("Планировщик задач не успел остановиться")
	}
}
