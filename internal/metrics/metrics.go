// Package metrics объявляет Prometheus-метрики бота.
// Отдаются через httpserver на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"serotonyl.ru/zoo-bot/internal/common"
)

var (
	// Operations: игровые операции по типу и результату (ok, rejected, error).
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zoobot",
		Name:      "operations_total",
		Help:      "Игровые операции по типу и результату.",
	}, []string{"operation", "result"})

	// Updates: полученные апдейты Telegram.
	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zoobot",
		Name:      "updates_total",
		Help:      "Апдейты Telegram по типу.",
	}, []string{"type"})

	// UpdateDuration: время обработки одного апдейта.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "zoobot",
		Name:      "update_duration_seconds",
		Help:      "Время обработки апдейта.",
		Buckets:   prometheus.DefBuckets,
	})

	// RateLimited: апдейты, отброшенные rate limiter'ом.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "zoobot",
		Name:      "rate_limited_total",
		Help:      "Апдейты, отброшенные ограничителем частоты.",
	})

	// Users: число зарегистрированных игроков (обновляется по cron).
	Users = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zoobot",
		Name:      "users",
		Help:      "Зарегистрированные игроки.",
	})

	// PendingTransactions: заявки в очереди на модерацию.
	PendingTransactions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zoobot",
		Name:      "pending_transactions",
		Help:      "Заявки в статусе pending.",
	}, []string{"kind"})
)

// Observe учитывает результат операции: nil → ok, ожидаемая ошибка → rejected.
func Observe(operation string, err error) {
	switch {
	case err == nil:
		Operations.WithLabelValues(operation, "ok").Inc()
	case common.IsExpected(err):
		Operations.WithLabelValues(operation, "rejected").Inc()
	default:
		Operations.WithLabelValues(operation, "error").Inc()
	}
}
