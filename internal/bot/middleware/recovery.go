package middleware

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/zoo-bot/internal/metrics"
)

// RecoverFromPanic гасит панику обработчика апдейта. Вызывать через defer.
func RecoverFromPanic(updateID int) {
	if r := recover(); r != nil {
		metrics.Operations.WithLabelValues("update", "panic").Inc()
		log.WithFields(log.Fields{
			"component": "panic_recovery",
			"update_id": updateID,
			"panic":     fmt.Sprintf("%v", r),
			"stack":     string(debug.Stack()),
		}).Error("ПАНИКА в обработчике — восстановлено")
	}
}
