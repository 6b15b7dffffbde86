package usecase

import (
	"context"
	"log"
	"time"
)

// sweepBatchSize максимальное число просроченных саг за один проход обходчика
const sweepBatchSize = 100

// ExpireDeadlines проваливает саги, не дождавшиеся ответа участника до
// дедлайна. Каждый экземпляр проходит обычный цикл применения события, так
// что гонка с одновременно пришедшим ответом разрешается проверкой версии.
func (o *Orchestrator) ExpireDeadlines(ctx context.Context, now time.Time) error {
	expired, err := o.repo.FindExpired(ctx, now, sweepBatchSize)
	if err != nil {
		return err
	}

	for i := range expired {
		correlationID := expired[i].CorrelationID
		if err := o.applyEvent(ctx, correlationID, typeDeadlineExceeded, nil, nil); err != nil {
			o.logger.Printf("[ERROR] Ошибка обработки дедлайна саги correlation_id=%s: %v", correlationID, err)
		}
	}
	return nil
}

// TimeoutWatcher периодически запускает обход просроченных саг
type TimeoutWatcher struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       *log.Logger
}

// NewTimeoutWatcher создает обходчик дедлайнов
func NewTimeoutWatcher(orchestrator *Orchestrator, interval time.Duration, logger *log.Logger) *TimeoutWatcher {
	return &TimeoutWatcher{
		orchestrator: orchestrator,
		interval:     interval,
		logger:       logger,
	}
}

// Run крутит обход до отмены контекста
func (w *TimeoutWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Printf("[Saga] Обходчик дедлайнов запущен, интервал %s", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("[Saga] Обходчик дедлайнов остановлен")
			return
		case now := <-ticker.C:
			if err := w.orchestrator.ExpireDeadlines(ctx, now); err != nil {
				w.logger.Printf("[ERROR] Ошибка обхода дедлайнов: %v", err)
			}
		}
	}
}
