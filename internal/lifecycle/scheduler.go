package lifecycle

import (
	"context"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler периодически ставит перестроение индекса в очередь по cron-расписанию.
type Scheduler struct {
	cron   *cron.Cron
	logger logger.Logger
}

// NewScheduler разбирает расписание в стандартном 5-польном формате или дескриптор вида @every 1h.
func NewScheduler(spec string, manager *Manager, logger logger.Logger) (*Scheduler, error) {
	const op = "lifecycle.NewScheduler"

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if manager.TriggerRebuild() {
			logger.Infof("scheduled index rebuild queued")
		}
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Infof("index rebuild schedule started")
}

// Stop останавливает расписание и ждёт завершения запущенного задания.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
