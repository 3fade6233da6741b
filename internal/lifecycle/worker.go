package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
)

// TriggerRebuild ставит перестроение в очередь. Повторные запросы до его начала схлопываются.
// Возвращает false, если перестроение уже ожидает запуска.
func (m *Manager) TriggerRebuild() bool {
	select {
	case m.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run обрабатывает запросы на перестроение до отмены ctx.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Infof("index rebuild worker started (debounce %s, retries %d)", m.cfg.Debounce, m.cfg.MaxRetries)
	defer m.logger.Infof("index rebuild worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.trigger:
		}

		// события каталога приходят пачками, ждём затишья
		if !sleepCtx(ctx, m.cfg.Debounce) {
			return
		}
		select {
		case <-m.trigger:
		default:
		}

		m.rebuildWithRetry(ctx)
	}
}

func (m *Manager) rebuildWithRetry(ctx context.Context) {
	backoff := jitter.Backoff{Base: m.cfg.BackoffBase, Max: m.cfg.BackoffMax, Factor: jitter.DefaultJitter}

	for attempt := 0; ; attempt++ {
		err := m.Rebuild(ctx)
		switch {
		case err == nil:
			return
		case errors.Is(err, e.ErrRebuildInProgress):
			m.logger.Debugf("rebuild skipped: another build is running")
			return
		case ctx.Err() != nil:
			return
		case attempt >= m.cfg.MaxRetries:
			m.logger.Errorf(err, "index rebuild gave up after %d attempts", attempt+1)
			return
		}

		delay := backoff.Next(attempt)
		m.logger.Warnf("index rebuild attempt %d failed, retrying in %s", attempt+1, delay.Round(time.Millisecond))
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
