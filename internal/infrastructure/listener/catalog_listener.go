// Package listener подписывается на NOTIFY PostgreSQL об изменениях каталога.
package listener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const waitTimeout = 30 * time.Second

// CatalogListener держит отдельное соединение с LISTEN и ставит перестроение
// индекса в очередь на каждое уведомление канала.
type CatalogListener struct {
	dbConnStr string
	channel   string
	trigger   usecase.IndexAdminUC
	logger    logger.Logger
	backoff   jitter.Backoff
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewCatalogListener(dbConnStr, channel string, trigger usecase.IndexAdminUC, logger logger.Logger) *CatalogListener {
	return &CatalogListener{
		dbConnStr: dbConnStr,
		channel:   channel,
		trigger:   trigger,
		logger:    logger,
		backoff:   jitter.Backoff{Base: 2 * time.Second, Max: time.Minute, Factor: jitter.DefaultJitter},
		stop:      make(chan struct{}),
	}
}

func (l *CatalogListener) Start(ctx context.Context) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.listen(ctx)
	}()
}

func (l *CatalogListener) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
}

func (l *CatalogListener) listen(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	var conn *pgx.Conn
	defer func() {
		if conn != nil {
			conn.Close(context.Background())
		}
	}()

	for attempt := 0; ; {
		if conn == nil {
			var err error
			conn, err = l.connect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				delay := l.backoff.Next(attempt)
				attempt++
				l.logger.Warnf("catalog listener: connect failed, retrying in %s: %v", delay.Round(time.Millisecond), err)
				if !sleep(ctx, delay) {
					return
				}
				continue
			}
			attempt = 0
		}

		waitCtx, waitCancel := context.WithTimeout(ctx, waitTimeout)
		notif, err := conn.WaitForNotification(waitCtx)
		waitCancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			l.logger.Warnf("catalog listener: connection lost: %v. Reconnecting...", err)
			conn.Close(context.Background())
			conn = nil
			continue
		}

		l.handle(notif)
	}
}

func (l *CatalogListener) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, l.dbConnStr)
	if err != nil {
		return nil, e.Wrap("failed to connect for LISTEN", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Close(ctx)
		return nil, e.Wrap("failed to LISTEN", err)
	}

	l.logger.Infof("Subscribed to '%s' channel", l.channel)
	return conn, nil
}

func (l *CatalogListener) handle(notif *pgconn.Notification) {
	if notif == nil || notif.Channel != l.channel {
		return
	}

	if l.trigger.TriggerRebuild() {
		l.logger.Infof("catalog changed (%s), index rebuild queued", notif.Payload)
		return
	}
	l.logger.Debugf("catalog changed (%s), rebuild already pending", notif.Payload)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
