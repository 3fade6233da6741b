package kafka

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/jitter"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// CatalogConsumer читает события изменения каталога и эмбеддингов и ставит
// перестроение индекса в очередь. Содержимое сообщений не разбирается.
type CatalogConsumer struct {
	reader  *kafka.Reader
	trigger usecase.IndexAdminUC
	logger  logger.Logger
	backoff jitter.Backoff
	wg      sync.WaitGroup
}

func NewCatalogConsumer(cfg *cfg.KafkaCfg, trigger usecase.IndexAdminUC, logger logger.Logger) *CatalogConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.CatalogTopic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  time.Second,
	})

	return &CatalogConsumer{
		reader:  reader,
		trigger: trigger,
		logger:  logger,
		backoff: jitter.Backoff{Base: time.Second, Max: 30 * time.Second, Factor: jitter.DefaultJitter},
	}
}

func (c *CatalogConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop закрывает reader и ждёт завершения цикла чтения.
func (c *CatalogConsumer) Stop() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}

func (c *CatalogConsumer) run(ctx context.Context) {
	c.logger.Infof("catalog consumer started, topic %s", c.reader.Config().Topic)

	failures := 0
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Infof("catalog consumer stopped")
				return
			}

			delay := c.backoff.Next(failures)
			failures++
			if isRetryableError(err) {
				c.logger.Warnf("catalog consumer: temporary Kafka failure, retrying in %s: %v", delay.Round(time.Millisecond), err)
			} else {
				c.logger.Errorf(err, "catalog consumer: read failed, retrying in %s", delay.Round(time.Millisecond))
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}

		failures = 0
		c.handle(msg)
	}
}

func (c *CatalogConsumer) handle(msg kafka.Message) {
	if c.trigger.TriggerRebuild() {
		c.logger.Infof("catalog change at %s/%d offset %d, index rebuild queued", msg.Topic, msg.Partition, msg.Offset)
		return
	}
	c.logger.Debugf("catalog change at %s/%d offset %d coalesced with pending rebuild", msg.Topic, msg.Partition, msg.Offset)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
		"leader not available",
		"rebalance in progress",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
