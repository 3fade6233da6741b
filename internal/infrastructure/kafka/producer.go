package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/lifecycle"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventGenerationPublished — тип события о новом поколении индекса
const EventGenerationPublished = "generation.published"

// Producer публикует события о поколениях индекса.
type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    1,
		WriteTimeout: 10 * time.Second,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}
}

// PublishGeneration отправляет событие generation.published. Ключ сообщения равен идентификатору поколения.
func (p *Producer) PublishGeneration(ctx context.Context, info lifecycle.GenerationInfo) error {
	value, err := GenerationPayload(info, time.Now())
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(info.ID),
		Value: value,
	}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	p.logger.Debugf("published %s for generation %s", EventGenerationPublished, info.ID)
	return nil
}

// EnsureTopic создаёт топик, если его ещё нет.
func (p *Producer) EnsureTopic(topic string, timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		err := conn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// GenerationPayload кодирует сводку поколения в google.protobuf.Struct.
func GenerationPayload(info lifecycle.GenerationInfo, now time.Time) ([]byte, error) {
	event, err := structpb.NewStruct(map[string]any{
		"event_id":        uuid.NewString(),
		"event_type":      EventGenerationPublished,
		"event_timestamp": now.UTC().Format(time.RFC3339Nano),
		"generation_id":   info.ID,
		"strategy":        string(info.Strategy),
		"vectors":         info.Vectors,
		"dim":             info.Dim,
		"catalog_size":    info.CatalogSize,
		"fingerprint":     strconv.FormatUint(info.Fingerprint, 16),
		"built_at":        info.BuiltAt.UTC().Format(time.RFC3339Nano),
		"source":          string(info.Source),
	})
	if err != nil {
		return nil, err
	}

	return proto.Marshal(event)
}
