package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/tusharsach16/LawProject-sub001/metrics"
)

const (
	kafkaMaxRetries     = 3
	kafkaInitialBackoff = 100 * time.Millisecond
	kafkaMaxBackoff     = 5 * time.Second
)

// kafkaRecord wraps an envelope with its room so all rooms can share one
// fleet topic. The room id doubles as the partition key, preserving FIFO
// per (publisher, room).
type kafkaRecord struct {
	RoomID   string   `json:"roomId"`
	Envelope Envelope `json:"envelope"`
}

// KafkaBus implements Bus over a single Kafka topic. Each relay instance
// consumes with its own consumer group id so every instance observes every
// message — pub/sub fan-out semantics, not work sharing.
type KafkaBus struct {
	topic         string
	producer      sarama.SyncProducer
	consumerGroup sarama.ConsumerGroup

	mu     sync.RWMutex
	closed bool
}

// NewKafkaBus creates the producer and a per-instance consumer group.
// instanceID must be unique per process (the server id).
func NewKafkaBus(brokers []string, topic, instanceID string) (*KafkaBus, error) {
	config := sarama.NewConfig()

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = kafkaMaxRetries
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond

	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Group.Session.Timeout = 10 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 3 * time.Second

	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	groupID := "signaling-" + instanceID
	consumerGroup, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	return &KafkaBus{
		topic:         topic,
		producer:      producer,
		consumerGroup: consumerGroup,
	}, nil
}

func (b *KafkaBus) Type() string { return "kafka" }

func (b *KafkaBus) Publish(ctx context.Context, roomID string, env Envelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	b.mu.RUnlock()

	data, err := json.Marshal(kafkaRecord{RoomID: roomID, Envelope: env})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic:     b.topic,
		Key:       sarama.StringEncoder(roomID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
	}

	operation := func() error {
		_, _, err := b.producer.SendMessage(kafkaMsg)
		return err
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(kafkaInitialBackoff),
				backoff.WithMaxInterval(kafkaMaxBackoff),
			),
			kafkaMaxRetries,
		),
		ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		metrics.BusPublishRetries.WithLabelValues(b.Type()).Inc()
		log.Warn().Err(err).Str("room_id", roomID).Dur("next_attempt_in", d).
			Msg("retrying Kafka publish")
	})
}

func (b *KafkaBus) Subscribe(ctx context.Context, handler Handler) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("bus is closed")
	}
	b.mu.RUnlock()

	cgHandler := &consumerGroupHandler{
		handler: handler,
		ready:   make(chan bool),
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				// Consume must be called in a loop: it returns on every
				// rebalance of the group.
				if err := b.consumerGroup.Consume(ctx, []string{b.topic}, cgHandler); err != nil {
					log.Error().Err(err).Msg("consumer group error, stopping bus consumption")
					return
				}
			}
		}
	}()

	go func() {
		for err := range b.consumerGroup.Errors() {
			log.Error().Err(err).Msg("consumer group error")
		}
	}()

	select {
	case <-cgHandler.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout waiting for consumer to be ready")
	}
}

func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}
	if err := b.consumerGroup.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer group: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	handler Handler
	ready   chan bool
	once    sync.Once
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.once.Do(func() {
		close(h.ready)
	})
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case kafkaMsg := <-claim.Messages():
			if kafkaMsg == nil {
				return nil
			}

			var record kafkaRecord
			if err := json.Unmarshal(kafkaMsg.Value, &record); err != nil {
				log.Error().Err(err).Msg("dropping undecodable bus record")
				session.MarkMessage(kafkaMsg, "")
				continue
			}

			h.handler(record.RoomID, record.Envelope)
			session.MarkMessage(kafkaMsg, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
