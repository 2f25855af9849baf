package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
)

const kafkaDrainWait = 50 * time.Millisecond

type kafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig selects brokers, topic and consumer group.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaQueue implements Client on a Kafka topic. Offsets are committed when
// a received message is deleted, so unacknowledged jobs are redelivered.
type KafkaQueue struct {
	reader kafkaReader
	writer kafkaWriter

	mu      sync.Mutex
	pending map[string]kafka.Message
}

// NewKafkaQueue connects a reader and a writer to cfg.Topic. A queue without
// GroupID can only publish.
func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("queue: kafka brokers required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("queue: kafka topic required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	var reader kafkaReader
	if cfg.GroupID != "" {
		reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       1 << 20,
			CommitInterval: 0,
			StartOffset:    kafka.FirstOffset,
		})
	}
	return newKafkaQueue(reader, writer), nil
}

func newKafkaQueue(reader kafkaReader, writer kafkaWriter) *KafkaQueue {
	return &KafkaQueue{
		reader:  reader,
		writer:  writer,
		pending: make(map[string]kafka.Message),
	}
}

func (q *KafkaQueue) Send(ctx context.Context, body string) error {
	err := q.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(uuid.NewString()),
		Value: []byte(body),
	})
	if err != nil {
		return fmt.Errorf("queue: failed to write kafka message: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	if q.reader == nil {
		return nil, errors.New("queue: kafka queue has no consumer group")
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}
	fetchCtx := ctx
	if waitSeconds > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(waitSeconds)*time.Second)
		defer cancel()
	}
	first, err := q.reader.FetchMessage(fetchCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: failed to fetch kafka message: %w", err)
	}
	messages := []Message{q.track(first)}
	for len(messages) < maxMessages {
		drainCtx, cancel := context.WithTimeout(ctx, kafkaDrainWait)
		m, err := q.reader.FetchMessage(drainCtx)
		cancel()
		if err != nil {
			break
		}
		messages = append(messages, q.track(m))
	}
	return messages, nil
}

func (q *KafkaQueue) track(m kafka.Message) Message {
	handle := uuid.NewString()
	q.mu.Lock()
	q.pending[handle] = m
	q.mu.Unlock()
	return Message{
		ID:            fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset),
		Body:          string(m.Value),
		ReceiptHandle: handle,
	}
}

// Delete commits the offset of a received message.
func (q *KafkaQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	m, ok := q.pending[receiptHandle]
	delete(q.pending, receiptHandle)
	q.mu.Unlock()
	if !ok || q.reader == nil {
		return nil
	}
	if err := q.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("queue: failed to commit kafka message: %w", err)
	}
	return nil
}

// Close releases the reader and writer.
func (q *KafkaQueue) Close() error {
	var errs []error
	if q.reader != nil {
		errs = append(errs, q.reader.Close())
	}
	errs = append(errs, q.writer.Close())
	return errors.Join(errs...)
}
