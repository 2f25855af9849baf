package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/gmx-sms-connector/internal/config"
	"github.com/wolfman30/gmx-sms-connector/internal/queue"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

// Queues is the job queue and its optional dead-letter queue.
type Queues struct {
	Jobs       queue.Client
	DeadLetter queue.Client
	closers    []func() error
}

// Close releases the underlying clients.
func (q *Queues) Close() {
	for _, c := range q.closers {
		_ = c()
	}
}

// LoadAWSConfig centralizes AWS SDK initialization so both binaries share the
// same LocalStack/production wiring.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewSQSClient builds an SQS client honouring AWS_ENDPOINT_OVERRIDE.
func NewSQSClient(awsCfg aws.Config, cfg *appconfig.Config) *sqs.Client {
	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// BuildQueues selects the job queue from QUEUE_BACKEND. consume is false for
// publishers, which then skip the Kafka consumer group.
func BuildQueues(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, consume bool) (*Queues, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.QueueBackend {
	case "", "memory":
		logger.Info("using in-memory job queue")
		return &Queues{Jobs: queue.NewMemoryQueue(256)}, nil
	case "sqs":
		if strings.TrimSpace(cfg.SendQueueURL) == "" {
			return nil, fmt.Errorf("bootstrap: SMS_SEND_QUEUE_URL required for sqs queue")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := NewSQSClient(awsCfg, cfg)
		jobs, err := queue.NewSQSQueue(client, cfg.SendQueueURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		out := &Queues{Jobs: jobs}
		if cfg.DeadLetterQueueURL != "" {
			dlq, err := queue.NewSQSQueue(client, cfg.DeadLetterQueueURL)
			if err != nil {
				return nil, fmt.Errorf("bootstrap: %w", err)
			}
			out.DeadLetter = dlq
		}
		logger.Info("using sqs job queue", "queue_url", cfg.SendQueueURL, "dlq", cfg.DeadLetterQueueURL != "")
		return out, nil
	case "kafka":
		group := ""
		if consume {
			group = cfg.KafkaGroupID
		}
		jobs, err := queue.NewKafkaQueue(queue.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: group,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		out := &Queues{Jobs: jobs, closers: []func() error{jobs.Close}}
		if cfg.KafkaDLQTopic != "" {
			dlq, err := queue.NewKafkaQueue(queue.KafkaConfig{
				Brokers: cfg.KafkaBrokers,
				Topic:   cfg.KafkaDLQTopic,
			})
			if err != nil {
				out.Close()
				return nil, fmt.Errorf("bootstrap: %w", err)
			}
			out.DeadLetter = dlq
			out.closers = append(out.closers, dlq.Close)
		}
		logger.Info("using kafka job queue", "topic", cfg.KafkaTopic, "group", group)
		return out, nil
	}
	return nil, fmt.Errorf("bootstrap: unknown queue backend %q", cfg.QueueBackend)
}
