package messagingworker

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/gmx-sms-connector/internal/connector"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/queue"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

// Runner is the connector surface the worker drives.
type Runner interface {
	Bootstrap(ctx context.Context) error
	Update(ctx context.Context) (string, error)
	Send(ctx context.Context, msg gateway.OutgoingMessage) (*connector.SendResult, error)
}

type jobObserver interface {
	ObserveJob(kind, status string)
}

const (
	jobStatusOK      = "ok"
	jobStatusFailed  = "failed"
	jobStatusInvalid = "invalid"
)

// SendWorker consumes connector jobs from a queue. Every received message is
// deleted once handled; failed and undecodable jobs are forwarded to the
// dead-letter queue when one is configured. A job cut short by cancellation
// of Run's context is left on the queue for redelivery.
type SendWorker struct {
	queue     queue.Client
	dlq       queue.Client
	runner    Runner
	logger    *logging.Logger
	metrics   jobObserver
	batchSize int
	wait      int
	idle      time.Duration
}

func NewSendWorker(q queue.Client, runner Runner, logger *logging.Logger) *SendWorker {
	if logger == nil {
		logger = logging.Default()
	}
	return &SendWorker{
		queue:     q,
		runner:    runner,
		logger:    logger,
		batchSize: 5,
		wait:      10,
		idle:      time.Second,
	}
}

func (w *SendWorker) WithDeadLetterQueue(dlq queue.Client) *SendWorker {
	w.dlq = dlq
	return w
}

func (w *SendWorker) WithMetrics(m jobObserver) *SendWorker {
	w.metrics = m
	return w
}

func (w *SendWorker) WithBatchSize(n int) *SendWorker {
	if n > 0 {
		w.batchSize = n
	}
	return w
}

func (w *SendWorker) WithWaitSeconds(n int) *SendWorker {
	if n >= 0 {
		w.wait = n
	}
	return w
}

// Run polls until ctx is done. Receive errors are logged and retried after a
// short pause.
func (w *SendWorker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("sms worker receive failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.idle):
			}
		}
	}
}

func (w *SendWorker) poll(ctx context.Context) error {
	msgs, err := w.queue.Receive(ctx, w.batchSize, w.wait)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		w.handle(ctx, msg)
	}
	return nil
}

func (w *SendWorker) handle(ctx context.Context, msg queue.Message) {
	if ctx.Err() != nil {
		return
	}
	job, err := queue.DecodeJob(msg.Body)
	if err != nil {
		w.logger.Warn("sms worker dropped invalid job", "message_id", msg.ID, "error", err)
		w.observe(string(job.Kind), jobStatusInvalid)
		w.deadLetter(ctx, queue.Job{ID: msg.ID, Kind: job.Kind, Error: err.Error(), Payload: msg.Body})
		w.ack(ctx, msg)
		return
	}

	log := w.logger.With("job_id", job.ID, "kind", job.Kind)
	err = w.run(ctx, job)
	if err != nil && ctx.Err() != nil {
		// Left unacknowledged so the queue redelivers it.
		log.Warn("sms job interrupted by shutdown", "error", err)
		return
	}
	if err != nil {
		log.Error("sms job failed",
			"error", err,
			"outcome", gateway.Outcome(err),
			"reason", gateway.Reason(err),
		)
		w.observe(string(job.Kind), jobStatusFailed)
		job.Error = err.Error()
		w.deadLetter(ctx, job)
	} else {
		log.Info("sms job done")
		w.observe(string(job.Kind), jobStatusOK)
	}
	w.ack(ctx, msg)
}

func (w *SendWorker) run(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case gateway.OpBootstrap:
		return w.runner.Bootstrap(ctx)
	case gateway.OpUpdate:
		_, err := w.runner.Update(ctx)
		return err
	case gateway.OpSend:
		if job.Message == nil {
			return errors.New("messagingworker: send job without message")
		}
		_, err := w.runner.Send(ctx, *job.Message)
		return err
	}
	return errors.New("messagingworker: unknown job kind")
}

func (w *SendWorker) ack(ctx context.Context, msg queue.Message) {
	if err := w.queue.Delete(context.WithoutCancel(ctx), msg.ReceiptHandle); err != nil {
		w.logger.Error("sms worker delete failed", "message_id", msg.ID, "error", err)
	}
}

func (w *SendWorker) deadLetter(ctx context.Context, job queue.Job) {
	if w.dlq == nil {
		return
	}
	if _, err := queue.Publish(context.WithoutCancel(ctx), w.dlq, job); err != nil {
		w.logger.Error("sms worker dead-letter failed", "job_id", job.ID, "error", err)
	}
}

func (w *SendWorker) observe(kind, status string) {
	if w.metrics == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	w.metrics.ObserveJob(kind, status)
}
