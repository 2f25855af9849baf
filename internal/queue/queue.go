// Package queue carries connector jobs between the API and the worker over
// SQS, Kafka or an in-process channel.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
)

// Client is implemented by every queue backend.
type Client interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is a received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Job is a queued connector operation.
type Job struct {
	ID         string                   `json:"id"`
	Kind       gateway.Operation        `json:"kind"`
	Message    *gateway.OutgoingMessage `json:"message,omitempty"`
	EnqueuedAt time.Time                `json:"enqueued_at"`
	// Error is set on jobs forwarded to the dead-letter queue.
	Error string `json:"error,omitempty"`
	// Payload carries the raw body of a message that could not be decoded.
	Payload string `json:"payload,omitempty"`
}

// EncodeJob assigns missing ids and timestamps and marshals job.
func EncodeJob(job Job) (Job, string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	if job.Kind == gateway.OpSend && job.Message != nil && job.Message.ID == "" {
		job.Message.ID = job.ID
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("queue: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

// DecodeJob parses and validates a job body.
func DecodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("queue: failed to decode job: %w", err)
	}
	switch job.Kind {
	case gateway.OpBootstrap, gateway.OpUpdate:
	case gateway.OpSend:
		if job.Message == nil {
			return job, errors.New("queue: send job without message")
		}
	default:
		return job, fmt.Errorf("queue: unknown job kind %q", job.Kind)
	}
	return job, nil
}

// Publish encodes job and sends it on q.
func Publish(ctx context.Context, q Client, job Job) (Job, error) {
	job, body, err := EncodeJob(job)
	if err != nil {
		return Job{}, err
	}
	if err := q.Send(ctx, body); err != nil {
		return Job{}, err
	}
	return job, nil
}
