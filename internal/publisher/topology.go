package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/codeforge/judge-harness/internal/domain"
)

// Broker topology shared by the API publisher and the worker consumer.
const (
	ExchangeName   = "harness.direct"
	DeadLetterName = "harness.dlx"
	QueueName      = "grading_tasks"
	DeadQueueName  = "grading_tasks.dlq"
	RoutingKey     = "grade"

	exchangeType   = "direct"
	messageType    = "grading_job"
	languageHeader = "x-language"
)

// QueueArgs are the grading queue arguments. Both sides must declare the
// queue identically or the broker rejects the second declaration.
func QueueArgs() amqp.Table {
	return amqp.Table{
		"x-queue-type":              "quorum",
		"x-dead-letter-exchange":    DeadLetterName,
		"x-dead-letter-routing-key": RoutingKey,
	}
}

// DeclareTopology declares the exchanges, the grading queue and its dead
// letter queue. Declarations are idempotent, so either side may start first.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(DeadLetterName, exchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}

	if _, err := ch.QueueDeclare(DeadQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(DeadQueueName, RoutingKey, DeadLetterName, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, QueueArgs()); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// NewPublishing encodes a grading job as a persistent JSON message.
func NewPublishing(job *domain.GradingJob) (amqp.Publishing, error) {
	if job == nil || job.JobID == uuid.Nil {
		return amqp.Publishing{}, fmt.Errorf("grading job without id")
	}
	body, err := json.Marshal(job)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal job: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.JobID.String(),
		Type:         messageType,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{languageHeader: job.Request.Language},
		Body:         body,
	}, nil
}

// DecodeJob parses a delivery body back into a grading job.
func DecodeJob(body []byte) (*domain.GradingJob, error) {
	var job domain.GradingJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("decode grading job: %w", err)
	}
	if job.JobID == uuid.Nil {
		return nil, fmt.Errorf("decode grading job: missing job_id")
	}
	return &job, nil
}
