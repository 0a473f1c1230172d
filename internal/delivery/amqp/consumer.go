package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqplib "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
	"github.com/codeforge/judge-harness/internal/publisher"
)

const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

var errDeliveriesClosed = errors.New("amqp: delivery channel closed")

// Consumer reads grading jobs from the broker and hands them to the
// dispatcher as GradingMessages. Acknowledgement is left to the receiver.
type Consumer struct {
	url      string
	prefetch int
	jobs     chan<- *domain.GradingMessage
	logger   *zap.Logger

	mu      sync.Mutex
	conn    *amqplib.Connection
	channel *amqplib.Channel

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewConsumer dials the broker. prefetch bounds unacknowledged deliveries and
// should match the number of grading goroutines.
func NewConsumer(url string, jobs chan<- *domain.GradingMessage, prefetch int, logger *zap.Logger) (*Consumer, error) {
	if prefetch < 1 {
		prefetch = 1
	}
	c := &Consumer{
		url:      url,
		prefetch: prefetch,
		jobs:     jobs,
		logger:   logger,
		closeCh:  make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqplib.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("amqp qos: %w", err)
	}
	if err := publisher.DeclareTopology(ch); err != nil {
		conn.Close()
		return fmt.Errorf("amqp: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()
	return nil
}

// Start consumes until ctx is cancelled or Close is called, re-dialing with
// exponential backoff whenever the session drops.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		err := c.consume(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("AMQP consumer lost connection", zap.Error(err))

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = baseReconnectDelay
		b.MaxInterval = maxReconnectDelay
		b.MaxElapsedTime = 0

		err = backoff.RetryNotify(c.connect, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
			c.logger.Error("Reconnect failed", zap.Error(err), zap.Duration("retry_in", next))
		})
		if err != nil {
			return nil
		}
		c.logger.Info("Reconnected to RabbitMQ")
	}
}

// consume runs one session. A nil error means ctx ended it.
func (c *Consumer) consume(ctx context.Context) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return errors.New("amqp: channel is nil")
	}

	deliveries, err := ch.Consume(publisher.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("amqp consume: %w", err)
	}
	c.logger.Info("AMQP consumer started",
		zap.String("queue", publisher.QueueName),
		zap.Int("prefetch", c.prefetch),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			msg, err := toMessage(d)
			if err != nil {
				c.logger.Error("Rejecting undecodable delivery",
					zap.Error(err),
					zap.String("message_id", d.MessageId),
					zap.Int("body_size", len(d.Body)),
				)
				_ = d.Nack(false, false)
				continue
			}

			c.logger.Debug("Received grading job",
				zap.String("job_id", msg.Job.JobID.String()),
				zap.String("language", msg.Job.Request.Language),
				zap.Bool("redelivered", d.Redelivered),
			)

			select {
			case c.jobs <- msg:
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return nil
			}
		}
	}
}

// toMessage decodes a delivery and binds its acknowledgement to the message.
func toMessage(d amqplib.Delivery) (*domain.GradingMessage, error) {
	job, err := publisher.DecodeJob(d.Body)
	if err != nil {
		return nil, err
	}
	return &domain.GradingMessage{
		Job:  job,
		Ack:  func() error { return d.Ack(false) },
		Nack: func(requeue bool) error { return d.Nack(false, requeue) },
	}, nil
}

// Close stops Start and closes the connection.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn, c.channel = nil, nil
	return err
}
