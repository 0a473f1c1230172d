package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
)

const (
	publishTimeout     = 5 * time.Second
	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 30 * time.Second
)

var errNotConnected = errors.New("rabbitmq: channel not available (reconnecting)")

// Publisher publishes grading jobs to the message broker.
type Publisher interface {
	Publish(ctx context.Context, job *domain.GradingJob) error
	Close() error
}

type rabbitPublisher struct {
	url    string
	logger *zap.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closeOnce sync.Once
	closeCh   chan struct{}
}

// NewRabbitMQPublisher dials the broker, declares the grading topology and
// keeps the connection alive in the background.
func NewRabbitMQPublisher(url string, logger *zap.Logger) (Publisher, error) {
	p := &rabbitPublisher{
		url:     url,
		logger:  logger,
		closeCh: make(chan struct{}),
	}

	conn, err := p.connect()
	if err != nil {
		return nil, err
	}

	go p.watch(conn)
	return p, nil
}

func (p *rabbitPublisher) connect() (*amqp.Connection, error) {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: enable confirms: %w", err)
	}
	if err := DeclareTopology(ch); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: %w", err)
	}

	p.mu.Lock()
	p.conn = conn
	p.channel = ch
	p.mu.Unlock()

	p.logger.Info("RabbitMQ publisher ready",
		zap.String("exchange", ExchangeName),
		zap.String("queue", QueueName),
	)
	return conn, nil
}

// watch re-dials whenever the connection drops, until Close.
func (p *rabbitPublisher) watch(conn *amqp.Connection) {
	for {
		select {
		case <-p.closeCh:
			return
		case reason, ok := <-conn.NotifyClose(make(chan *amqp.Error, 1)):
			if !ok || reason == nil {
				return
			}
			p.logger.Warn("RabbitMQ connection lost", zap.String("reason", reason.Error()))
		}

		p.mu.Lock()
		p.conn, p.channel = nil, nil
		p.mu.Unlock()

		next, err := p.reconnect()
		if err != nil {
			return
		}
		conn = next
	}
}

func (p *rabbitPublisher) reconnect() (*amqp.Connection, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = reconnectBaseDelay
	b.MaxInterval = reconnectMaxDelay
	b.MaxElapsedTime = 0

	var conn *amqp.Connection
	err := backoff.RetryNotify(func() error {
		c, err := p.connect()
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		p.logger.Warn("RabbitMQ reconnect failed", zap.Error(err), zap.Duration("retry_in", next))
	})
	return conn, err
}

// Publish sends the job and waits for the broker confirm.
func (p *rabbitPublisher) Publish(ctx context.Context, job *domain.GradingJob) error {
	msg, err := NewPublishing(job)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}

	p.mu.RLock()
	ch := p.channel
	p.mu.RUnlock()
	if ch == nil {
		return errNotConnected
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	confirm, err := ch.PublishWithDeferredConfirmWithContext(publishCtx, ExchangeName, RoutingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}

	acked, err := confirm.WaitContext(publishCtx)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish confirmation (job_id=%s): %w", job.JobID, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq: broker nacked message (job_id=%s)", job.JobID)
	}

	p.logger.Debug("Published grading job",
		zap.String("job_id", job.JobID.String()),
		zap.Int("body_size", len(msg.Body)),
	)
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.closeCh) })

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.channel = nil, nil
	return err
}
