package amqp

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/codeforge/judge-harness/internal/domain"
)

// GradingProcessor grades one job and reports whether it was a duplicate.
type GradingProcessor interface {
	Execute(ctx context.Context, job *domain.GradingJob) (bool, error)
}

// Dispatcher drains consumed messages into the grading processor and settles
// each one with the broker.
type Dispatcher struct {
	messages    <-chan *domain.GradingMessage
	processor   GradingProcessor
	concurrency int
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// NewDispatcher creates a dispatcher with a fixed number of goroutines.
func NewDispatcher(messages <-chan *domain.GradingMessage, processor GradingProcessor, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		messages:    messages,
		processor:   processor,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start launches the dispatch goroutines.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting grading dispatcher", zap.Int("concurrency", d.concurrency))
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go d.loop(ctx, i)
	}
}

// Wait blocks until every dispatch goroutine has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) loop(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("Dispatcher shutting down", zap.Int("dispatcher_id", id))
			return
		case msg, ok := <-d.messages:
			if !ok {
				return
			}
			d.handle(ctx, msg)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, msg *domain.GradingMessage) {
	log := d.logger.With(zap.String("job_id", msg.Job.JobID.String()))

	isDuplicate, err := d.processor.Execute(ctx, msg.Job)
	if err != nil {
		// The job lock is still held, so a redelivery would be skipped as a
		// duplicate. Dead-letter it instead.
		log.Error("Grading failed, dead-lettering message", zap.Error(err))
		if nackErr := msg.Nack(false); nackErr != nil {
			log.Error("Failed to NACK message", zap.Error(nackErr))
		}
		return
	}
	if isDuplicate {
		log.Info("Duplicate grading job acknowledged")
	}
	if ackErr := msg.Ack(); ackErr != nil {
		log.Error("Failed to ACK message", zap.Error(ackErr))
	}
}
