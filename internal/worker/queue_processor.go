package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/logger"
)

// Queue is the part of the email retry queue the processor drives.
type Queue interface {
	ProcessQueue(ctx context.Context, limit int) (*model.QueueResult, error)
}

type QueueProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

// QueueProcessor drains the email retry queue on a fixed interval.
type QueueProcessor struct {
	queue  Queue
	config QueueProcessorConfig
	logger *logger.Logger
}

func NewQueueProcessor(queue Queue, config QueueProcessorConfig, log *logger.Logger) *QueueProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if log == nil {
		log = logger.Nop()
	}
	return &QueueProcessor{queue: queue, config: config, logger: log}
}

// Start blocks until ctx is cancelled.
func (p *QueueProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting email queue processor",
		"batch_size", p.config.BatchSize,
		"poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down email queue processor")
			return
		case <-ticker.C:
			if _, err := p.drain(ctx); err != nil {
				p.logger.Error(err, "Failed to process email queue")
			}
		}
	}
}

func (p *QueueProcessor) drain(ctx context.Context) (*model.QueueResult, error) {
	result, err := p.queue.ProcessQueue(ctx, p.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to drain email queue: %w", err)
	}
	for _, d := range result.Details {
		if d.Error != "" {
			p.logger.Warn("email resend failed",
				"failure_id", d.ID,
				"retry_count", d.RetryCount,
				"status", string(d.Status),
				"error", d.Error)
		}
	}
	return result, nil
}
