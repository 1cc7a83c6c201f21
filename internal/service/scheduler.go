package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mkarlsson/invoice-relay/internal/domain"
	"github.com/mkarlsson/invoice-relay/internal/queue"
)

const defaultScanInterval = 15 * time.Minute

// Scheduler periodically enqueues one batch job per configured
// (municipality, batch name) source. Workers pick the jobs up and scan the
// share; a trigger with no matching archive on the share is a no-op.
type Scheduler struct {
	registry  *domain.Registry
	publisher queue.Publisher
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewScheduler(
	registry *domain.Registry,
	publisher queue.Publisher,
	interval time.Duration,
	logger *zap.Logger,
) (*Scheduler, error) {
	if interval <= 0 {
		interval = defaultScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		registry:  registry,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		now:       time.Now,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.publishJobs(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.publishJobs(ctx)
		}
	}
}

func (s *Scheduler) publishJobs(ctx context.Context) {
	date := queue.FormatJobDate(s.now())

	for _, source := range s.registry.All() {
		msg := queue.BatchJobMessage{
			JobID:         uuid.NewString(),
			Municipality:  source.Municipality.String(),
			BatchName:     source.BatchName,
			Date:          date,
			CorrelationID: uuid.NewString(),
		}

		if err := s.publisher.Publish(ctx, queue.WorkQueueName, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("failed to enqueue batch job",
				zap.String("municipality", msg.Municipality),
				zap.String("batchName", msg.BatchName),
				zap.Error(err),
			)
			continue
		}

		s.logger.Debug("batch job enqueued",
			zap.String("municipality", msg.Municipality),
			zap.String("batchName", msg.BatchName),
			zap.String("jobId", msg.JobID),
		)
	}
}
