package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mkarlsson/invoice-relay/internal/domain"
	"github.com/mkarlsson/invoice-relay/internal/observability"
	"github.com/mkarlsson/invoice-relay/internal/queue"
	"github.com/mkarlsson/invoice-relay/internal/report"
)

const minWorkerConcurrency = 1

// BatchRunner runs the processing pipeline for one source and date.
type BatchRunner interface {
	Run(ctx context.Context, source domain.BatchSource, date time.Time) ([]*domain.Batch, error)
}

// WorkerService consumes batch jobs and runs the pipeline. One job covers
// one (municipality, batch name) source; jobs for different sources may run
// concurrently while items within a batch stay strictly sequential.
type WorkerService struct {
	registry    *domain.Registry
	consumer    queue.Consumer
	runner      BatchRunner
	reporter    *report.Reporter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
}

func NewWorkerService(
	registry *domain.Registry,
	consumer queue.Consumer,
	runner BatchRunner,
	reporter *report.Reporter,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if registry == nil {
		return nil, fmt.Errorf("batch source registry is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("queue consumer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("batch runner is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		registry:    registry,
		consumer:    consumer,
		runner:      runner,
		reporter:    reporter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the batch work queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.WorkQueueName),
			)

			err := s.consumer.Consume(groupCtx, queue.WorkQueueName, s.processJob)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
			)
			return nil
		})
	}

	return g.Wait()
}

// processJob runs the pipeline for one consumed job. Jobs are always acked:
// a failed run is reported and left for the next scheduled trigger instead
// of being redelivered, because a partially processed batch must not be
// dispatched twice.
func (s *WorkerService) processJob(ctx context.Context, msg queue.BatchJobMessage) error {
	logger := observability.WithContextLogger(
		s.logger,
		observability.WithCorrelationID(ctx, msg.CorrelationID),
	)

	source, ok := s.registry.Get(domain.MunicipalityID(msg.Municipality), msg.BatchName)
	if !ok {
		logger.Warn("dropping job for unknown batch source",
			zap.String("municipality", msg.Municipality),
			zap.String("batchName", msg.BatchName),
		)
		return nil
	}

	date, err := msg.EffectiveDate()
	if err != nil {
		logger.Warn("dropping job with unparsable date",
			zap.String("date", msg.Date),
			zap.Error(err),
		)
		return nil
	}

	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(msg.Municipality)
		defer s.metrics.DecWorkerInFlight(msg.Municipality)
	}

	runStart := s.now()
	batches, err := s.runner.Run(ctx, source, date)
	if s.metrics != nil {
		s.metrics.ObserveBatchRunDuration(msg.Municipality, s.now().Sub(runStart))
	}

	if err != nil {
		logger.Error("batch run failed",
			zap.String("municipality", msg.Municipality),
			zap.String("batchName", msg.BatchName),
			zap.Error(err),
		)
		s.reportError(ctx, logger, msg, err.Error())
		return nil
	}

	s.recordBatches(msg.Municipality, batches)

	for _, batch := range batches {
		if batch.Completed {
			continue
		}
		s.reportError(ctx, logger, msg, fmt.Sprintf("batch %s was not completed", batch.Filename))
	}

	if len(batches) > 0 {
		s.reportStatus(ctx, logger, date, batches)
	}

	return nil
}

func (s *WorkerService) recordBatches(municipality string, batches []*domain.Batch) {
	if s.metrics == nil {
		return
	}

	for _, batch := range batches {
		s.metrics.IncBatchProcessed(municipality, batch.Completed)
		for _, item := range batch.Items {
			s.metrics.IncItemProcessed(municipality, item.Status.String())
		}
	}
}

func (s *WorkerService) reportStatus(ctx context.Context, logger *zap.Logger, date time.Time, batches []*domain.Batch) {
	if s.reporter == nil {
		return
	}

	summaries := make([]*domain.BatchSummary, 0, len(batches))
	for _, batch := range batches {
		summary := batch.Summary()
		summaries = append(summaries, &summary)
	}

	if err := s.reporter.SendStatusReport(ctx, date, summaries); err != nil {
		logger.Warn("failed to send status report", zap.Error(err))
	}
}

func (s *WorkerService) reportError(ctx context.Context, logger *zap.Logger, msg queue.BatchJobMessage, message string) {
	if s.reporter == nil {
		return
	}

	info := report.ErrorInfo{
		BatchName:     msg.BatchName,
		Municipality:  msg.Municipality,
		Message:       message,
		CorrelationID: msg.CorrelationID,
	}

	if err := s.reporter.SendErrorReport(ctx, info); err != nil {
		logger.Warn("failed to send error report", zap.Error(err))
	}
}
