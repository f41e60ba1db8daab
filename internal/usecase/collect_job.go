package usecase

import (
	"context"

	"AlertFuse/internal/domain/models"
	"AlertFuse/pkg/logger"
	"AlertFuse/pkg/queue"
)

// Queue message types for the job runners.
const (
	CollectJobType = "collect.job"
	FusionTickType = "fusion.tick"
)

// CollectQueueJob runs collect jobs arriving on the Redis queue. It is
// the queued-job twin of the HTTP trigger endpoint.
type CollectQueueJob struct {
	collector *Collector
	log       *logger.Logger
}

func NewCollectQueueJob(collector *Collector, log *logger.Logger) *CollectQueueJob {
	return &CollectQueueJob{collector: collector, log: log}
}

func (j *CollectQueueJob) Name() string { return "collect-runner" }
func (j *CollectQueueJob) Type() string { return CollectJobType }

func (j *CollectQueueJob) Handle(ctx context.Context, payload interface{}) error {
	job, err := queue.ParsePayload[models.CollectJob](payload)
	if err != nil {
		// A payload that does not parse will not parse on retry either.
		if j.log != nil {
			j.log.Error("collect job payload unparseable", logger.Error(err))
		}
		return nil
	}

	res, runErr := j.collector.Run(ctx, job)
	if runErr != nil {
		if j.log != nil {
			j.log.Warn("collect job rejected",
				logger.String("platform", job.Platform),
				logger.String("tenant", job.TenantID),
				logger.Error(runErr))
		}
		return nil
	}
	if j.log != nil {
		j.log.Info("collect job done",
			logger.String("platform", job.Platform),
			logger.String("tenant", job.TenantID),
			logger.Bool("skipped", res.Skipped),
			logger.Int("published", res.Published),
			logger.Int("duplicates", res.Duplicates))
	}
	return nil
}

var _ queue.Job = (*CollectQueueJob)(nil)

// FusionQueueJob runs one fusion tick when a tick message arrives.
type FusionQueueJob struct {
	fusion *Fusion
	log    *logger.Logger
}

func NewFusionQueueJob(fusion *Fusion, log *logger.Logger) *FusionQueueJob {
	return &FusionQueueJob{fusion: fusion, log: log}
}

func (j *FusionQueueJob) Name() string { return "fusion-runner" }
func (j *FusionQueueJob) Type() string { return FusionTickType }

func (j *FusionQueueJob) Handle(ctx context.Context, _ interface{}) error {
	res, err := j.fusion.Run(ctx)
	if err != nil {
		return err
	}
	if j.log != nil {
		j.log.Info("fusion tick done",
			logger.Int("processed", res.Processed),
			logger.Int("fused", res.Fused),
			logger.Int("errors", res.Errors))
	}
	return nil
}

var _ queue.Job = (*FusionQueueJob)(nil)
