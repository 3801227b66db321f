package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/packhouse-erp/packhouse-erp/internal/standing"
)

// StandingOrdersJob runs the daily materialization batch.
type StandingOrdersJob struct {
	service *standing.Service
	logger  *slog.Logger
}

// NewStandingOrdersJob constructs the job.
func NewStandingOrdersJob(service *standing.Service, logger *slog.Logger) *StandingOrdersJob {
	return &StandingOrdersJob{service: service, logger: logger}
}

// Handle processes TaskStandingProcess tasks. Materialization is idempotent
// through the occurrence claim, so redelivery and concurrent manual triggers
// are harmless.
func (j *StandingOrdersJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StandingProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	today := payload.Today
	if today.IsZero() {
		today = time.Now().UTC()
	}

	logger := j.logger.With(
		slog.String("run_id", payload.RunID.String()),
		slog.Bool("manual", payload.Manual))
	logger.Info("standing order run starting", slog.Time("today", today))

	result, err := j.service.ProcessDue(ctx, today)
	if err != nil {
		logger.Error("standing order run failed", slog.Any("error", err))
		return err
	}
	logger.Info("standing order run complete",
		slog.Int("materialized", result.Materialized),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed))
	return nil
}
