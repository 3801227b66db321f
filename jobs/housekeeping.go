package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/packhouse-erp/packhouse-erp/internal/notify"
)

// HousekeepingJob prunes aged notification rows.
type HousekeepingJob struct {
	notifications *notify.Service
	logger        *slog.Logger
}

// NewHousekeepingJob constructs the job.
func NewHousekeepingJob(notifications *notify.Service, logger *slog.Logger) *HousekeepingJob {
	return &HousekeepingJob{notifications: notifications, logger: logger}
}

// Handle processes TaskHousekeeping tasks.
func (j *HousekeepingJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload HousekeepingPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxAge := payload.NotificationMaxAge
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}

	pruned, err := j.notifications.Prune(ctx, maxAge)
	if err != nil {
		j.logger.Error("notification prune failed",
			slog.String("run_id", payload.RunID.String()), slog.Any("error", err))
		return err
	}
	j.logger.Info("housekeeping complete",
		slog.String("run_id", payload.RunID.String()),
		slog.Int64("notifications_pruned", pruned))
	return nil
}
