package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStandingProcess materializes all due standing orders.
	TaskStandingProcess = "standing:process"
	// TaskHousekeeping prunes aged notifications and run records.
	TaskHousekeeping = "maintenance:housekeeping"
)

// StandingProcessPayload carries one processing run. RunID correlates log
// lines across the trigger and the worker.
type StandingProcessPayload struct {
	RunID uuid.UUID `json:"run_id"`
	// Today anchors the due check so a delayed task still processes the day
	// it was enqueued for.
	Today time.Time `json:"today"`
	// Manual marks runs enqueued from the HTTP trigger rather than cron.
	Manual bool `json:"manual"`
}

// NewStandingProcessTask constructs the processing task.
func NewStandingProcessTask(today time.Time, manual bool) (*asynq.Task, error) {
	data, err := json.Marshal(StandingProcessPayload{
		RunID:  uuid.New(),
		Today:  today,
		Manual: manual,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStandingProcess, data), nil
}

// HousekeepingPayload bounds the cleanup run.
type HousekeepingPayload struct {
	RunID              uuid.UUID     `json:"run_id"`
	NotificationMaxAge time.Duration `json:"notification_max_age"`
}

// NewHousekeepingTask constructs the cleanup task.
func NewHousekeepingTask(notificationMaxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(HousekeepingPayload{
		RunID:              uuid.New(),
		NotificationMaxAge: notificationMaxAge,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHousekeeping, data), nil
}
