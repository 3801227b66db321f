// Package notify implements the user-facing notification sink. Failures in
// batch operations are routed here instead of being thrown at the caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is the toast equivalent surfaced to warehouse staff.
type Notification struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier delivers notifications. Implementations must never panic or
// propagate delivery failures back into business flows.
type Notifier interface {
	Notify(ctx context.Context, title, description string, severity Severity)
}

// Service persists notifications and falls back to logging when the store
// is unavailable.
type Service struct {
	repo   *Repository
	logger *slog.Logger
}

// NewService constructs the notification service.
func NewService(repo *Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Notify stores a notification, logging instead if persistence fails.
func (s *Service) Notify(ctx context.Context, title, description string, severity Severity) {
	n := Notification{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Severity:    severity,
		CreatedAt:   time.Now().UTC(),
	}
	if s.repo == nil {
		s.log(n)
		return
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Warn("notification store unavailable", slog.Any("error", err))
		s.log(n)
	}
}

// List returns the most recent notifications.
func (s *Service) List(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, limit)
}

// Prune removes notifications older than the retention window.
func (s *Service) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-olderThan))
}

func (s *Service) log(n Notification) {
	attrs := []any{
		slog.String("title", n.Title),
		slog.String("description", n.Description),
	}
	switch n.Severity {
	case SeverityError:
		s.logger.Error("notification", attrs...)
	case SeverityWarning:
		s.logger.Warn("notification", attrs...)
	default:
		s.logger.Info("notification", attrs...)
	}
}
