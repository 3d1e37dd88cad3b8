// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"carwatch/internal/model"
)

// Stats summarizes the store contents for periodic operator logging.
type Stats struct {
	TotalSeen             int
	BySource              map[string]int
	NotificationsToday    int
	NotificationsLastHour int
}

// Storage is the interface for all persistence operations.
type Storage interface {
	// IsSeen reports whether a listing key has already been notified.
	IsSeen(ctx context.Context, key string) (bool, error)
	// MarkSeen records a dispatched listing. Marking the same key again is
	// a no-op for the record itself and bumps the notify count.
	MarkSeen(ctx context.Context, rec model.SeenRecord) error

	LogNotification(ctx context.Context, key string, ok bool) error
	CountNotificationsSince(ctx context.Context, since time.Time) (int, error)

	// CanNotifyError gates operator error notifications to one per hour
	// per error kind.
	CanNotifyError(ctx context.Context, kind string) (bool, error)
	LogErrorNotification(ctx context.Context, kind, message string) error

	Stats(ctx context.Context) (Stats, error)

	Close() error
}
