package store

import (
	"context"
	"errors"

	"medtracker-go/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrMedicationNotFound = errors.New("medication not found")

// SubscriptionStore handles push subscription persistence.
type SubscriptionStore interface {
	UpsertSubscription(ctx context.Context, sub models.PushSubscription) error
	GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	RemoveSubscriptions(ctx context.Context, endpoints []string) error
}

// MedicationStore handles medication settings rows.
type MedicationStore interface {
	GetMedication(ctx context.Context, medID string) (models.MedicationSetting, error)
	GetMedications(ctx context.Context, reminderOnly bool) ([]models.MedicationSetting, error)
	UpsertMedication(ctx context.Context, med models.MedicationSetting) error
	GetLowStock(ctx context.Context, includeEmpty bool) ([]models.MedicationSetting, error)
	DecrementStock(ctx context.Context, medID string) error
}

// DoseStore handles the append-only dose log and the reminder audit trail.
type DoseStore interface {
	AddDose(ctx context.Context, medID, ip, agent, notes string) (models.DoseLog, error)
	CountDosesToday(ctx context.Context, medID string) (int, error)
	GetTodayLogs(ctx context.Context, medID string) ([]models.DoseLog, error)
	GetRecentCounts(ctx context.Context, medID string, days int) ([]models.DayCount, error)
	GetHistory(ctx context.Context, medID string, days int) ([]models.HistoryDay, error)
	AddReminderEvent(ctx context.Context, medID, kind string) error
}

// Store bundles everything the HTTP layer needs from PostgreSQL.
type Store interface {
	SubscriptionStore
	MedicationStore
	DoseStore
	Ping(ctx context.Context) error
}

// EventPublisher pushes entries onto the live feed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event models.Event) error
}

// EventStore handles the live feed (Redis): pub/sub for SSE plus a short
// rolling timeline for feed backfill.
type EventStore interface {
	EventPublisher
	GetRecentEvents(ctx context.Context) ([]models.Event, error)
	Subscribe(ctx context.Context) *redis.PubSub
}
