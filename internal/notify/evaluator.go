package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"medtracker-go/internal/metrics"
	"medtracker-go/internal/models"
	"medtracker-go/internal/store"
)

// Evaluator decides which medications need a reminder or a refill alert and
// emits them through the dispatcher.
type Evaluator struct {
	meds       store.MedicationStore
	doses      store.DoseStore
	events     store.EventPublisher
	dispatcher *Dispatcher
	metrics    *metrics.Metrics

	// alertOutOfStock includes depleted medications in the daily stock scan,
	// with a distinct out-of-stock alert.
	alertOutOfStock bool

	now func() time.Time
}

func NewEvaluator(meds store.MedicationStore, doses store.DoseStore, events store.EventPublisher,
	dispatcher *Dispatcher, m *metrics.Metrics, alertOutOfStock bool) *Evaluator {
	return &Evaluator{
		meds:            meds,
		doses:           doses,
		events:          events,
		dispatcher:      dispatcher,
		metrics:         m,
		alertOutOfStock: alertOutOfStock,
		now:             time.Now,
	}
}

// IsReminderDue reports whether a reminder should go out for med right now:
// reminders enabled, nothing logged today, and the local clock at or past the
// scheduled time.
func (e *Evaluator) IsReminderDue(ctx context.Context, med models.MedicationSetting) (bool, error) {
	if !med.ReminderEnabled {
		return false, nil
	}

	count, err := e.doses.CountDosesToday(ctx, med.MedicationID)
	if err != nil {
		return false, fmt.Errorf("failed to count today's doses: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := e.now()
	hour, minute := med.ScheduleClock()
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(scheduled), nil
}

// CheckAllDue scans every reminder-enabled medication and sends a reminder
// for each one that is due.
func (e *Evaluator) CheckAllDue(ctx context.Context) error {
	meds, err := e.meds.GetMedications(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list medications: %w", err)
	}

	for _, med := range meds {
		due, err := e.IsReminderDue(ctx, med)
		if err != nil {
			log.Printf("Failed to evaluate reminder for %s: %v", med.MedicationID, err)
			continue
		}
		if due {
			e.sendReminder(ctx, med)
		}
	}
	return nil
}

func (e *Evaluator) sendReminder(ctx context.Context, med models.MedicationSetting) {
	name := med.Name
	if name == "" {
		name = "Your medication"
	}
	dosage := med.Dosage
	if dosage == "" {
		dosage = "1 pill"
	}

	body := fmt.Sprintf("Time to take %s (%s)", name, dosage)
	data := map[string]any{
		"medication_id":   med.MedicationID,
		"medication_name": name,
		"kind":            models.EventReminder,
		"url":             "/",
		"timestamp":       e.now().Format(time.RFC3339),
	}

	if !e.dispatcher.Send(ctx, "Medication Reminder", body, data) {
		return
	}

	// The audit trail lives apart from the dose log so a sent reminder never
	// reads as a taken dose.
	if err := e.doses.AddReminderEvent(ctx, med.MedicationID, "reminder_sent"); err != nil {
		log.Printf("Failed to record reminder event: %v", err)
	}
	e.metrics.RemindersSent.Inc()
	e.publish(ctx, models.EventReminder, med.MedicationID, body)
	log.Printf("Sent medication reminder for %s", name)
}

// CheckLowStock scans for medications at or under their low-stock threshold
// and alerts each one. Depleted medications are skipped unless the
// out-of-stock alert is enabled. The selected medications are returned.
func (e *Evaluator) CheckLowStock(ctx context.Context) ([]models.MedicationSetting, error) {
	meds, err := e.meds.GetLowStock(ctx, e.alertOutOfStock)
	if err != nil {
		return nil, fmt.Errorf("failed to check stock levels: %w", err)
	}

	for _, med := range meds {
		if med.CurrentStock <= 0 {
			e.sendOutOfStockAlert(ctx, med)
		} else {
			e.sendLowStockAlert(ctx, med)
		}
	}
	return meds, nil
}

func (e *Evaluator) sendLowStockAlert(ctx context.Context, med models.MedicationSetting) {
	name := med.Name
	if name == "" {
		name = "Your medication"
	}

	body := fmt.Sprintf("%s: Only %d pills remaining. Time to refill!", name, med.CurrentStock)
	data := map[string]any{
		"type":            models.EventLowStock,
		"medication_id":   med.MedicationID,
		"stock_remaining": med.CurrentStock,
	}

	e.dispatcher.Send(ctx, "Low Stock Alert", body, data)
	e.metrics.StockAlerts.Inc()
	e.publish(ctx, models.EventLowStock, med.MedicationID, body)
	log.Printf("Sent low stock alert for %s (%d remaining)", name, med.CurrentStock)
}

func (e *Evaluator) sendOutOfStockAlert(ctx context.Context, med models.MedicationSetting) {
	name := med.Name
	if name == "" {
		name = "Your medication"
	}

	body := fmt.Sprintf("%s is out of stock. Refill now!", name)
	data := map[string]any{
		"type":            models.EventOutOfStock,
		"medication_id":   med.MedicationID,
		"stock_remaining": 0,
	}

	e.dispatcher.Send(ctx, "Out of Stock", body, data)
	e.metrics.StockAlerts.Inc()
	e.publish(ctx, models.EventOutOfStock, med.MedicationID, body)
	log.Printf("Sent out of stock alert for %s", name)
}

func (e *Evaluator) publish(ctx context.Context, kind, medID, message string) {
	err := e.events.PublishEvent(ctx, models.Event{
		Kind:         kind,
		MedicationID: medID,
		Message:      message,
		CreatedAt:    e.now().UTC(),
	})
	if err != nil {
		log.Printf("Failed to publish %s event: %v", kind, err)
	}
}
