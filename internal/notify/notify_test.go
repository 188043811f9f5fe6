package notify

// Shared fakes for the notify package tests.

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"

	"medtracker-go/internal/metrics"
	"medtracker-go/internal/models"
	"medtracker-go/internal/store"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewWith(prometheus.NewRegistry(), "medtracker_test")
}

type fakeSubStore struct {
	subs    []models.PushSubscription
	listErr error
	removed []string
}

func (f *fakeSubStore) UpsertSubscription(ctx context.Context, sub models.PushSubscription) error {
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeSubStore) GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subs, nil
}

func (f *fakeSubStore) RemoveSubscriptions(ctx context.Context, endpoints []string) error {
	f.removed = append(f.removed, endpoints...)
	kept := f.subs[:0]
	for _, sub := range f.subs {
		dead := false
		for _, endpoint := range endpoints {
			if sub.Endpoint == endpoint {
				dead = true
				break
			}
		}
		if !dead {
			kept = append(kept, sub)
		}
	}
	f.subs = kept
	return nil
}

type fakeMedStore struct {
	meds []models.MedicationSetting
}

func (f *fakeMedStore) GetMedication(ctx context.Context, medID string) (models.MedicationSetting, error) {
	for _, med := range f.meds {
		if med.MedicationID == medID {
			return med, nil
		}
	}
	return models.MedicationSetting{}, store.ErrMedicationNotFound
}

func (f *fakeMedStore) GetMedications(ctx context.Context, reminderOnly bool) ([]models.MedicationSetting, error) {
	meds := []models.MedicationSetting{}
	for _, med := range f.meds {
		if !reminderOnly || med.ReminderEnabled {
			meds = append(meds, med)
		}
	}
	return meds, nil
}

func (f *fakeMedStore) UpsertMedication(ctx context.Context, med models.MedicationSetting) error {
	for i, existing := range f.meds {
		if existing.MedicationID == med.MedicationID {
			f.meds[i] = med
			return nil
		}
	}
	f.meds = append(f.meds, med)
	return nil
}

func (f *fakeMedStore) GetLowStock(ctx context.Context, includeEmpty bool) ([]models.MedicationSetting, error) {
	meds := []models.MedicationSetting{}
	for _, med := range f.meds {
		if med.CurrentStock > med.LowStockThreshold {
			continue
		}
		if med.CurrentStock <= 0 && !includeEmpty {
			continue
		}
		meds = append(meds, med)
	}
	return meds, nil
}

func (f *fakeMedStore) DecrementStock(ctx context.Context, medID string) error {
	for i := range f.meds {
		if f.meds[i].MedicationID == medID {
			f.meds[i].CurrentStock--
		}
	}
	return nil
}

type fakeDoseStore struct {
	todayCounts    map[string]int
	countErr       error
	doses          []models.DoseLog
	reminderEvents []models.ReminderEvent
}

func (f *fakeDoseStore) AddDose(ctx context.Context, medID, ip, agent, notes string) (models.DoseLog, error) {
	dose := models.DoseLog{ID: len(f.doses) + 1, MedicationID: medID, IPAddress: ip, UserAgent: agent, Notes: notes}
	f.doses = append(f.doses, dose)
	return dose, nil
}

func (f *fakeDoseStore) CountDosesToday(ctx context.Context, medID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.todayCounts[medID], nil
}

func (f *fakeDoseStore) GetTodayLogs(ctx context.Context, medID string) ([]models.DoseLog, error) {
	return nil, nil
}

func (f *fakeDoseStore) GetRecentCounts(ctx context.Context, medID string, days int) ([]models.DayCount, error) {
	return nil, nil
}

func (f *fakeDoseStore) GetHistory(ctx context.Context, medID string, days int) ([]models.HistoryDay, error) {
	return nil, nil
}

func (f *fakeDoseStore) AddReminderEvent(ctx context.Context, medID, kind string) error {
	f.reminderEvents = append(f.reminderEvents, models.ReminderEvent{MedicationID: medID, Kind: kind})
	return nil
}

type fakeEventPublisher struct {
	events []models.Event
}

func (f *fakeEventPublisher) PublishEvent(ctx context.Context, event models.Event) error {
	f.events = append(f.events, event)
	return nil
}

// pushResponse builds a push service response with the given status.
func pushResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
	}
}

// staticSend returns a send stub that always answers with status and counts
// its calls through calls.
func staticSend(status int, calls *int) sendFunc {
	return func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		*calls++
		return pushResponse(status), nil
	}
}

func newTestDispatcher(subs store.SubscriptionStore, send sendFunc) *Dispatcher {
	d := NewDispatcher(subs, "test-private-key", "test-public-key", "mailto:test@localhost", newTestMetrics())
	if send != nil {
		d.send = send
	}
	return d
}
