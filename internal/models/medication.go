package models

import "time"

const defaultScheduleTime = "09:00"

type MedicationSetting struct {
	ID                int       `json:"id"`
	MedicationID      string    `json:"medication_id"`
	Name              string    `json:"name"`
	Dosage            string    `json:"dosage"`
	ScheduleTime      string    `json:"schedule_time"` // local time-of-day, "HH:MM"
	ReminderEnabled   bool      `json:"reminder_enabled"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	CurrentStock      int       `json:"current_stock"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ScheduleClock parses the stored schedule into an hour and minute. Values
// like "9:00" and "09:00" both parse; anything unusable falls back to 09:00.
func (m *MedicationSetting) ScheduleClock() (hour, minute int) {
	t, err := time.Parse("15:04", m.ScheduleTime)
	if err != nil {
		t, _ = time.Parse("15:04", defaultScheduleTime)
	}
	return t.Hour(), t.Minute()
}

// ValidScheduleTime reports whether value is a parseable "HH:MM" time-of-day.
func ValidScheduleTime(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

type DoseLog struct {
	ID           int       `json:"id"`
	MedicationID string    `json:"medication_id"`
	Timestamp    time.Time `json:"timestamp"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// DayCount is a per-day dose tally for the recent-activity view.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// HistoryDay is one calendar day in the history view, with the times each
// dose was logged.
type HistoryDay struct {
	Date       string   `json:"date"`
	DosesTaken int      `json:"doses_taken"`
	Times      []string `json:"times"`
}

// ReminderEvent records that the system sent a notification. It lives in its
// own table so reminders never read as doses in the adherence log.
type ReminderEvent struct {
	ID           int       `json:"id"`
	MedicationID string    `json:"medication_id"`
	Kind         string    `json:"kind"`
	CreatedAt    time.Time `json:"created_at"`
}
