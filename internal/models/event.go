package models

import "time"

// Event kinds pushed to the live feed.
const (
	EventDose       = "dose"
	EventReminder   = "reminder"
	EventLowStock   = "low_stock"
	EventOutOfStock = "out_of_stock"
	EventTest       = "test"
)

// Event is a live feed entry streamed to the web UI over SSE.
type Event struct {
	Kind         string    `json:"kind"`
	MedicationID string    `json:"medication_id"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}
