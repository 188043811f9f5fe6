package handlers

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"medtracker-go/internal/metrics"
	"medtracker-go/internal/models"
	"medtracker-go/internal/store"
)

// Notifier is the slice of the push dispatcher the HTTP layer needs.
type Notifier interface {
	Send(ctx context.Context, title, body string, data map[string]any) bool
	PublicKey() string
}

// SchedulerStatus exposes the background loop's state to the health check.
type SchedulerStatus interface {
	Running() bool
}

type Handler struct {
	Store     store.Store
	Events    store.EventStore
	Notifier  Notifier
	Scheduler SchedulerStatus
	Metrics   *metrics.Metrics
	AuthToken string
}

func NewHandler(s store.Store, events store.EventStore, notifier Notifier, scheduler SchedulerStatus,
	m *metrics.Metrics, authToken string) *Handler {
	return &Handler{
		Store:     s,
		Events:    events,
		Notifier:  notifier,
		Scheduler: scheduler,
		Metrics:   m,
		AuthToken: authToken,
	}
}

// TrackHandler logs a medication intake, triggered by an NFC tap.
// URL format: /track?med_id=daily_pill&token=auth_token&notes=optional
func (h *Handler) TrackHandler(w http.ResponseWriter, r *http.Request) {
	medID := r.URL.Query().Get("med_id")
	if medID == "" {
		medID = "daily_pill"
	}
	notes := r.URL.Query().Get("notes")

	if !h.verifyToken(r.URL.Query().Get("token")) {
		jsonError(w, http.StatusUnauthorized, "Invalid authentication token")
		return
	}

	ip, agent := clientInfo(r)

	dose, err := h.Store.AddDose(r.Context(), medID, ip, agent, notes)
	if err != nil {
		log.Printf("Failed to log dose: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to log medication intake")
		return
	}

	// Best effort; the intake is already logged.
	if err := h.Store.DecrementStock(r.Context(), medID); err != nil {
		log.Printf("Failed to decrement stock for %s: %v", medID, err)
	}

	h.Metrics.DosesTracked.Inc()
	h.publishEvent(r, models.Event{
		Kind:         models.EventDose,
		MedicationID: medID,
		Message:      "Dose logged for " + medID,
		CreatedAt:    dose.Timestamp.UTC(),
	})

	log.Printf("Medication tracked: %s from %s", medID, ip)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":       true,
		"message":       "Medication intake logged successfully",
		"timestamp":     dose.Timestamp.Format(time.RFC3339),
		"medication_id": medID,
	})
}

// StatusHandler returns today's medication status and recent logs.
func (h *Handler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	medID := r.URL.Query().Get("med_id")
	if medID == "" {
		medID = "daily_pill"
	}

	todayLogs, err := h.Store.GetTodayLogs(r.Context(), medID)
	if err != nil {
		log.Printf("Failed to get today's logs: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	recent, err := h.Store.GetRecentCounts(r.Context(), medID, 7)
	if err != nil {
		log.Printf("Failed to get recent counts: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	resp := map[string]any{
		"success":     true,
		"today_taken": len(todayLogs),
		"today_logs":  todayLogs,
		"recent_logs": recent,
		"medication":  nil,
		"low_stock":   false,
	}

	med, err := h.Store.GetMedication(r.Context(), medID)
	if err == nil {
		resp["medication"] = med
		resp["low_stock"] = med.CurrentStock <= med.LowStockThreshold
	} else if !errors.Is(err, store.ErrMedicationNotFound) {
		log.Printf("Failed to get medication %s: %v", medID, err)
		jsonError(w, http.StatusInternalServerError, "Failed to get status")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// SettingsHandler reads or updates one medication's settings row.
func (h *Handler) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPost:
		h.updateSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	medID := r.URL.Query().Get("med_id")
	if medID == "" {
		medID = "daily_pill"
	}

	resp := map[string]any{"success": true, "medication": nil}

	med, err := h.Store.GetMedication(r.Context(), medID)
	if err == nil {
		resp["medication"] = med
	} else if !errors.Is(err, store.ErrMedicationNotFound) {
		log.Printf("Failed to get medication %s: %v", medID, err)
		jsonError(w, http.StatusInternalServerError, "Failed to get settings")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MedicationID      string `json:"medication_id"`
		Name              string `json:"name"`
		Dosage            string `json:"dosage"`
		ScheduleTime      string `json:"schedule_time"`
		ReminderEnabled   *bool  `json:"reminder_enabled"`
		LowStockThreshold *int   `json:"low_stock_threshold"`
		CurrentStock      *int   `json:"current_stock"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	med := models.MedicationSetting{
		MedicationID:      req.MedicationID,
		Name:              req.Name,
		Dosage:            req.Dosage,
		ScheduleTime:      req.ScheduleTime,
		ReminderEnabled:   true,
		LowStockThreshold: 7,
		CurrentStock:      30,
	}
	if med.MedicationID == "" {
		med.MedicationID = "daily_pill"
	}
	if med.Name == "" {
		med.Name = "Daily Medication"
	}
	if med.Dosage == "" {
		med.Dosage = "1 pill"
	}
	if med.ScheduleTime == "" {
		med.ScheduleTime = "09:00"
	}
	if req.ReminderEnabled != nil {
		med.ReminderEnabled = *req.ReminderEnabled
	}
	if req.LowStockThreshold != nil {
		med.LowStockThreshold = *req.LowStockThreshold
	}
	if req.CurrentStock != nil {
		med.CurrentStock = *req.CurrentStock
	}

	if !models.ValidScheduleTime(med.ScheduleTime) {
		jsonError(w, http.StatusBadRequest, "schedule_time must be HH:MM")
		return
	}
	if med.LowStockThreshold < 0 || med.CurrentStock < 0 {
		jsonError(w, http.StatusBadRequest, "stock values must not be negative")
		return
	}

	if err := h.Store.UpsertMedication(r.Context(), med); err != nil {
		log.Printf("Failed to update settings: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Settings updated successfully",
	})
}

// HistoryHandler returns per-day dose counts for the calendar view.
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	medID := r.URL.Query().Get("med_id")
	if medID == "" {
		medID = "daily_pill"
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 365 {
			days = n
		}
	}

	history, err := h.Store.GetHistory(r.Context(), medID, days)
	if err != nil {
		log.Printf("Failed to get history: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to get history")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"history": history,
	})
}

// HealthHandler reports server, database, and scheduler health.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	dbOK := h.Store.Ping(r.Context()) == nil

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":        "healthy",
		"timestamp":     time.Now().Format(time.RFC3339),
		"database":      dbOK,
		"notifications": h.Scheduler.Running(),
	})
}

// SSEHandler streams live events to the web UI.
func (h *Handler) SSEHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	pubsub := h.Events.Subscribe(r.Context())
	defer pubsub.Close()

	ch := pubsub.Channel()

	fmt.Fprintf(w, "data: %s\n\n", "connected")
	w.(http.Flusher).Flush()

	for {
		select {
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg.Payload)
			w.(http.Flusher).Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// RecentEventsHandler returns the rolling live feed timeline, newest first.
func (h *Handler) RecentEventsHandler(w http.ResponseWriter, r *http.Request) {
	events, err := h.Events.GetRecentEvents(r.Context())
	if err != nil {
		log.Printf("Failed to get recent events: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to get events")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"events":  events,
		"count":   len(events),
	})
}

func (h *Handler) verifyToken(token string) bool {
	return token != "" && hmac.Equal([]byte(token), []byte(h.AuthToken))
}

func (h *Handler) publishEvent(r *http.Request, event models.Event) {
	if err := h.Events.PublishEvent(r.Context(), event); err != nil {
		log.Printf("Failed to publish %s event: %v", event.Kind, err)
	}
}

// clientInfo extracts the caller's address and user agent, preferring the
// X-Real-IP header set by a reverse proxy.
func clientInfo(r *http.Request) (ip, agent string) {
	ip = r.Header.Get("X-Real-IP")
	if ip == "" {
		ip = r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
	}
	return ip, r.Header.Get("User-Agent")
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
}
