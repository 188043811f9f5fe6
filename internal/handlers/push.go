package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"medtracker-go/internal/models"
)

// VAPIDKeyHandler returns the public VAPID key browsers subscribe against.
func (h *Handler) VAPIDKeyHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"public_key": h.Notifier.PublicKey(),
	})
}

// SubscribeHandler saves a push subscription
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	sub, err := models.ParseSubscription(body)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid subscription payload")
		return
	}

	if err := h.Store.UpsertSubscription(r.Context(), sub); err != nil {
		log.Printf("Failed to save subscription: %v", err)
		jsonError(w, http.StatusInternalServerError, "Failed to save subscription")
		return
	}

	log.Printf("Added/updated push subscription: %.50s...", sub.Endpoint)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": "Subscription successful",
	})
}

// TestNotificationHandler sends a test notification (for debugging).
func (h *Handler) TestNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	// An empty body is fine, defaults apply.
	json.NewDecoder(r.Body).Decode(&req)

	if req.Title == "" {
		req.Title = "MedTracker Test"
	}
	if req.Body == "" {
		req.Body = "This is a test notification"
	}

	ok := h.Notifier.Send(r.Context(), req.Title, req.Body, map[string]any{
		"kind": models.EventTest,
	})

	message := "Test notification sent"
	if !ok {
		message = "Failed to send notification"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": ok,
		"message": message,
	})
}
