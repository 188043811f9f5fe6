package models

import (
	"encoding/json"
	"errors"
	"time"
)

type PushSubscription struct {
	ID        int       `json:"id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth      string    `json:"keys_auth"`   // Mapped from keys.auth
	CreatedAt time.Time `json:"created_at"`
}

var ErrInvalidSubscription = errors.New("invalid push subscription")

// ParseSubscription validates the raw JSON a browser hands back from
// PushManager.subscribe. Malformed payloads are rejected here so they never
// reach the store.
func ParseSubscription(raw []byte) (PushSubscription, error) {
	var req struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256dh string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return PushSubscription{}, ErrInvalidSubscription
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		return PushSubscription{}, ErrInvalidSubscription
	}

	return PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}, nil
}
