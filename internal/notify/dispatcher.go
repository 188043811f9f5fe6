package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"medtracker-go/internal/metrics"
	"medtracker-go/internal/store"
)

// Payload is the notification body the service worker renders.
type Payload struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Icon               string         `json:"icon"`
	Badge              string         `json:"badge"`
	Tag                string         `json:"tag"`
	RequireInteraction bool           `json:"requireInteraction"`
	Actions            []Action       `json:"actions"`
	Data               map[string]any `json:"data"`
}

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

type sendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// Dispatcher fans one notification out to every stored push subscription,
// signing each send with the server's VAPID key-pair. Dead endpoints are
// pruned after the fan-out.
type Dispatcher struct {
	subs       store.SubscriptionStore
	privateKey string
	publicKey  string
	subscriber string
	metrics    *metrics.Metrics
	send       sendFunc
}

func NewDispatcher(subs store.SubscriptionStore, privateKey, publicKey, subscriber string, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		subs:       subs,
		privateKey: privateKey,
		publicKey:  publicKey,
		subscriber: subscriber,
		metrics:    m,
		send:       webpush.SendNotification,
	}
}

// PublicKey returns the advertised VAPID public key.
func (d *Dispatcher) PublicKey() string {
	return d.publicKey
}

// Send delivers one notification to every subscription. It reports true when
// at least one delivery succeeded, or trivially when there was nobody to
// deliver to. One subscription's failure never aborts the rest.
func (d *Dispatcher) Send(ctx context.Context, title, body string, data map[string]any) bool {
	if d.privateKey == "" || d.publicKey == "" {
		log.Println("Cannot send push notification: VAPID keys unavailable")
		return false
	}

	subs, err := d.subs.GetSubscriptions(ctx)
	if err != nil {
		log.Printf("Failed to get subscriptions: %v", err)
		return false
	}
	if len(subs) == 0 {
		log.Println("No subscriptions available for push notification")
		return true
	}

	if data == nil {
		data = map[string]any{}
	}
	message, err := json.Marshal(Payload{
		Title:              title,
		Body:               body,
		Icon:               "/static/icon-192.png",
		Badge:              "/static/badge-72.png",
		Tag:                "medication-reminder",
		RequireInteraction: true,
		Actions: []Action{
			{Action: "taken", Title: "Taken"},
			{Action: "snooze", Title: "Snooze 15m"},
		},
		Data: data,
	})
	if err != nil {
		log.Printf("Failed to encode notification payload: %v", err)
		return false
	}

	successful := 0
	var stale []string

	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := d.send(message, s, &webpush.Options{
			Subscriber:      d.subscriber,
			VAPIDPublicKey:  d.publicKey,
			VAPIDPrivateKey: d.privateKey,
			TTL:             30,
		})
		if err != nil {
			// Network-level failure: keep the subscription, the next
			// scheduled cycle retries naturally.
			log.Printf("Failed to send push to %s: %v", sub.Endpoint, err)
			d.metrics.PushDeliveries.WithLabelValues(metrics.OutcomeTransient).Inc()
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			successful++
			d.metrics.PushDeliveries.WithLabelValues(metrics.OutcomeDelivered).Inc()
		case terminalStatus(resp.StatusCode):
			stale = append(stale, sub.Endpoint)
			d.metrics.PushDeliveries.WithLabelValues(metrics.OutcomeTerminal).Inc()
			log.Printf("Push endpoint dead (status %d), removing: %s", resp.StatusCode, sub.Endpoint)
		default:
			d.metrics.PushDeliveries.WithLabelValues(metrics.OutcomeTransient).Inc()
			log.Printf("Push delivery failed with status %d for %s", resp.StatusCode, sub.Endpoint)
		}
	}

	if len(stale) > 0 {
		if err := d.subs.RemoveSubscriptions(ctx, stale); err != nil {
			log.Printf("Failed to remove invalid subscriptions: %v", err)
		} else {
			d.metrics.SubscriptionsRemoved.Add(float64(len(stale)))
			log.Printf("Removed %d invalid subscriptions", len(stale))
		}
	}

	log.Printf("Sent notifications to %d/%d subscribers", successful, len(subs))
	return successful > 0
}

// terminalStatus reports whether a push service response means this endpoint
// will never succeed again: subscription gone, payload too large, or the
// endpoint rate-limiting this sender.
func terminalStatus(code int) bool {
	switch code {
	case http.StatusGone, http.StatusRequestEntityTooLarge, http.StatusTooManyRequests:
		return true
	}
	return false
}
