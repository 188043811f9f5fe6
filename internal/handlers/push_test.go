package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVAPIDKey(t *testing.T) {
	f := newFixture()

	rec, resp := doRequest(t, f.handler.VAPIDKeyHandler, http.MethodGet, "/vapid-public-key", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "test-public-key", resp["public_key"])
}

func TestSubscribeStoresSubscription(t *testing.T) {
	f := newFixture()

	body := `{"endpoint":"https://push.example/abc","keys":{"p256dh":"pkey","auth":"akey"}}`
	rec, resp := doRequest(t, f.handler.SubscribeHandler, http.MethodPost, "/subscribe", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])

	require.Len(t, f.store.subs, 1)
	assert.Equal(t, "https://push.example/abc", f.store.subs[0].Endpoint)
}

func TestSubscribeReplacesSameEndpoint(t *testing.T) {
	f := newFixture()

	first := `{"endpoint":"https://push.example/abc","keys":{"p256dh":"old","auth":"old"}}`
	second := `{"endpoint":"https://push.example/abc","keys":{"p256dh":"new","auth":"new"}}`
	doRequest(t, f.handler.SubscribeHandler, http.MethodPost, "/subscribe", first)
	doRequest(t, f.handler.SubscribeHandler, http.MethodPost, "/subscribe", second)

	require.Len(t, f.store.subs, 1, "re-subscribing replaces, never duplicates")
	assert.Equal(t, "new", f.store.subs[0].P256dh)
}

func TestSubscribeRejectsMalformedPayload(t *testing.T) {
	f := newFixture()

	rec, resp := doRequest(t, f.handler.SubscribeHandler, http.MethodPost, "/subscribe", `{"endpoint":""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Empty(t, f.store.subs)
}

func TestSubscribeRejectsNonPost(t *testing.T) {
	f := newFixture()

	rec, _ := doRequest(t, f.handler.SubscribeHandler, http.MethodGet, "/subscribe", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTestNotificationDefaults(t *testing.T) {
	f := newFixture()

	rec, resp := doRequest(t, f.handler.TestNotificationHandler, http.MethodPost, "/test-notification", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	require.Len(t, f.notifier.titles, 1)
	assert.Equal(t, "MedTracker Test", f.notifier.titles[0])
}

func TestTestNotificationReportsFailure(t *testing.T) {
	f := newFixture()
	f.notifier.ok = false

	_, resp := doRequest(t, f.handler.TestNotificationHandler, http.MethodPost, "/test-notification",
		`{"title":"Hello","body":"World"}`)

	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Failed to send notification", resp["message"])
}
