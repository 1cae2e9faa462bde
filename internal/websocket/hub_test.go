package websocket

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestShouldBroadcastEvent(t *testing.T) {
	t.Run("ConfigGatesEachType", func(t *testing.T) {
		hub := NewHub(&HubConfig{
			BroadcastDetections: true,
			BroadcastBatches:    false,
			BroadcastSystem:     true,
		}, zap.NewNop())

		if !hub.shouldBroadcastEvent(EventTypeDetection) {
			t.Error("Detection events should be broadcast")
		}
		if hub.shouldBroadcastEvent(EventTypeBatchProgress) {
			t.Error("Batch events should not be broadcast")
		}
		if !hub.shouldBroadcastEvent(EventTypeSystemStatus) {
			t.Error("System events should be broadcast")
		}
		if hub.shouldBroadcastEvent(EventTypeConnection) {
			t.Error("Connection events should not be broadcast")
		}
	})

	t.Run("NilConfig", func(t *testing.T) {
		hub := NewHub(nil, zap.NewNop())
		if hub.shouldBroadcastEvent(EventTypeDetection) {
			t.Error("Hub without config should broadcast nothing")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())
		if hub.shouldBroadcastEvent("something_else") {
			t.Error("Unknown event types should not be broadcast")
		}
	})
}

func TestShouldSendToClient(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())
	event := Event{Type: EventTypeDetection, Timestamp: time.Now()}

	t.Run("NoSubscriptionReceivesAll", func(t *testing.T) {
		client := &Client{ID: "c1"}
		if !hub.shouldSendToClient(client, event) {
			t.Error("Client without subscription should receive all events")
		}
	})

	t.Run("MatchingSubscription", func(t *testing.T) {
		client := &Client{
			ID:           "c2",
			Subscription: &SubscriptionRequest{Events: []EventType{EventTypeDetection}},
		}
		if !hub.shouldSendToClient(client, event) {
			t.Error("Client subscribed to detections should receive them")
		}
	})

	t.Run("NonMatchingSubscription", func(t *testing.T) {
		client := &Client{
			ID:           "c3",
			Subscription: &SubscriptionRequest{Events: []EventType{EventTypeBatchProgress}},
		}
		if hub.shouldSendToClient(client, event) {
			t.Error("Client subscribed to batches should not receive detections")
		}
	})
}

func TestBroadcastEventDelivery(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastDetections: true}, zap.NewNop())
	go hub.Run()

	client := &Client{
		ID:   "c1",
		Send: make(chan Event, 8),
	}
	hub.register <- client

	hub.BroadcastEvent(Event{
		Type:      EventTypeDetection,
		Timestamp: time.Now(),
		Data:      DetectionEvent{RecordID: "r1", IsPII: true},
	})

	select {
	case event := <-client.Send:
		if event.Type != EventTypeDetection {
			t.Errorf("Unexpected event type: %v", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("Event was not delivered to the client")
	}
}

func TestParseCredentials(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		// base64("user:pass")
		user, pass, ok := parseCredentials("dXNlcjpwYXNz")
		if !ok || user != "user" || pass != "pass" {
			t.Errorf("parseCredentials = %q, %q, %v", user, pass, ok)
		}
	})

	t.Run("NotBase64", func(t *testing.T) {
		if _, _, ok := parseCredentials("%%%"); ok {
			t.Error("Invalid base64 accepted")
		}
	})

	t.Run("MissingSeparator", func(t *testing.T) {
		// base64("userpass")
		if _, _, ok := parseCredentials("dXNlcnBhc3M="); ok {
			t.Error("Credentials without separator accepted")
		}
	})
}
