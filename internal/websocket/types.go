package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/raaihank/pii-sentinel/internal/engine"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypeDetection represents a PII detection event
	EventTypeDetection EventType = "pii_detection"
	// EventTypeBatchProgress represents batch pipeline progress
	EventTypeBatchProgress EventType = "batch_progress"
	// EventTypeSystemStatus represents a system status event
	EventTypeSystemStatus EventType = "system_status"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// DetectionEvent describes one classified record. Only finding metadata is
// broadcast, never field values.
type DetectionEvent struct {
	RequestID    string           `json:"request_id,omitempty"`
	RecordID     string           `json:"record_id,omitempty"`
	ClientIP     string           `json:"client_ip,omitempty"`
	IsPII        bool             `json:"is_pii"`
	Findings     []engine.Finding `json:"findings,omitempty"`
	ProcessingMS float64          `json:"processing_ms"`
}

// BatchProgressEvent describes batch pipeline progress
type BatchProgressEvent struct {
	File             string  `json:"file"`
	RecordsProcessed int64   `json:"records_processed"`
	PIIRecords       int64   `json:"pii_records"`
	ParseFailures    int64   `json:"parse_failures"`
	RatePerSec       float64 `json:"rate_per_sec"`
}

// SystemStatusEvent represents system status information
type SystemStatusEvent struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalDetections  int64  `json:"total_detections"`
	ActiveRules      int    `json:"active_rules"`
	ConnectedClients int    `json:"connected_clients"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SubscriptionRequest represents a client subscription request
type SubscriptionRequest struct {
	Events []EventType `json:"events"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID           string
	Conn         *websocket.Conn
	Send         chan Event
	Subscription *SubscriptionRequest
	ConnectedAt  time.Time
	LastPing     time.Time
	IP           string
	UserAgent    string
}
