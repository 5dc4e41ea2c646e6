package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client events
	TypeCacheRebuilt   MessageType = "holidays.cache_rebuilt"
	TypeRulesChanged   MessageType = "rules.changed"
	TypeRegionsChanged MessageType = "regions.changed"
	TypeNotification   MessageType = "notification"

	// Client -> Server commands
	TypePing MessageType = "ping"

	// Server -> Client responses
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message is the envelope of every WebSocket frame.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// CacheRebuiltPayload announces a newly published holiday cache.
type CacheRebuiltPayload struct {
	Generation uint64   `json:"generation"`
	FocusYear  int      `json:"focus_year"`
	Regions    []string `json:"regions"`
}

// RuleChangedPayload summarizes the change-log entry of a rule mutation.
type RuleChangedPayload struct {
	EntryID     string    `json:"entry_id"`
	RuleID      string    `json:"rule_id"`
	RuleName    string    `json:"rule_name"`
	Region      string    `json:"region"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	Timestamp   time.Time `json:"timestamp"`
}

// RegionsChangedPayload carries the new region selection.
type RegionsChangedPayload struct {
	Regions []string `json:"regions"`
}

type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

// PongPayload answers a client ping.
type PongPayload struct {
	ServerTime time.Time `json:"server_time"`
}
