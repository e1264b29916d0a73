package model

import (
	"time"
)

const (
	EventTypeAccessAttempt = "access_attempt"
	EventTypeHeartbeat     = "heartbeat"
	EventTypeSelfTest      = "self_test"
	EventTypeUnrecognized  = "unrecognized"
)

// TerminalEvent is the immutable record of one webhook delivery from a
// terminal. It is written before any validation happens so the trail is
// complete even when the payload is garbage.
type TerminalEvent struct {
	ID         string     `json:"id,omitempty" bson:"_id,omitempty"`
	TerminalID string     `json:"terminal_id,omitempty" bson:"terminal_id,omitempty"`
	EventType  string     `json:"event_type" bson:"event_type"`
	Token      string     `json:"token,omitempty" bson:"token,omitempty"`
	MACAddress string     `json:"mac_address,omitempty" bson:"mac_address,omitempty"`
	DeviceIP   string     `json:"device_ip,omitempty" bson:"device_ip,omitempty"`
	RemoteAddr string     `json:"remote_addr,omitempty" bson:"remote_addr,omitempty"`
	EventTime  *time.Time `json:"event_time,omitempty" bson:"event_time,omitempty"`
	Stale      bool       `json:"stale,omitempty" bson:"stale,omitempty"`
	RawPayload []byte     `json:"-" bson:"raw_payload,omitempty"`
	ReceivedAt time.Time  `json:"received_at" bson:"received_at"`
}
