package model

import (
	"time"
)

const (
	DecisionAllow = "allow"
	DecisionDeny  = "deny"
)

const (
	ReasonAllowed          = "allowed"
	ReasonUnknownToken     = "unknown_token"
	ReasonAlreadyUsed      = "already_used"
	ReasonOutOfWindow      = "out_of_window"
	ReasonStoreUnavailable = "store_unavailable"
	ReasonRevoked          = "revoked"
	ReasonMalformed        = "malformed"
)

// AccessDecision is one append-only audit row. Every validation attempt
// produces exactly one, whatever the outcome.
type AccessDecision struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty"`
	Token         string    `json:"token" bson:"token"`
	TerminalID    string    `json:"terminal_id,omitempty" bson:"terminal_id,omitempty"`
	AppointmentID string    `json:"appointment_id,omitempty" bson:"appointment_id,omitempty"`
	Decision      string    `json:"decision" bson:"decision"`
	Reason        string    `json:"reason" bson:"reason"`
	ObservedAt    time.Time `json:"observed_at" bson:"observed_at"`
	DecidedAt     time.Time `json:"decided_at" bson:"decided_at"`
}

func (d *AccessDecision) Allowed() bool {
	return d.Decision == DecisionAllow
}
