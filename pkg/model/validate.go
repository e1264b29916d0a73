package model

// ValidateQRRequest deliberately has no required tags: a missing token is a
// deny (unknown_token), not a 400.
type ValidateQRRequest struct {
	Token      string `json:"token"`
	TerminalID string `json:"terminal_id,omitempty"`
}

type ValidateQRResponse struct {
	Allow       bool                `json:"allow"`
	Reason      string              `json:"reason"`
	Appointment *AppointmentSummary `json:"appointment,omitempty"`
}

// EventAck is the body returned to terminals on the webhook endpoint. The
// endpoint answers 200 for every authenticated delivery; AuthResult follows
// the vendor convention (0 pass, 1 deny) and is present only for access
// attempts that were actually validated.
type EventAck struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	AuthResult *int   `json:"authResult,omitempty"`
}

const AckStatusOK = "ok"

func AckOK() EventAck {
	return EventAck{Status: AckStatusOK}
}

func AckMalformed() EventAck {
	return EventAck{Status: AckStatusOK, Reason: ReasonMalformed}
}

func AckDecision(d *AccessDecision) EventAck {
	result := 1
	if d.Allowed() {
		result = 0
	}
	return EventAck{Status: AckStatusOK, Reason: d.Reason, AuthResult: &result}
}
