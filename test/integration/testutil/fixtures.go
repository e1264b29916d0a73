package testutil

import (
	"time"

	"medaccess/pkg/model"
)

// TestAPIToken is seeded into the Integrations collection before tests call
// the partner API. 64 hex characters, same shape as production tokens.
const TestAPIToken = "3f8a2c913d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8"

// ActiveIntegration is the seed document that makes TestAPIToken valid.
func ActiveIntegration() model.Integration {
	return model.Integration{
		Name:      "integration-tests",
		APIToken:  TestAPIToken,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

type AppointmentRequestBuilder struct {
	req model.CreateAppointmentRequest
}

func NewAppointmentRequestBuilder() *AppointmentRequestBuilder {
	return &AppointmentRequestBuilder{
		req: model.CreateAppointmentRequest{
			FirstName:         "Dana",
			LastName:          "Levi",
			MedicalCardNumber: "MC-483920",
			Phone:             "+972501234567",
		},
	}
}

func (b *AppointmentRequestBuilder) WithPatient(first, last string) *AppointmentRequestBuilder {
	b.req.FirstName = first
	b.req.LastName = last
	return b
}

func (b *AppointmentRequestBuilder) WithCardNumber(card string) *AppointmentRequestBuilder {
	b.req.MedicalCardNumber = card
	return b
}

func (b *AppointmentRequestBuilder) WithPhone(phone string) *AppointmentRequestBuilder {
	b.req.Phone = phone
	return b
}

func (b *AppointmentRequestBuilder) WithValidFrom(at time.Time) *AppointmentRequestBuilder {
	b.req.ValidFrom = &at
	return b
}

func (b *AppointmentRequestBuilder) WithDurationHours(hours int) *AppointmentRequestBuilder {
	b.req.DurationHours = hours
	return b
}

func (b *AppointmentRequestBuilder) Build() model.CreateAppointmentRequest {
	return b.req
}

func ValidAppointmentRequest() model.CreateAppointmentRequest {
	return NewAppointmentRequestBuilder().Build()
}

type TerminalBuilder struct {
	terminal model.Terminal
}

func NewTerminalBuilder() *TerminalBuilder {
	return &TerminalBuilder{
		terminal: model.Terminal{
			Name:   "Main entrance",
			IP:     "10.0.8.40",
			Mode:   model.TerminalModeEntry,
			DoorNo: 1,
		},
	}
}

func (b *TerminalBuilder) WithName(name string) *TerminalBuilder {
	b.terminal.Name = name
	return b
}

func (b *TerminalBuilder) WithIP(ip string) *TerminalBuilder {
	b.terminal.IP = ip
	return b
}

func (b *TerminalBuilder) WithMAC(mac string) *TerminalBuilder {
	b.terminal.MACAddress = mac
	return b
}

func (b *TerminalBuilder) WithMode(mode string) *TerminalBuilder {
	b.terminal.Mode = mode
	return b
}

func (b *TerminalBuilder) WithDoorNo(doorNo int) *TerminalBuilder {
	b.terminal.DoorNo = doorNo
	return b
}

func (b *TerminalBuilder) Build() model.Terminal {
	return b.terminal
}

func ValidTerminal() model.Terminal {
	return NewTerminalBuilder().Build()
}

// AccessAttemptPayload is the JSON envelope a terminal POSTs after a QR scan.
// The top-level ipAddress lets the receiver resolve the sending terminal.
func AccessAttemptPayload(token string) map[string]interface{} {
	return map[string]interface{}{
		"eventType": "AccessControllerEvent",
		"ipAddress": "10.0.8.40",
		"AccessControllerEvent": map[string]interface{}{
			"qrCode":   token,
			"dateTime": time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// HeartbeatPayload is the keepalive terminals send every few minutes.
func HeartbeatPayload() map[string]interface{} {
	return map[string]interface{}{
		"eventType": "heartbeat",
		"ipAddress": "10.0.8.40",
	}
}
