package service

import (
	"context"
	"fmt"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/internal/access/validator"
	"medaccess/internal/hikvision"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/logger"
	"medaccess/pkg/model"
	"net/http"
	"testing"
	"time"
)

// ────────────────────────────────────────────────
// Stub device client
// ────────────────────────────────────────────────

type stubDeviceClient struct {
	deviceInfoFunc func(ctx context.Context) (*hikvision.DeviceInfo, error)
	openDoorFunc   func(ctx context.Context, doorNo int) error
	doorCalls      int
}

func (s *stubDeviceClient) DeviceInfo(ctx context.Context) (*hikvision.DeviceInfo, error) {
	if s.deviceInfoFunc != nil {
		return s.deviceInfoFunc(ctx)
	}
	return &hikvision.DeviceInfo{Model: "DS-K1T342MFWX", SerialNumber: "SN001"}, nil
}

func (s *stubDeviceClient) OpenDoor(ctx context.Context, doorNo int) error {
	s.doorCalls++
	if s.openDoorFunc != nil {
		return s.openDoorFunc(ctx, doorNo)
	}
	return nil
}

func stubFactory(device *stubDeviceClient) DeviceFactory {
	return func(terminal *model.Terminal, timeout time.Duration) hikvision.DeviceClient {
		return device
	}
}

func newTerminalService(
	terminals *mockTerminalRepository,
	appointments *mockAppointmentRepository,
	validation ValidationService,
	device *stubDeviceClient,
) TerminalService {
	return NewTerminalService(
		terminals,
		appointments,
		validation,
		validator.NewAccessValidator(logger.NewNop()),
		stubFactory(device),
		testConfig(),
	)
}

func registeredTerminal() *model.Terminal {
	return &model.Terminal{
		ID:       "64f0000000000000000000a1",
		Name:     "Main entrance",
		IP:       "10.0.0.9",
		Username: "admin",
		Password: "door12345",
		Mode:     model.TerminalModeEntry,
		DoorNo:   2,
		Active:   true,
	}
}

// ────────────────────────────────────────────────
// Tests for Register() and Update()
// ────────────────────────────────────────────────

func TestRegister_AppliesDefaultsAndNormalizesMAC(t *testing.T) {
	var created *model.Terminal
	terminals := &mockTerminalRepository{
		createFunc: func(ctx context.Context, terminal *model.Terminal) error {
			created = terminal
			return nil
		},
	}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, &stubDeviceClient{})

	err := svc.Register(context.Background(), &model.Terminal{
		Name:       "Main entrance",
		IP:         "10.0.0.9",
		MACAddress: "24:28:FD:1A:2B:3C",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.MACAddress != "2428fd1a2b3c" {
		t.Errorf("expected normalized mac, got %q", created.MACAddress)
	}
	if created.Mode != model.TerminalModeBoth {
		t.Errorf("expected default mode both, got %s", created.Mode)
	}
	if created.DoorNo != 1 {
		t.Errorf("expected default door 1, got %d", created.DoorNo)
	}
	if !created.Active {
		t.Error("expected new terminal active")
	}
}

func TestRegister_DuplicateConflict(t *testing.T) {
	terminals := &mockTerminalRepository{
		createFunc: func(ctx context.Context, terminal *model.Terminal) error {
			return accesserrors.ErrDuplicateTerminal
		},
	}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, &stubDeviceClient{})

	err := svc.Register(context.Background(), &model.Terminal{Name: "Main entrance", IP: "10.0.0.9"})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.HTTPStatus != http.StatusConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegister_RejectsBadInput(t *testing.T) {
	svc := newTerminalService(&mockTerminalRepository{}, &mockAppointmentRepository{}, &stubValidation{}, &stubDeviceClient{})

	err := svc.Register(context.Background(), &model.Terminal{Name: "M", IP: "not-an-ip"})
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdate_NormalizesMACInPatch(t *testing.T) {
	var patched *model.TerminalUpdate
	terminals := &mockTerminalRepository{
		updateFunc: func(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error) {
			patched = patch
			return registeredTerminal(), nil
		},
	}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, &stubDeviceClient{})

	mac := "24:28:FD:1A:2B:3C"
	_, err := svc.Update(context.Background(), "64f0000000000000000000a1", &model.TerminalUpdate{MACAddress: &mac})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patched.MACAddress == nil || *patched.MACAddress != "2428fd1a2b3c" {
		t.Errorf("expected normalized mac in patch, got %v", patched.MACAddress)
	}
}

// ────────────────────────────────────────────────
// Tests for Probe() and OpenDoor()
// ────────────────────────────────────────────────

func TestProbe_RecordsUnreachable(t *testing.T) {
	terminal := registeredTerminal()
	var recorded *model.TerminalHealth
	terminals := &mockTerminalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Terminal, error) {
			return terminal, nil
		},
		recordProbeFunc: func(ctx context.Context, id string, health *model.TerminalHealth) error {
			recorded = health
			return nil
		},
	}
	device := &stubDeviceClient{
		deviceInfoFunc: func(ctx context.Context) (*hikvision.DeviceInfo, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, device)

	health, err := svc.Probe(context.Background(), terminal.ID)
	if err != nil {
		t.Fatalf("unreachable device must not error the probe: %v", err)
	}
	if health.Reachable {
		t.Error("expected reachable=false")
	}
	if health.Error == "" {
		t.Error("expected probe error message")
	}
	if recorded == nil || recorded.Reachable {
		t.Errorf("expected unreachable probe recorded, got %+v", recorded)
	}
}

func TestProbe_RecordsDeviceDetails(t *testing.T) {
	terminal := registeredTerminal()
	terminals := &mockTerminalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Terminal, error) {
			return terminal, nil
		},
	}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, &stubDeviceClient{})

	health, err := svc.Probe(context.Background(), terminal.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !health.Reachable || health.Model != "DS-K1T342MFWX" {
		t.Errorf("expected reachable probe with model, got %+v", health)
	}
}

func TestOpenDoor_UsesRegisteredDoorNumber(t *testing.T) {
	terminal := registeredTerminal()
	terminals := &mockTerminalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Terminal, error) {
			return terminal, nil
		},
	}
	var doorNo int
	device := &stubDeviceClient{
		openDoorFunc: func(ctx context.Context, n int) error {
			doorNo = n
			return nil
		},
	}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, device)

	if err := svc.OpenDoor(context.Background(), terminal.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doorNo != 2 {
		t.Errorf("expected door 2, got %d", doorNo)
	}
}

// ────────────────────────────────────────────────
// Tests for ValidateAndOpen()
// ────────────────────────────────────────────────

func TestValidateAndOpen_DenyNeverTouchesDoor(t *testing.T) {
	terminal := registeredTerminal()
	terminals := &mockTerminalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Terminal, error) {
			return terminal, nil
		},
	}
	validation := &stubValidation{decision: &model.AccessDecision{
		Decision: model.DecisionDeny,
		Reason:   model.ReasonOutOfWindow,
	}}
	device := &stubDeviceClient{}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, validation, device)

	decision, _, err := svc.ValidateAndOpen(context.Background(), terminal.ID, "ABC123XYZ789")
	if err != nil {
		t.Fatalf("a deny is a normal outcome, not an error: %v", err)
	}
	if decision.Reason != model.ReasonOutOfWindow {
		t.Errorf("expected out_of_window, got %s", decision.Reason)
	}
	if device.doorCalls != 0 {
		t.Errorf("door must stay shut on deny, got %d calls", device.doorCalls)
	}
}

func TestValidateAndOpen_AllowOpensDoor(t *testing.T) {
	terminal := registeredTerminal()
	terminals := &mockTerminalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Terminal, error) {
			return terminal, nil
		},
	}
	device := &stubDeviceClient{}
	svc := newTerminalService(terminals, &mockAppointmentRepository{}, &stubValidation{}, device)

	decision, _, err := svc.ValidateAndOpen(context.Background(), terminal.ID, "ABC123XYZ789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Allowed() {
		t.Fatalf("expected allow, got %s", decision.Reason)
	}
	if device.doorCalls != 1 {
		t.Errorf("expected 1 door command, got %d", device.doorCalls)
	}
}

func TestValidateAndOpen_DoorFailureReleasesConsume(t *testing.T) {
	terminal := registeredTerminal()
	terminals := &mockTerminalRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Terminal, error) {
			return terminal, nil
		},
	}
	released := ""
	appointments := &mockAppointmentRepository{
		releaseFunc: func(ctx context.Context, token string) error {
			released = token
			return nil
		},
	}
	device := &stubDeviceClient{
		openDoorFunc: func(ctx context.Context, doorNo int) error {
			return fmt.Errorf("connection refused")
		},
	}
	svc := newTerminalService(terminals, appointments, &stubValidation{}, device)

	_, _, err := svc.ValidateAndOpen(context.Background(), terminal.ID, "ABC123XYZ789")
	appErr := apperrors.AsAppError(err)
	if appErr == nil || appErr.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected 502 on door failure, got %v", err)
	}
	if released != "ABC123XYZ789" {
		t.Errorf("expected the consumed token released, got %q", released)
	}
}
