package service

import (
	"context"
	"fmt"
	accesserrors "medaccess/internal/access/errors"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/model"
	"sync"
	"testing"
	"time"
)

// ────────────────────────────────────────────────
// Mock terminal repository
// ────────────────────────────────────────────────

type mockTerminalRepository struct {
	createFunc               func(ctx context.Context, terminal *model.Terminal) error
	findByIDFunc             func(ctx context.Context, id string) (*model.Terminal, error)
	findByMACFunc            func(ctx context.Context, mac string) (*model.Terminal, error)
	findByIPFunc             func(ctx context.Context, ip string) (*model.Terminal, error)
	findMostRecentActiveFunc func(ctx context.Context) (*model.Terminal, error)
	findAllFunc              func(ctx context.Context, limit int, offset int64) ([]*model.Terminal, error)
	updateFunc               func(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error)
	touchLastSeenFunc        func(ctx context.Context, id string, at time.Time) error
	recordProbeFunc          func(ctx context.Context, id string, health *model.TerminalHealth) error
	countFunc                func(ctx context.Context) (int64, error)
}

func (m *mockTerminalRepository) Create(ctx context.Context, terminal *model.Terminal) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, terminal)
	}
	return nil
}

func (m *mockTerminalRepository) FindByID(ctx context.Context, id string) (*model.Terminal, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, accesserrors.ErrTerminalNotFound
}

func (m *mockTerminalRepository) FindByMAC(ctx context.Context, mac string) (*model.Terminal, error) {
	if m.findByMACFunc != nil {
		return m.findByMACFunc(ctx, mac)
	}
	return nil, accesserrors.ErrTerminalNotFound
}

func (m *mockTerminalRepository) FindByIP(ctx context.Context, ip string) (*model.Terminal, error) {
	if m.findByIPFunc != nil {
		return m.findByIPFunc(ctx, ip)
	}
	return nil, accesserrors.ErrTerminalNotFound
}

func (m *mockTerminalRepository) FindMostRecentActive(ctx context.Context) (*model.Terminal, error) {
	if m.findMostRecentActiveFunc != nil {
		return m.findMostRecentActiveFunc(ctx)
	}
	return nil, accesserrors.ErrTerminalNotFound
}

func (m *mockTerminalRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Terminal, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Terminal{}, nil
}

func (m *mockTerminalRepository) Update(ctx context.Context, id string, patch *model.TerminalUpdate) (*model.Terminal, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, patch)
	}
	return nil, accesserrors.ErrTerminalNotFound
}

func (m *mockTerminalRepository) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	if m.touchLastSeenFunc != nil {
		return m.touchLastSeenFunc(ctx, id, at)
	}
	return nil
}

func (m *mockTerminalRepository) RecordProbe(ctx context.Context, id string, health *model.TerminalHealth) error {
	if m.recordProbeFunc != nil {
		return m.recordProbeFunc(ctx, id, health)
	}
	return nil
}

func (m *mockTerminalRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

// ────────────────────────────────────────────────
// Mock terminal event repository
// ────────────────────────────────────────────────

type mockTerminalEventRepository struct {
	mu             sync.Mutex
	inserted       []*model.TerminalEvent
	insertFunc     func(ctx context.Context, event *model.TerminalEvent) error
	findRecentFunc func(ctx context.Context, limit int, offset int64) ([]*model.TerminalEvent, error)
	countFunc      func(ctx context.Context) (int64, error)
	countSinceFunc func(ctx context.Context, since time.Time) (int64, error)
}

func (m *mockTerminalEventRepository) Insert(ctx context.Context, event *model.TerminalEvent) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, event)
	return nil
}

func (m *mockTerminalEventRepository) FindRecent(ctx context.Context, limit int, offset int64) ([]*model.TerminalEvent, error) {
	if m.findRecentFunc != nil {
		return m.findRecentFunc(ctx, limit, offset)
	}
	return []*model.TerminalEvent{}, nil
}

func (m *mockTerminalEventRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockTerminalEventRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	if m.countSinceFunc != nil {
		return m.countSinceFunc(ctx, since)
	}
	return 0, nil
}

// ────────────────────────────────────────────────
// Stub validation service
// ────────────────────────────────────────────────

type stubValidation struct {
	mu           sync.Mutex
	calls        int
	lastToken    string
	lastTerminal string
	decision     *model.AccessDecision
}

func (s *stubValidation) Validate(ctx context.Context, token, terminalID string) (*model.AccessDecision, *model.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastToken = token
	s.lastTerminal = terminalID
	if s.decision != nil {
		return s.decision, nil
	}
	return &model.AccessDecision{
		Token:    token,
		Decision: model.DecisionAllow,
		Reason:   model.ReasonAllowed,
	}, nil
}

// ────────────────────────────────────────────────
// Tests for HandleDelivery()
// ────────────────────────────────────────────────

func accessAttemptBody(token, mac, deviceIP string, at time.Time) []byte {
	return []byte(fmt.Sprintf(
		`{"eventType":"AccessControllerEvent","macAddress":%q,"ipAddress":%q,`+
			`"AccessControllerEvent":{"cardNo":%q,"dateTime":%q}}`,
		mac, deviceIP, token, at.Format(time.RFC3339)))
}

func newReceiverFixture(cfg ...*model.Terminal) (*mockTerminalRepository, *mockTerminalEventRepository, *stubValidation) {
	terminals := &mockTerminalRepository{}
	if len(cfg) > 0 {
		terminal := cfg[0]
		terminals.findByMACFunc = func(ctx context.Context, mac string) (*model.Terminal, error) {
			if mac == terminal.MACAddress {
				return terminal, nil
			}
			return nil, accesserrors.ErrTerminalNotFound
		}
		terminals.findByIPFunc = func(ctx context.Context, ip string) (*model.Terminal, error) {
			if ip == terminal.IP {
				return terminal, nil
			}
			return nil, accesserrors.ErrTerminalNotFound
		}
	}
	return terminals, &mockTerminalEventRepository{}, &stubValidation{}
}

func TestHandleDelivery_AllowedAccessAttempt(t *testing.T) {
	terminal := &model.Terminal{ID: "64f0000000000000000000a1", IP: "10.0.0.9", MACAddress: "2428fd1a2b3c", Active: true}
	terminals, events, validation := newReceiverFixture(terminal)

	touched := false
	terminals.touchLastSeenFunc = func(ctx context.Context, id string, at time.Time) error {
		touched = true
		if id != terminal.ID {
			t.Errorf("touched wrong terminal %s", id)
		}
		return nil
	}

	svc := NewReceiverService(terminals, events, validation, testConfig())
	body := accessAttemptBody("ABC123XYZ789", "24:28:FD:1A:2B:3C", "10.0.0.9", time.Now().UTC())

	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        body,
		ContentType: "application/json",
		RemoteIP:    "10.0.0.9",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ack.Status != model.AckStatusOK {
		t.Errorf("expected status ok, got %s", ack.Status)
	}
	if ack.AuthResult == nil || *ack.AuthResult != 0 {
		t.Errorf("expected authResult 0, got %v", ack.AuthResult)
	}
	if validation.calls != 1 {
		t.Errorf("expected 1 validation, got %d", validation.calls)
	}
	if validation.lastToken != "ABC123XYZ789" {
		t.Errorf("expected token ABC123XYZ789, got %s", validation.lastToken)
	}
	if validation.lastTerminal != terminal.ID {
		t.Errorf("expected terminal %s, got %s", terminal.ID, validation.lastTerminal)
	}
	if !touched {
		t.Error("expected terminal last_seen to be touched")
	}

	if len(events.inserted) != 1 {
		t.Fatalf("expected 1 persisted event, got %d", len(events.inserted))
	}
	record := events.inserted[0]
	if record.EventType != model.EventTypeAccessAttempt {
		t.Errorf("expected access_attempt, got %s", record.EventType)
	}
	if record.Token != "ABC123XYZ789" {
		t.Errorf("expected token on record, got %q", record.Token)
	}
	if record.TerminalID != terminal.ID {
		t.Errorf("expected terminal id on record, got %q", record.TerminalID)
	}
}

func TestHandleDelivery_DeniedAccessAttempt(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	validation.decision = &model.AccessDecision{
		Decision: model.DecisionDeny,
		Reason:   model.ReasonAlreadyUsed,
	}

	svc := NewReceiverService(terminals, events, validation, testConfig())
	body := accessAttemptBody("ABC123XYZ789", "", "", time.Now().UTC())

	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        body,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ack.Reason != model.ReasonAlreadyUsed {
		t.Errorf("expected reason already_used, got %s", ack.Reason)
	}
	if ack.AuthResult == nil || *ack.AuthResult != 1 {
		t.Errorf("expected authResult 1, got %v", ack.AuthResult)
	}
}

func TestHandleDelivery_MalformedBodyStillAcked(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	svc := NewReceiverService(terminals, events, validation, testConfig())

	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        []byte(`{"eventType": "Access`),
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("malformed body must not error: %v", err)
	}

	if ack.Status != model.AckStatusOK {
		t.Errorf("expected status ok, got %s", ack.Status)
	}
	if ack.Reason != model.ReasonMalformed {
		t.Errorf("expected reason malformed, got %s", ack.Reason)
	}
	if validation.calls != 0 {
		t.Errorf("malformed body must not be validated, got %d calls", validation.calls)
	}
	if len(events.inserted) != 1 {
		t.Fatalf("expected the garbage delivery to be persisted, got %d", len(events.inserted))
	}
	if events.inserted[0].EventType != model.EventTypeUnrecognized {
		t.Errorf("expected unrecognized, got %s", events.inserted[0].EventType)
	}
	if len(events.inserted[0].RawPayload) == 0 {
		t.Error("expected raw payload to be preserved")
	}
}

func TestHandleDelivery_EmptyBody(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	svc := NewReceiverService(terminals, events, validation, testConfig())

	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        nil,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ack.Status != model.AckStatusOK || ack.AuthResult != nil {
		t.Errorf("expected plain ok ack, got %+v", ack)
	}
	if len(events.inserted) != 1 {
		t.Errorf("expected 1 persisted event, got %d", len(events.inserted))
	}
}

func TestHandleDelivery_HeartbeatSkipsValidation(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	svc := NewReceiverService(terminals, events, validation, testConfig())

	// Heartbeats may still carry a stray credential field; they are never
	// validated.
	body := []byte(`{"eventType":"heartbeat","qrCode":"ABC123XYZ789"}`)
	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        body,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if validation.calls != 0 {
		t.Errorf("heartbeat must not be validated, got %d calls", validation.calls)
	}
	if ack.AuthResult != nil {
		t.Error("heartbeat ack must not carry authResult")
	}
	if len(events.inserted) != 1 || events.inserted[0].EventType != model.EventTypeHeartbeat {
		t.Errorf("expected 1 heartbeat event persisted, got %+v", events.inserted)
	}
}

func TestHandleDelivery_StaleAttemptIgnored(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	svc := NewReceiverService(terminals, events, validation, testConfig())

	body := accessAttemptBody("ABC123XYZ789", "", "", time.Now().UTC().Add(-4*time.Hour))
	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        body,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if validation.calls != 0 {
		t.Errorf("stale attempt must not be validated, got %d calls", validation.calls)
	}
	if ack.AuthResult != nil {
		t.Error("stale ack must not carry authResult")
	}
	if len(events.inserted) != 1 || !events.inserted[0].Stale {
		t.Errorf("expected the stale event persisted with the stale flag, got %+v", events.inserted)
	}
}

func TestHandleDelivery_SecretMismatchRejectsWithoutPersisting(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	cfg := testConfig()
	cfg.TerminalSharedSecret = "hush"
	svc := NewReceiverService(terminals, events, validation, cfg)

	tests := []struct {
		name string
		body []byte
	}{
		{"missing secret", []byte(`{"eventType":"heartbeat"}`)},
		{"wrong secret", []byte(`{"eventType":"heartbeat","secret":"loud"}`)},
		{"unparseable body", []byte(`{"event`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.HandleDelivery(context.Background(), &EventDelivery{
				Body:        tt.body,
				ContentType: "application/json",
				RemoteIP:    "192.0.2.10",
			})
			if err == nil {
				t.Fatal("expected unauthorized error")
			}
			appErr := apperrors.AsAppError(err)
			if appErr == nil || appErr.HTTPStatus != 401 {
				t.Errorf("expected 401 AppError, got %v", err)
			}
		})
	}

	if len(events.inserted) != 0 {
		t.Errorf("unauthenticated deliveries must not be persisted, got %d", len(events.inserted))
	}
	if validation.calls != 0 {
		t.Errorf("unauthenticated deliveries must not be validated, got %d", validation.calls)
	}
}

func TestHandleDelivery_SecretMatchProceeds(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	cfg := testConfig()
	cfg.TerminalSharedSecret = "hush"
	svc := NewReceiverService(terminals, events, validation, cfg)

	body := []byte(`{"eventType":"AccessControllerEvent","secret":"hush",` +
		`"AccessControllerEvent":{"cardNo":"ABC123XYZ789"}}`)
	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        body,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if validation.calls != 1 {
		t.Errorf("expected validation after secret match, got %d calls", validation.calls)
	}
	if ack.AuthResult == nil {
		t.Error("expected authResult on validated ack")
	}
}

func TestHandleDelivery_PersistFailureStillAcks(t *testing.T) {
	terminals, events, validation := newReceiverFixture()
	events.insertFunc = func(ctx context.Context, event *model.TerminalEvent) error {
		return fmt.Errorf("server selection timeout")
	}
	svc := NewReceiverService(terminals, events, validation, testConfig())

	ack, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        []byte(`{"eventType":"heartbeat"}`),
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	})
	if err != nil {
		t.Fatalf("audit failure must not fail the delivery: %v", err)
	}
	if ack.Status != model.AckStatusOK {
		t.Errorf("expected status ok, got %s", ack.Status)
	}
}

// ────────────────────────────────────────────────
// Tests for terminal resolution
// ────────────────────────────────────────────────

func TestResolveTerminal_PrefersMACOverIP(t *testing.T) {
	byMAC := &model.Terminal{ID: "by-mac", MACAddress: "2428fd1a2b3c"}
	byIP := &model.Terminal{ID: "by-ip", IP: "10.0.0.9"}

	terminals := &mockTerminalRepository{
		findByMACFunc: func(ctx context.Context, mac string) (*model.Terminal, error) {
			return byMAC, nil
		},
		findByIPFunc: func(ctx context.Context, ip string) (*model.Terminal, error) {
			return byIP, nil
		},
	}
	events := &mockTerminalEventRepository{}
	validation := &stubValidation{}
	svc := NewReceiverService(terminals, events, validation, testConfig())

	body := accessAttemptBody("ABC123XYZ789", "24:28:FD:1A:2B:3C", "10.0.0.9", time.Now().UTC())
	delivery := &EventDelivery{Body: body, ContentType: "application/json", RemoteIP: "10.0.0.9"}

	if _, err := svc.HandleDelivery(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validation.lastTerminal != "by-mac" {
		t.Errorf("expected mac resolution to win, got %s", validation.lastTerminal)
	}
}

func TestResolveTerminal_ForwardedForFallback(t *testing.T) {
	terminal := &model.Terminal{ID: "by-xff", IP: "203.0.113.7"}
	terminals := &mockTerminalRepository{
		findByIPFunc: func(ctx context.Context, ip string) (*model.Terminal, error) {
			if ip == "203.0.113.7" {
				return terminal, nil
			}
			return nil, accesserrors.ErrTerminalNotFound
		},
	}
	events := &mockTerminalEventRepository{}
	validation := &stubValidation{}
	svc := NewReceiverService(terminals, events, validation, testConfig())

	body := accessAttemptBody("ABC123XYZ789", "", "", time.Now().UTC())
	_, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:         body,
		ContentType:  "application/json",
		RemoteIP:     "10.1.1.1",
		ForwardedFor: "203.0.113.7, 10.1.1.1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if validation.lastTerminal != "by-xff" {
		t.Errorf("expected X-Forwarded-For resolution, got %q", validation.lastTerminal)
	}
}

func TestResolveTerminal_RecencyFallbackOnlyForControllerEnvelope(t *testing.T) {
	recent := &model.Terminal{ID: "recent", Active: true}
	terminals := &mockTerminalRepository{
		findMostRecentActiveFunc: func(ctx context.Context) (*model.Terminal, error) {
			return recent, nil
		},
	}
	events := &mockTerminalEventRepository{}
	validation := &stubValidation{}
	svc := NewReceiverService(terminals, events, validation, testConfig())

	// Controller envelope: fallback applies.
	body := accessAttemptBody("ABC123XYZ789", "", "", time.Now().UTC())
	if _, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        body,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validation.lastTerminal != "recent" {
		t.Errorf("expected recency fallback for controller envelope, got %q", validation.lastTerminal)
	}

	// AcsEvent envelope: no fallback, validated without a terminal.
	acsBody := []byte(`{"eventType":"AcsEvent","AcsEvent":{"cardNo":"ABC123XYZ789"}}`)
	if _, err := svc.HandleDelivery(context.Background(), &EventDelivery{
		Body:        acsBody,
		ContentType: "application/json",
		RemoteIP:    "192.0.2.10",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validation.lastTerminal != "" {
		t.Errorf("expected no terminal for acs envelope, got %q", validation.lastTerminal)
	}
}
