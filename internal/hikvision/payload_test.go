package hikvision

import (
	"bytes"
	"mime/multipart"
	"net/url"
	"testing"
	"time"

	"medaccess/pkg/model"
)

// ────────────────────────────────────────────────
// Tests for ParseDelivery
// ────────────────────────────────────────────────

func TestParseDelivery_JSONBody(t *testing.T) {
	body := []byte(`{
		"ipAddress": "192.168.1.64",
		"macAddress": "24:28:FD:1A:2B:3C",
		"dateTime": "2026-08-24T10:15:00+03:00",
		"eventType": "AccessControllerEvent",
		"AccessControllerEvent": {
			"deviceName": "Entrance",
			"majorEventType": 5,
			"subEventType": 75,
			"qrCode": "A1B2C3D4E5F6"
		}
	}`)

	delivery, err := ParseDelivery("application/json", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(delivery.Documents))
	}
}

func TestParseDelivery_JSONWithCharset(t *testing.T) {
	body := []byte(`{"eventType": "heartBeat"}`)

	delivery, err := ParseDelivery("application/json; charset=UTF-8", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(delivery.Documents))
	}
}

func TestParseDelivery_MissingContentTypeSniffsJSON(t *testing.T) {
	body := []byte(`{"eventType": "heartBeat"}`)

	delivery, err := ParseDelivery("", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(delivery.Documents))
	}
}

func TestParseDelivery_TruncatedJSON(t *testing.T) {
	body := []byte(`{"eventType": "AccessControllerEvent", "AccessContr`)

	_, err := ParseDelivery("application/json", body)
	if err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestParseDelivery_EmptyJSONBody(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte("  "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 0 {
		t.Fatalf("expected no documents, got %d", len(delivery.Documents))
	}
}

func TestParseDelivery_Multipart(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("event_log", `{"eventType":"AccessControllerEvent","AccessControllerEvent":{"cardNo":"778899"}}`); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	writer.Close()

	delivery, err := ParseDelivery(writer.FormDataContentType(), buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(delivery.Documents))
	}

	event := Normalize(delivery.Documents[0])
	if event.Credential != "778899" {
		t.Errorf("expected credential 778899, got %q", event.Credential)
	}
}

func TestParseDelivery_MultipartHeartbeatWithoutJSONPart(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("heartbeat", "alive"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	writer.Close()

	delivery, err := ParseDelivery(writer.FormDataContentType(), buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 0 {
		t.Fatalf("expected no documents, got %d", len(delivery.Documents))
	}
}

func TestParseDelivery_MultipartMissingBoundary(t *testing.T) {
	_, err := ParseDelivery("multipart/form-data", []byte("whatever"))
	if err == nil {
		t.Fatal("expected error for multipart without boundary")
	}
}

func TestParseDelivery_FormURLEncoded(t *testing.T) {
	form := url.Values{}
	form.Set("event_log", `{"eventType":"AccessControllerEvent","AccessControllerEvent":{"qrCode":"ZX9PLM3QW7RT"}}`)

	delivery, err := ParseDelivery("application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivery.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(delivery.Documents))
	}
}

func TestParseDelivery_UnsupportedContentType(t *testing.T) {
	_, err := ParseDelivery("text/plain", []byte("hello"))
	if err == nil {
		t.Fatal("expected error for unsupported content type")
	}
}

// ────────────────────────────────────────────────
// Secret extraction
// ────────────────────────────────────────────────

func TestParseDelivery_SecretFromJSONBody(t *testing.T) {
	body := []byte(`{"secret": "terminal-shared-secret", "eventType": "heartBeat"}`)

	delivery, err := ParseDelivery("application/json", body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivery.Secret != "terminal-shared-secret" {
		t.Errorf("expected secret to be extracted, got %q", delivery.Secret)
	}
}

func TestParseDelivery_SecretFromFormField(t *testing.T) {
	form := url.Values{}
	form.Set("secret", "terminal-shared-secret")
	form.Set("event_log", `{"eventType":"heartBeat"}`)

	delivery, err := ParseDelivery("application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivery.Secret != "terminal-shared-secret" {
		t.Errorf("expected secret from form field, got %q", delivery.Secret)
	}
}

func TestParseDelivery_SecretFromMultipartField(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("secret", "terminal-shared-secret")
	writer.WriteField("event_log", `{"eventType":"heartBeat"}`)
	writer.Close()

	delivery, err := ParseDelivery(writer.FormDataContentType(), buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivery.Secret != "terminal-shared-secret" {
		t.Errorf("expected secret from multipart field, got %q", delivery.Secret)
	}
}

// ────────────────────────────────────────────────
// Tests for Normalize
// ────────────────────────────────────────────────

func TestNormalize_AccessAttempt(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{
		"ipAddress": "192.168.1.64",
		"macAddress": "24-28-FD-1A-2B-3C",
		"eventType": "AccessControllerEvent",
		"AccessControllerEvent": {
			"dateTime": "2026-08-24T10:15:00Z",
			"qrCode": "A1B2C3D4E5F6"
		}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])

	if event.Type != model.EventTypeAccessAttempt {
		t.Errorf("expected access_attempt, got %q", event.Type)
	}
	if event.Credential != "A1B2C3D4E5F6" {
		t.Errorf("expected credential A1B2C3D4E5F6, got %q", event.Credential)
	}
	if event.MACAddress != "2428fd1a2b3c" {
		t.Errorf("expected normalized MAC 2428fd1a2b3c, got %q", event.MACAddress)
	}
	if event.DeviceIP != "192.168.1.64" {
		t.Errorf("expected device IP, got %q", event.DeviceIP)
	}
	if event.EventTime == nil {
		t.Fatal("expected event time to be parsed")
	}
	want := time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC)
	if !event.EventTime.Equal(want) {
		t.Errorf("expected event time %v, got %v", want, event.EventTime)
	}
}

func TestNormalize_Heartbeat(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{"eventType": "heartBeat", "ipAddress": "10.0.0.5"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Type != model.EventTypeHeartbeat {
		t.Errorf("expected heartbeat, got %q", event.Type)
	}
}

func TestNormalize_HeartbeatWithCredentialStaysHeartbeat(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{"eventType": "heartBeat", "qrCode": "A1B2C3D4E5F6"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Type != model.EventTypeHeartbeat {
		t.Errorf("expected heartbeat to win over credential, got %q", event.Type)
	}
}

func TestNormalize_SelfTest(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{"eventType": "selfTest"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Type != model.EventTypeSelfTest {
		t.Errorf("expected self_test, got %q", event.Type)
	}
}

func TestNormalize_NumericCardNumber(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{
		"eventType": "AccessControllerEvent",
		"AccessControllerEvent": {"cardNo": 4455667788}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Credential != "4455667788" {
		t.Errorf("expected numeric card to become string, got %q", event.Credential)
	}
	if event.Type != model.EventTypeAccessAttempt {
		t.Errorf("expected access_attempt, got %q", event.Type)
	}
}

func TestNormalize_DeeplyNestedCredential(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{
		"eventType": "AccessControllerEvent",
		"AccessControllerEvent": {
			"attendanceInfo": {
				"QRCodeInfo": "ZX9PLM3QW7RT"
			}
		}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Credential != "ZX9PLM3QW7RT" {
		t.Errorf("expected nested credential, got %q", event.Credential)
	}
}

func TestNormalize_AcsEventEnvelope(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{
		"macAddress": "2428FD1A2B3C",
		"AcsEvent": {"qrCode": "QQWWEERRTTYY", "dateTime": "2026-08-24T09:00:00Z"}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Credential != "QQWWEERRTTYY" {
		t.Errorf("expected credential from AcsEvent, got %q", event.Credential)
	}
	if event.MACAddress != "2428fd1a2b3c" {
		t.Errorf("expected normalized MAC, got %q", event.MACAddress)
	}
}

func TestNormalize_UnrecognizedEvent(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{"eventType": "videoloss"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.Type != model.EventTypeUnrecognized {
		t.Errorf("expected unrecognized, got %q", event.Type)
	}
	if event.RawType != "videoloss" {
		t.Errorf("expected raw type preserved, got %q", event.RawType)
	}
}

func TestNormalize_UnparseableDateTime(t *testing.T) {
	delivery, err := ParseDelivery("application/json", []byte(`{
		"AccessControllerEvent": {"qrCode": "A1B2C3D4E5F6", "dateTime": "24-08-2026 10:15"}
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := Normalize(delivery.Documents[0])
	if event.EventTime != nil {
		t.Errorf("expected nil event time for unparseable value, got %v", event.EventTime)
	}
}

// ────────────────────────────────────────────────
// Tests for Event.Stale
// ────────────────────────────────────────────────

func TestEventStale(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	maxAge := 3 * time.Hour

	fresh := now.Add(-time.Hour)
	old := now.Add(-4 * time.Hour)
	boundary := now.Add(-maxAge)
	future := now.Add(2 * time.Hour)

	tests := []struct {
		name      string
		eventTime *time.Time
		want      bool
	}{
		{"no timestamp", nil, false},
		{"fresh event", &fresh, false},
		{"old event", &old, true},
		{"exactly at max age", &boundary, false},
		{"future clock skew", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := Event{EventTime: tt.eventTime}
			if got := event.Stale(now, maxAge); got != tt.want {
				t.Errorf("Stale() = %v, want %v", got, tt.want)
			}
		})
	}
}
