// Package hikvision understands the wire formats of Hikvision access
// terminals: the push-event payloads they POST at us and the ISAPI
// surface we call back into (digest auth, door relay, device info).
package hikvision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"
	"time"

	"medaccess/pkg/model"
	"medaccess/pkg/sanitizer"
)

// Document is one JSON object carried by a terminal delivery. Firmwares
// disagree on envelope shape, so it stays schemaless until normalization.
type Document map[string]any

// Delivery is everything extracted from one webhook request body.
type Delivery struct {
	Documents []Document
	Secret    string
}

// Event is a normalized terminal event ready for classification-driven
// handling. Type holds one of the model.EventType values.
type Event struct {
	Type       string
	RawType    string
	Credential string
	MACAddress string
	DeviceIP   string
	EventTime  *time.Time
}

// Part and form field names that carry the JSON event document.
var eventFieldNames = []string{"event_log", "AccessControllerEvent", "AcsEvent"}

// Direct credential fields, checked on the event body before recursive
// descent. Order is the order firmwares most commonly populate.
var directCredentialFields = []string{"qrCode", "credentialNo", "cardNo", "code"}

// Fields the recursive search recognizes in nested objects.
var nestedCredentialFields = []string{"qrCode", "qr_code", "QRCodeInfo", "code", "qr", "cardNo", "cardNumber", "card_number"}

// ParseDelivery extracts the JSON event documents and the shared-secret
// field from a raw webhook body. A nil error with zero documents means
// the body was well-formed but carried no event (bare heartbeats do
// this); an error means the body claimed a shape it did not honor.
func ParseDelivery(contentType string, body []byte) (*Delivery, error) {
	mediaType, params, _ := mime.ParseMediaType(contentType)

	switch {
	case strings.Contains(mediaType, "json"),
		mediaType == "" && looksLikeJSON(body):
		return parseJSONDelivery(body)

	case strings.HasPrefix(mediaType, "multipart/"):
		return parseMultipartDelivery(body, params["boundary"])

	case mediaType == "application/x-www-form-urlencoded":
		return parseFormDelivery(body)
	}

	if looksLikeJSON(body) {
		return parseJSONDelivery(body)
	}

	return nil, fmt.Errorf("unsupported content type %q", contentType)
}

func parseJSONDelivery(body []byte) (*Delivery, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Delivery{}, nil
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}

	delivery := &Delivery{Documents: []Document{doc}}
	delivery.Secret = documentSecret(doc)
	return delivery, nil
}

func parseMultipartDelivery(body []byte, boundary string) (*Delivery, error) {
	if boundary == "" {
		return nil, fmt.Errorf("multipart body without boundary")
	}

	delivery := &Delivery{}
	reader := multipart.NewReader(bytes.NewReader(body), boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}

		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("unreadable multipart part: %w", err)
		}

		name := part.FormName()
		if name == "secret" && delivery.Secret == "" {
			delivery.Secret = strings.TrimSpace(string(content))
			continue
		}

		if !isEventPart(name, part.Header.Get("Content-Type"), content) {
			continue
		}

		var doc Document
		if err := json.Unmarshal(bytes.TrimSpace(content), &doc); err != nil {
			continue
		}

		delivery.Documents = append(delivery.Documents, doc)
		if delivery.Secret == "" {
			delivery.Secret = documentSecret(doc)
		}
	}

	return delivery, nil
}

func parseFormDelivery(body []byte) (*Delivery, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}

	delivery := &Delivery{Secret: strings.TrimSpace(values.Get("secret"))}

	for _, field := range eventFieldNames {
		for _, raw := range values[field] {
			var doc Document
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				continue
			}
			delivery.Documents = append(delivery.Documents, doc)
			if delivery.Secret == "" {
				delivery.Secret = documentSecret(doc)
			}
		}
	}

	return delivery, nil
}

func isEventPart(name, contentType string, content []byte) bool {
	for _, field := range eventFieldNames {
		if name == field {
			return true
		}
	}
	if strings.Contains(contentType, "json") {
		return true
	}
	return looksLikeJSON(content)
}

func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func documentSecret(doc Document) string {
	if s, ok := doc["secret"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Normalize flattens one vendor document into an Event. Device identity
// (MAC, IP) is read from the top level only; the event body may sit at
// the top level or under AccessControllerEvent / AcsEvent.
func Normalize(doc Document) Event {
	body := eventBody(doc)

	event := Event{
		RawType:    eventType(doc, body),
		MACAddress: sanitizer.NormalizeMAC(stringField(doc, "macAddress")),
		DeviceIP:   stringField(doc, "ipAddress"),
		EventTime:  eventTime(doc, body),
	}

	event.Credential = extractCredential(body)
	event.Type = classify(event.RawType, event.Credential)

	return event
}

func eventBody(doc Document) Document {
	for _, key := range []string{"AccessControllerEvent", "AcsEvent"} {
		if nested, ok := doc[key].(map[string]any); ok {
			return Document(nested)
		}
	}
	return doc
}

func eventType(doc, body Document) string {
	raw := stringField(doc, "eventType")
	if raw == "" {
		raw = stringField(body, "eventType")
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func eventTime(doc, body Document) *time.Time {
	raw := stringField(body, "dateTime")
	if raw == "" {
		raw = stringField(doc, "dateTime")
	}
	if raw == "" {
		return nil
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func classify(rawType, credential string) string {
	switch rawType {
	case "heartbeat":
		return model.EventTypeHeartbeat
	case "selftest", "self_test":
		return model.EventTypeSelfTest
	}

	if credential != "" {
		return model.EventTypeAccessAttempt
	}
	return model.EventTypeUnrecognized
}

func extractCredential(body Document) string {
	for _, field := range directCredentialFields {
		if s := credentialString(body[field]); s != "" {
			return s
		}
	}
	return searchCredential(map[string]any(body))
}

func searchCredential(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, field := range nestedCredentialFields {
			if raw, ok := val[field]; ok {
				if s := credentialString(raw); s != "" {
					return s
				}
			}
		}
		for _, nested := range val {
			switch nested.(type) {
			case map[string]any, []any:
				if s := searchCredential(nested); s != "" {
					return s
				}
			}
		}
	case []any:
		for _, item := range val {
			if s := searchCredential(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func credentialString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == math.Trunc(val) {
			return strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	return ""
}

func stringField(doc Document, key string) string {
	if s, ok := doc[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// Stale reports whether the event's embedded timestamp is older than
// maxAge relative to now. Events without a parseable timestamp are never
// stale; terminals on wrong clocks in the future are not penalized.
func (e Event) Stale(now time.Time, maxAge time.Duration) bool {
	if e.EventTime == nil {
		return false
	}
	return now.Sub(*e.EventTime) > maxAge
}
