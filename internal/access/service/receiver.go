package service

import (
	"context"
	"crypto/hmac"
	"errors"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/internal/access/repository"
	"medaccess/internal/hikvision"
	"medaccess/pkg/config"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/model"
	"strings"
	"time"
)

// EventDelivery is one raw webhook POST from a terminal, as received.
type EventDelivery struct {
	Body         []byte
	ContentType  string
	RemoteIP     string
	ForwardedFor string
}

// ReceiverService ingests terminal webhooks. After the shared-secret gate the
// endpoint never fails: garbage payloads are persisted and acknowledged with
// 200 so the device does not retry-flood, and the ack carries the validation
// outcome when a QR was actually checked.
//
// The only non-nil error is an unauthorized one: when a shared secret is
// configured and the delivery cannot prove it, nothing is persisted because
// the payload is untrusted.
type ReceiverService interface {
	HandleDelivery(ctx context.Context, delivery *EventDelivery) (model.EventAck, error)
}

type receiverService struct {
	terminals  repository.TerminalRepository
	events     repository.TerminalEventRepository
	validation ValidationService
	cfg        *config.Config
}

func NewReceiverService(
	terminals repository.TerminalRepository,
	events repository.TerminalEventRepository,
	validation ValidationService,
	cfg *config.Config,
) ReceiverService {
	return &receiverService{
		terminals:  terminals,
		events:     events,
		validation: validation,
		cfg:        cfg,
	}
}

func (s *receiverService) HandleDelivery(ctx context.Context, delivery *EventDelivery) (model.EventAck, error) {
	parsed, parseErr := hikvision.ParseDelivery(delivery.ContentType, delivery.Body)

	if s.cfg.TerminalSharedSecret != "" {
		if parseErr != nil || !secretMatches(parsed.Secret, s.cfg.TerminalSharedSecret) {
			s.cfg.Log.Warn("Rejected terminal delivery with bad or missing secret",
				"remote_ip", delivery.RemoteIP,
				"parse_failed", parseErr != nil,
			)
			return model.EventAck{}, apperrors.Unauthorized("Invalid terminal secret")
		}
	}

	if parseErr != nil {
		s.cfg.Log.Warn("Unparseable terminal delivery",
			"remote_ip", delivery.RemoteIP,
			"content_type", delivery.ContentType,
			"error", parseErr,
		)
		s.persistEvent(ctx, &model.TerminalEvent{
			EventType:  model.EventTypeUnrecognized,
			RemoteAddr: delivery.RemoteIP,
			RawPayload: delivery.Body,
		})
		return model.AckMalformed(), nil
	}

	if len(parsed.Documents) == 0 {
		s.persistEvent(ctx, &model.TerminalEvent{
			EventType:  model.EventTypeUnrecognized,
			RemoteAddr: delivery.RemoteIP,
			RawPayload: delivery.Body,
		})
		return model.AckOK(), nil
	}

	now := time.Now().UTC()
	ack := model.AckOK()
	validated := false

	for _, doc := range parsed.Documents {
		event := hikvision.Normalize(doc)
		record := &model.TerminalEvent{
			EventType:  event.Type,
			Token:      event.Credential,
			MACAddress: event.MACAddress,
			DeviceIP:   event.DeviceIP,
			RemoteAddr: delivery.RemoteIP,
			EventTime:  event.EventTime,
			RawPayload: delivery.Body,
		}

		terminal := s.resolveTerminal(ctx, event, delivery)
		if terminal != nil {
			record.TerminalID = terminal.ID
			if err := s.terminals.TouchLastSeen(ctx, terminal.ID, now); err != nil {
				s.cfg.Log.Warn("Failed to touch terminal", "terminal_id", terminal.ID, "error", err)
			}
		}

		if event.Type != model.EventTypeAccessAttempt || validated {
			s.persistEvent(ctx, record)
			continue
		}

		if event.Stale(now, s.cfg.EventMaxAge) {
			record.Stale = true
			s.persistEvent(ctx, record)
			s.cfg.Log.Info("Ignored stale access attempt",
				"event_time", event.EventTime,
				"remote_ip", delivery.RemoteIP,
			)
			continue
		}

		s.persistEvent(ctx, record)

		terminalID := ""
		if terminal != nil {
			terminalID = terminal.ID
		}
		decision, _ := s.validation.Validate(ctx, event.Credential, terminalID)
		ack = model.AckDecision(decision)
		validated = true
	}

	return ack, nil
}

// resolveTerminal maps a delivery to a registered terminal: embedded MAC
// first, then embedded device IP, then the transport addresses, and as a
// last resort the most recently seen active terminal, but only for the
// vendor's access controller envelope where the device identity is often
// stripped by NAT.
func (s *receiverService) resolveTerminal(ctx context.Context, event hikvision.Event, delivery *EventDelivery) *model.Terminal {
	if event.MACAddress != "" {
		if terminal, err := s.terminals.FindByMAC(ctx, event.MACAddress); err == nil {
			return terminal
		} else if !errors.Is(err, accesserrors.ErrTerminalNotFound) {
			s.cfg.Log.Warn("Terminal lookup by mac failed", "mac", event.MACAddress, "error", err)
		}
	}

	for _, ip := range candidateIPs(event, delivery) {
		terminal, err := s.terminals.FindByIP(ctx, ip)
		if err == nil {
			return terminal
		}
		if !errors.Is(err, accesserrors.ErrTerminalNotFound) {
			s.cfg.Log.Warn("Terminal lookup by ip failed", "ip", ip, "error", err)
		}
	}

	if event.RawType == "accesscontrollerevent" {
		if terminal, err := s.terminals.FindMostRecentActive(ctx); err == nil {
			s.cfg.Log.Info("Resolved terminal by recency fallback",
				"terminal_id", terminal.ID,
				"remote_ip", delivery.RemoteIP,
			)
			return terminal
		}
	}

	return nil
}

func candidateIPs(event hikvision.Event, delivery *EventDelivery) []string {
	var ips []string
	if event.DeviceIP != "" {
		ips = append(ips, event.DeviceIP)
	}
	if hop := firstForwardedHop(delivery.ForwardedFor); hop != "" {
		ips = append(ips, hop)
	}
	if delivery.RemoteIP != "" {
		ips = append(ips, delivery.RemoteIP)
	}
	return ips
}

// firstForwardedHop picks the client entry of an X-Forwarded-For chain.
func firstForwardedHop(header string) string {
	if header == "" {
		return ""
	}
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

// persistEvent appends to the audit trail; a failed insert is logged and the
// flow continues, the acknowledgement must still reach the device.
func (s *receiverService) persistEvent(ctx context.Context, event *model.TerminalEvent) {
	if err := s.events.Insert(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to persist terminal event",
			"event_type", event.EventType,
			"remote_addr", event.RemoteAddr,
			"error", err,
		)
	}
}

func secretMatches(got, want string) bool {
	return hmac.Equal([]byte(got), []byte(want))
}
