package service

import (
	"context"
	"errors"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/internal/access/repository"
	"medaccess/pkg/config"
	"medaccess/pkg/model"
	"medaccess/pkg/sanitizer"
	"time"
)

// ValidationService decides whether a scanned QR token opens the door.
//
// Validate always produces exactly one recorded AccessDecision, whatever
// happens underneath: unknown tokens, revocations, expired windows, lost
// consume races and store outages all come back as a deny with a reason.
// A store outage is a deny (store_unavailable), never an allow.
type ValidationService interface {
	Validate(ctx context.Context, token string, terminalID string) (*model.AccessDecision, *model.Appointment)
}

type validationService struct {
	appointments repository.AppointmentRepository
	decisions    DecisionLogger
	cfg          *config.Config
}

func NewValidationService(
	appointments repository.AppointmentRepository,
	decisions DecisionLogger,
	cfg *config.Config,
) ValidationService {
	return &validationService{
		appointments: appointments,
		decisions:    decisions,
		cfg:          cfg,
	}
}

// Validate checks the token in a fixed order: normalize, lookup, revocation,
// consumption, validity window, then a single compare-and-set consume. The
// early consumption read is advisory; the CAS is what prevents double entry. Of N concurrent
// calls with the same fresh token exactly one gets allowed; the rest lose the
// compare-and-set and get already_used.
func (s *validationService) Validate(ctx context.Context, token string, terminalID string) (*model.AccessDecision, *model.Appointment) {
	now := time.Now().UTC()
	normalized := sanitizer.NormalizeToken(token)

	if normalized == "" {
		return s.deny(ctx, normalized, terminalID, "", model.ReasonUnknownToken, now), nil
	}

	appointment, err := s.appointments.FindByToken(ctx, normalized)
	if err != nil {
		if errors.Is(err, accesserrors.ErrAppointmentNotFound) {
			return s.deny(ctx, normalized, terminalID, "", model.ReasonUnknownToken, now), nil
		}
		s.cfg.Log.Error("Token lookup failed, denying",
			"terminal_id", terminalID,
			"error", err,
		)
		return s.deny(ctx, normalized, terminalID, "", model.ReasonStoreUnavailable, now), nil
	}

	if appointment.Revoked {
		return s.deny(ctx, normalized, terminalID, appointment.ID, model.ReasonRevoked, now), appointment
	}

	if appointment.Consumed {
		return s.deny(ctx, normalized, terminalID, appointment.ID, model.ReasonAlreadyUsed, now), appointment
	}

	if !s.insideWindow(appointment, now) {
		return s.deny(ctx, normalized, terminalID, appointment.ID, model.ReasonOutOfWindow, now), appointment
	}

	consumed, err := s.appointments.TryConsume(ctx, normalized, terminalID, now)
	if err != nil {
		s.cfg.Log.Error("Consume failed, denying",
			"appointment_id", appointment.ID,
			"terminal_id", terminalID,
			"error", err,
		)
		return s.deny(ctx, normalized, terminalID, appointment.ID, model.ReasonStoreUnavailable, now), appointment
	}
	if !consumed {
		return s.deny(ctx, normalized, terminalID, appointment.ID, model.ReasonAlreadyUsed, now), appointment
	}

	decision := &model.AccessDecision{
		Token:         normalized,
		TerminalID:    terminalID,
		AppointmentID: appointment.ID,
		Decision:      model.DecisionAllow,
		Reason:        model.ReasonAllowed,
		ObservedAt:    now,
	}
	s.decisions.Record(ctx, decision)

	s.cfg.Log.Info("Access allowed",
		"appointment_id", appointment.ID,
		"terminal_id", terminalID,
	)
	return decision, appointment
}

// insideWindow treats both bounds as inclusive and stretches them by the
// configured grace period, so a scan at the exact expiry instant passes.
func (s *validationService) insideWindow(appointment *model.Appointment, now time.Time) bool {
	notBefore := appointment.ValidFrom.Add(-s.cfg.ValidationGracePeriod)
	notAfter := appointment.ValidUntil.Add(s.cfg.ValidationGracePeriod)
	return !now.Before(notBefore) && !now.After(notAfter)
}

func (s *validationService) deny(ctx context.Context, token, terminalID, appointmentID, reason string, now time.Time) *model.AccessDecision {
	decision := &model.AccessDecision{
		Token:         token,
		TerminalID:    terminalID,
		AppointmentID: appointmentID,
		Decision:      model.DecisionDeny,
		Reason:        reason,
		ObservedAt:    now,
	}
	s.decisions.Record(ctx, decision)

	s.cfg.Log.Info("Access denied",
		"reason", reason,
		"terminal_id", terminalID,
		"appointment_id", appointmentID,
	)
	return decision
}
