package service

import (
	"context"
	"medaccess/internal/access/repository"
	"medaccess/pkg/config"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/model"
	"sync"
	"time"
)

type StatsService interface {
	Collect(ctx context.Context, period string) (*model.AccessStats, error)
}

type statsService struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	events       repository.TerminalEventRepository
	decisions    repository.DecisionRepository
	logger       DecisionLogger
	cfg          *config.Config
}

func NewStatsService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	events repository.TerminalEventRepository,
	decisions repository.DecisionRepository,
	logger DecisionLogger,
	cfg *config.Config,
) StatsService {
	return &statsService{
		appointments: appointments,
		patients:     patients,
		events:       events,
		decisions:    decisions,
		logger:       logger,
		cfg:          cfg,
	}
}

// Collect gathers the period counters concurrently; the stats endpoint is an
// operator dashboard, one slow counter should not serialize the rest.
func (s *statsService) Collect(ctx context.Context, period string) (*model.AccessStats, error) {
	normalized, since, err := resolvePeriod(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	var (
		created, active, patients, events, allowed, denied       int64
		errCreated, errActive, errPatients, errEvents, errDecide error
	)

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		created, errCreated = s.appointments.CountCreatedSince(ctx, since)
	}()

	go func() {
		defer wg.Done()
		active, errActive = s.appointments.CountActive(ctx, time.Now().UTC())
	}()

	go func() {
		defer wg.Done()
		patients, errPatients = s.patients.Count(ctx)
	}()

	go func() {
		defer wg.Done()
		events, errEvents = s.events.CountSince(ctx, since)
	}()

	go func() {
		defer wg.Done()
		allowed, errDecide = s.decisions.CountByDecisionSince(ctx, model.DecisionAllow, since)
		if errDecide != nil {
			return
		}
		denied, errDecide = s.decisions.CountByDecisionSince(ctx, model.DecisionDeny, since)
	}()

	wg.Wait()

	for _, collectErr := range []error{errCreated, errActive, errPatients, errEvents, errDecide} {
		if collectErr != nil {
			s.cfg.Log.Error("Failed to collect access stats", "period", normalized, "error", collectErr)
			return nil, apperrors.Internal("Failed to collect stats", collectErr)
		}
	}

	return &model.AccessStats{
		Period:              normalized,
		Since:               since,
		AppointmentsCreated: created,
		ActiveAppointments:  active,
		TotalPatients:       patients,
		EventsReceived:      events,
		DecisionsAllowed:    allowed,
		DecisionsDenied:     denied,
		DecisionLogFailures: s.logger.Failures(),
	}, nil
}

// resolvePeriod maps the period name to its start. "today" starts at UTC
// midnight; week and month are rolling windows.
func resolvePeriod(period string, now time.Time) (string, time.Time, error) {
	if period == "" {
		period = model.StatsPeriodToday
	}

	switch period {
	case model.StatsPeriodToday:
		year, month, day := now.Date()
		return period, time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
	case model.StatsPeriodWeek:
		return period, now.Add(-7 * 24 * time.Hour), nil
	case model.StatsPeriodMonth:
		return period, now.Add(-30 * 24 * time.Hour), nil
	default:
		return "", time.Time{}, apperrors.InvalidInput("period must be one of: today, week, month")
	}
}
