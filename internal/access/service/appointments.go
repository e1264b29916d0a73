package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	accesserrors "medaccess/internal/access/errors"
	"medaccess/internal/access/repository"
	"medaccess/internal/access/validator"
	"medaccess/pkg/config"
	apperrors "medaccess/pkg/errors"
	"medaccess/pkg/model"
	"medaccess/pkg/sanitizer"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	qrTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	qrTokenLength   = 12

	// maxTokenAttempts bounds collision retries. With 36^12 tokens a single
	// retry is already rare; hitting the bound means the RNG or the unique
	// index is broken.
	maxTokenAttempts = 5
)

type AppointmentService interface {
	Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.AppointmentCreated, error)
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, int64, error)
	Revoke(ctx context.Context, id string) error
}

type appointmentService struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	validator    *validator.AccessValidator
	cfg          *config.Config
}

func NewAppointmentService(
	appointments repository.AppointmentRepository,
	patients repository.PatientRepository,
	validator *validator.AccessValidator,
	cfg *config.Config,
) AppointmentService {
	return &appointmentService{
		appointments: appointments,
		patients:     patients,
		validator:    validator,
		cfg:          cfg,
	}
}

// Create upserts the patient by medical card number and mints an appointment
// with a fresh QR token, both inside one transaction. A token collision
// aborts the transaction and retries with a new token.
func (s *appointmentService) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.AppointmentCreated, error) {
	s.sanitize(req)
	if err := s.validator.ValidateCreateAppointment(req); err != nil {
		s.cfg.Log.Warn("Appointment validation failed", "error", err)
		return nil, apperrors.Validation("Invalid appointment input", map[string]any{"error": err.Error()})
	}

	validFrom, validUntil := validator.WindowBounds(req, time.Now().UTC(), s.cfg.DefaultValidity)

	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := generateQRToken()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate qr token", err)
		}

		appointment := &model.Appointment{
			QRToken:    token,
			ValidFrom:  validFrom,
			ValidUntil: validUntil,
		}
		var patient *model.Patient

		err = s.appointments.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
			patient, err = s.patients.UpsertByCardNumber(sessCtx, &model.Patient{
				FirstName:         req.FirstName,
				LastName:          req.LastName,
				MedicalCardNumber: req.MedicalCardNumber,
				Phone:             req.Phone,
			})
			if err != nil {
				return apperrors.Internal("Failed to upsert patient", err)
			}

			appointment.PatientID = patient.ID
			return s.appointments.Create(sessCtx, appointment)
		})
		if err != nil {
			if errors.Is(err, accesserrors.ErrDuplicateToken) {
				s.cfg.Log.Warn("QR token collision, regenerating", "attempt", attempt)
				continue
			}
			s.cfg.Log.Error("Failed to create appointment", "error", err)
			if apperrors.IsAppError(err) {
				return nil, err
			}
			return nil, apperrors.Internal("Failed to create appointment", err)
		}

		s.cfg.Log.Info("Appointment created",
			"appointment_id", appointment.ID,
			"patient_id", patient.ID,
			"valid_from", validFrom,
			"valid_until", validUntil,
		)
		return &model.AppointmentCreated{
			AppointmentID:     appointment.ID,
			QRCode:            token,
			ValidFrom:         validFrom,
			ExpiresAt:         validUntil,
			PatientName:       patient.FullName(),
			MedicalCardNumber: patient.MedicalCardNumber,
		}, nil
	}

	s.cfg.Log.Error("QR token space exhausted after retries", "attempts", maxTokenAttempts)
	return nil, apperrors.Internal("Failed to allocate qr token", accesserrors.ErrTokenGeneration)
}

func (s *appointmentService) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	appointment, err := s.appointments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, accesserrors.ErrAppointmentNotFound) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		if errors.Is(err, accesserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid appointment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve appointment", err)
	}

	return appointment, nil
}

func (s *appointmentService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Appointment, int64, error) {
	var count int64
	var appointments []*model.Appointment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.appointments.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count appointments", "error", errCount)
			errCount = apperrors.Internal("Failed to count appointments", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		appointments, errFind = s.appointments.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list appointments", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve appointments", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return appointments, count, nil
}

// Revoke permanently invalidates an appointment's QR token. Consumed
// appointments can still be revoked; the flag simply closes the door on any
// further scans.
func (s *appointmentService) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Appointment ID cannot be empty")
	}

	err := s.appointments.Revoke(ctx, id)
	if err != nil {
		if errors.Is(err, accesserrors.ErrAppointmentNotFound) {
			return apperrors.NotFoundWithID("Appointment", id)
		}
		if errors.Is(err, accesserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid appointment ID format")
		}
		return apperrors.Internal("Failed to revoke appointment", err)
	}

	s.cfg.Log.Info("Appointment revoked", "appointment_id", id)
	return nil
}

// --- Helpers ---

func (s *appointmentService) sanitize(req *model.CreateAppointmentRequest) {
	req.FirstName = sanitizer.NormalizeName(req.FirstName)
	req.LastName = sanitizer.NormalizeName(req.LastName)
	req.MedicalCardNumber = sanitizer.NormalizeCardNumber(req.MedicalCardNumber)
	req.Phone = sanitizer.NormalizePhone(req.Phone)
}

// generateQRToken draws each character independently so the token stays
// uniform over the full alphabet.
func generateQRToken() (string, error) {
	token := make([]byte, qrTokenLength)
	alphabetSize := big.NewInt(int64(len(qrTokenAlphabet)))
	for i := range token {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		token[i] = qrTokenAlphabet[n.Int64()]
	}
	return string(token), nil
}
