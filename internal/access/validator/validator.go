package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"medaccess/pkg/logger"
	"medaccess/pkg/model"

	"github.com/go-playground/validator/v10"
)

var (
	// QR tokens are 12 characters from the A-Z0-9 alphabet.
	qrTokenRegex = regexp.MustCompile(`^[A-Z0-9]{12}$`)

	// Medical card numbers: 1-20 characters, letters/digits/dash.
	cardNumberRegex = regexp.MustCompile(`^[A-Z0-9-]{1,20}$`)

	// MAC addresses arrive normalized to 12 lowercase hex digits.
	macAddressRegex = regexp.MustCompile(`^[0-9a-f]{12}$`)
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type AccessValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewAccessValidator(log *logger.Logger) *AccessValidator {
	v := validator.New()

	if err := v.RegisterValidation("qr_token", validateQRToken); err != nil {
		log.Fatal("Failed to register 'qr_token' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("card_number", validateCardNumber); err != nil {
		log.Fatal("Failed to register 'card_number' validator",
			"error", err,
		)
	}
	if err := v.RegisterValidation("mac_address", validateMACAddress); err != nil {
		log.Fatal("Failed to register 'mac_address' validator",
			"error", err,
		)
	}

	log.Info("Access validator initialized successfully")

	return &AccessValidator{
		validate: v,
		logger:   log,
	}
}

func validateQRToken(fl validator.FieldLevel) bool {
	return qrTokenRegex.MatchString(fl.Field().String())
}

func validateCardNumber(fl validator.FieldLevel) bool {
	return cardNumberRegex.MatchString(fl.Field().String())
}

func validateMACAddress(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return macAddressRegex.MatchString(value)
}

func (v *AccessValidator) ValidateCreateAppointment(req *model.CreateAppointmentRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

func (v *AccessValidator) ValidateAppointment(appointment *model.Appointment) error {
	if err := v.validate.Struct(appointment); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if !appointment.ValidUntil.After(appointment.ValidFrom) {
		return ValidationErrors{
			ValidationError{
				Field:   "ValidUntil",
				Message: "valid_until must be after valid_from",
			},
		}
	}

	return nil
}

func (v *AccessValidator) ValidateTerminal(terminal *model.Terminal) error {
	if err := v.validate.Struct(terminal); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

func (v *AccessValidator) ValidateTerminalUpdate(update *model.TerminalUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	return nil
}

func (v *AccessValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +972501234567)", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "ip":
			message = fmt.Sprintf("%s must be a valid IP address", err.Field())
		case "qr_token":
			message = fmt.Sprintf("%s must be 12 characters A-Z or 0-9", err.Field())
		case "card_number":
			message = fmt.Sprintf("%s must be 1-20 characters A-Z, 0-9 or dash", err.Field())
		case "mac_address":
			message = fmt.Sprintf("%s must be 12 hex digits", err.Field())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "len":
			message = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "hexadecimal":
			message = fmt.Sprintf("%s must be hexadecimal", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

// WindowBounds resolves the requested validity window against defaults:
// a missing valid_from starts now, a missing duration uses defaultHours.
func WindowBounds(req *model.CreateAppointmentRequest, now time.Time, defaultHours int) (time.Time, time.Time) {
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = *req.ValidFrom
	}

	hours := defaultHours
	if req.DurationHours > 0 {
		hours = req.DurationHours
	}

	return validFrom, validFrom.Add(time.Duration(hours) * time.Hour)
}
