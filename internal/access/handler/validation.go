package handler

import (
	"encoding/json"
	"net/http"

	"medaccess/internal/access/repository"
	"medaccess/internal/access/service"
	httputil "medaccess/pkg/http"
	"medaccess/pkg/logger"
	"medaccess/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// ValidationHandler answers the manual/partner QR check. Every outcome is an
// HTTP 200 with {allow, reason}; deny reasons are results, not errors.
type ValidationHandler struct {
	service  service.ValidationService
	patients repository.PatientRepository
	log      *logger.Logger
}

func NewValidationHandler(service service.ValidationService, patients repository.PatientRepository, log *logger.Logger) *ValidationHandler {
	return &ValidationHandler{
		service:  service,
		patients: patients,
		log:      log,
	}
}

func (h *ValidationHandler) ValidateQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ValidateQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusOK, model.ValidateQRResponse{
			Allow:  false,
			Reason: model.ReasonMalformed,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ValidateQR", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	decision, appointment := h.service.Validate(r.Context(), req.Token, req.TerminalID)

	resp := model.ValidateQRResponse{
		Allow:  decision.Allowed(),
		Reason: decision.Reason,
	}
	if decision.Allowed() && appointment != nil {
		resp.Appointment = h.summarize(r, appointment)
	}

	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "ValidateQR", "operation", "WriteJSON", "error", err)
	}
}

// summarize is best effort: the patient name is garnish on an allow that has
// already consumed the token, so a lookup failure only drops the name.
func (h *ValidationHandler) summarize(r *http.Request, appointment *model.Appointment) *model.AppointmentSummary {
	summary := &model.AppointmentSummary{
		AppointmentID: appointment.ID,
		ValidUntil:    appointment.ValidUntil,
	}

	patient, err := h.patients.FindByID(r.Context(), appointment.PatientID)
	if err != nil {
		h.log.Warn("Patient lookup for summary failed", "patient_id", appointment.PatientID, "error", err)
		return summary
	}
	summary.PatientName = patient.FullName()

	return summary
}
