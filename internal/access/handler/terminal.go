package handler

import (
	"encoding/json"
	"net/http"

	"medaccess/internal/access/service"
	apperrors "medaccess/pkg/errors"
	httputil "medaccess/pkg/http"
	"medaccess/pkg/logger"
	"medaccess/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// TerminalModeResponse is what a terminal polls on boot to learn which side
// of the door it guards.
type TerminalModeResponse struct {
	Mode   string `json:"mode"`
	DoorNo int    `json:"door_no,omitempty"`
}

type TerminalHandler struct {
	service service.TerminalService
	log     *logger.Logger
}

func NewTerminalHandler(service service.TerminalService, log *logger.Logger) *TerminalHandler {
	return &TerminalHandler{
		service: service,
		log:     log,
	}
}

func (h *TerminalHandler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var terminal model.Terminal
	if err := json.NewDecoder(r.Body).Decode(&terminal); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Register", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.Register(r.Context(), &terminal); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Register", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, terminal); err != nil {
		h.log.Error("failed to write created response", "handler", "Register", "operation", "WriteCreated", "error", err)
	}
}

func (h *TerminalHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	terminal, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, terminal); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TerminalHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	terminals, total, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, terminals, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *TerminalHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var patch model.TerminalUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Update", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	terminal, err := h.service.Update(r.Context(), id, &patch)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Update", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, terminal); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TerminalHandler) Mode(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("'ip' query parameter is required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Mode", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	terminal, err := h.service.ModeByIP(r.Context(), ip)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Mode", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, TerminalModeResponse{
		Mode:   terminal.Mode,
		DoorNo: terminal.DoorNo,
	}); err != nil {
		h.log.Error("failed to write success response", "handler", "Mode", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TerminalHandler) Open(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	if err := h.service.OpenDoor(r.Context(), id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Open", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *TerminalHandler) Probe(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	health, err := h.service.Probe(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Probe", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, health); err != nil {
		h.log.Error("failed to write success response", "handler", "Probe", "operation", "WriteSuccess", "error", err)
	}
}

// ValidateOpen validates a QR against the store and, only on an allow,
// pushes the door open over ISAPI. A deny is a 200 with the reason; a door
// that refuses the command after a consume surfaces as an error after the
// token has been handed back.
func (h *TerminalHandler) ValidateOpen(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req model.ValidateQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusOK, model.ValidateQRResponse{
			Allow:  false,
			Reason: model.ReasonMalformed,
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ValidateOpen", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	decision, appointment, err := h.service.ValidateAndOpen(r.Context(), id, req.Token)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ValidateOpen", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	resp := model.ValidateQRResponse{
		Allow:  decision.Allowed(),
		Reason: decision.Reason,
	}
	if decision.Allowed() && appointment != nil {
		resp.Appointment = &model.AppointmentSummary{
			AppointmentID: appointment.ID,
			ValidUntil:    appointment.ValidUntil,
		}
	}

	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "ValidateOpen", "operation", "WriteJSON", "error", err)
	}
}
