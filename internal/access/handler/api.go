package handler

import (
	"github.com/julienschmidt/httprouter"
)

// APIHandler groups every partner-facing route under /medical_access/api so
// the application can hang one middleware stack over all of them.
type APIHandler struct {
	appointments *AppointmentHandler
	validation   *ValidationHandler
	terminals    *TerminalHandler
	stats        *StatsHandler
}

func NewAPIHandler(
	appointments *AppointmentHandler,
	validation *ValidationHandler,
	terminals *TerminalHandler,
	stats *StatsHandler,
) *APIHandler {
	return &APIHandler{
		appointments: appointments,
		validation:   validation,
		terminals:    terminals,
		stats:        stats,
	}
}

func (h *APIHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/medical_access/api/validate-qr/", h.validation.ValidateQR)

	router.POST("/medical_access/api/create-appointment/", h.appointments.Create)
	router.GET("/medical_access/api/appointments/", h.appointments.GetAll)
	router.GET("/medical_access/api/appointments/id/:id", h.appointments.GetByID)
	router.POST("/medical_access/api/appointments/id/:id/revoke", h.appointments.Revoke)

	router.POST("/medical_access/api/terminals/", h.terminals.Register)
	router.GET("/medical_access/api/terminals/", h.terminals.GetAll)
	router.GET("/medical_access/api/terminals/mode/", h.terminals.Mode)
	router.GET("/medical_access/api/terminals/id/:id", h.terminals.GetByID)
	router.PATCH("/medical_access/api/terminals/id/:id", h.terminals.Update)
	router.POST("/medical_access/api/terminals/id/:id/open", h.terminals.Open)
	router.POST("/medical_access/api/terminals/id/:id/probe", h.terminals.Probe)
	router.POST("/medical_access/api/terminals/id/:id/validate-open", h.terminals.ValidateOpen)

	router.GET("/medical_access/api/stats/", h.stats.Get)
}
