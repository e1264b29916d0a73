package handler

import (
	"io"
	"net"
	"net/http"

	"medaccess/internal/access/service"
	httputil "medaccess/pkg/http"
	"medaccess/pkg/logger"
	"medaccess/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// EventsHandler is the terminal webhook. After the shared-secret gate the
// endpoint always acknowledges with 200 so devices do not retry-flood; the
// receiver service owns that contract, the handler only moves bytes.
type EventsHandler struct {
	service service.ReceiverService
	log     *logger.Logger
}

func NewEventsHandler(service service.ReceiverService, log *logger.Logger) *EventsHandler {
	return &EventsHandler{
		service: service,
		log:     log,
	}
}

func (h *EventsHandler) Receive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warn("Terminal webhook body read failed", "remote_addr", r.RemoteAddr, "error", err)
		if writeErr := httputil.WriteJSON(w, http.StatusOK, model.AckMalformed()); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Receive", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	delivery := &service.EventDelivery{
		Body:         body,
		ContentType:  r.Header.Get("Content-Type"),
		RemoteIP:     remoteHost(r),
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
	}

	ack, err := h.handleDelivery(r, delivery)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Receive", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, ack); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Receive", "operation", "WriteJSON", "error", err)
	}
}

// handleDelivery contains panics from the ingest path: past the secret gate
// the device gets its ack no matter what broke underneath.
func (h *EventsHandler) handleDelivery(r *http.Request, delivery *service.EventDelivery) (ack model.EventAck, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("Terminal webhook processing panicked",
				"remote_addr", delivery.RemoteIP,
				"panic", rec,
			)
			ack = model.AckOK()
			err = nil
		}
	}()
	return h.service.HandleDelivery(r.Context(), delivery)
}

func (h *EventsHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/medical_access/hik/events/", h.Receive)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
