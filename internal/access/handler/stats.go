package handler

import (
	"net/http"

	"medaccess/internal/access/service"
	httputil "medaccess/pkg/http"
	"medaccess/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type StatsHandler struct {
	service service.StatsService
	log     *logger.Logger
}

func NewStatsHandler(service service.StatsService, log *logger.Logger) *StatsHandler {
	return &StatsHandler{
		service: service,
		log:     log,
	}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	period := r.URL.Query().Get("period")

	stats, err := h.service.Collect(r.Context(), period)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Get", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, stats); err != nil {
		h.log.Error("failed to write success response", "handler", "Get", "operation", "WriteSuccess", "error", err)
	}
}
