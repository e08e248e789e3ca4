package health

import (
	"log/slog"
	"net/http"

	apphealth "3tcapital/ms_fiscal_core/internal/application/health"
	httpjson "3tcapital/ms_fiscal_core/internal/infrastructure/http"
)

// Handler bridges HTTP traffic with the health application service.
type Handler struct {
	service *apphealth.Service
	log     *slog.Logger
}

func NewHandler(service *apphealth.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// Status answers 200 when everything is up and 503 otherwise.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status(r.Context())

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
		if h.log != nil {
			h.log.Warn("health check failed", "dependencies", status.Dependencies)
		}
	}
	httpjson.WriteJSON(w, code, status, h.log)
}
