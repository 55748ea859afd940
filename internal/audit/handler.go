package audit

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// User serves GET /admin/audit/{uid}.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.AuditUser(r.Context(), r.PathValue("uid"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}
