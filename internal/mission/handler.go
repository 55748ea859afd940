package mission

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Today(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Claim(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ClaimAllBonus(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
