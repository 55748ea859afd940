package energy

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy/entity"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
	profile "github.com/ovaphlow/pitchfork/service-guardian/internal/profile/entity"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type HistoryResponse struct {
	Energy  profile.EnergyLedger `json:"energy"`
	Entries []*entity.Entry      `json:"entries"`
}

// History serves GET /energy/history?limit=&offset=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.QueryInt(r, "limit", 50, 1, 200)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	offset, err := httpx.QueryInt(r, "offset", 0, 0, 1<<20)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	uid := auth.UserID(r.Context())
	entries, err := h.svc.History(r.Context(), uid, limit, offset)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	bal, err := h.svc.Balance(r.Context(), uid)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, HistoryResponse{Energy: bal, Entries: entries})
}
