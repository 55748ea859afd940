package guardian

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
)

// Handler exposes guardian and profile endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type InvestRequest struct {
	Amount int64 `json:"amount"`
}

type MemoRequest struct {
	Memo string `json:"memo"`
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Profile(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// Invest serves POST /guardians/{id}/invest. Investing into a final-stage
// guardian answers 200 with a TERMINAL_STAGE notice and changes nothing.
func (h *Handler) Invest(w http.ResponseWriter, r *http.Request) {
	var req InvestRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	res, err := h.svc.Invest(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), req.Amount)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Unlock(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SetActive(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetMemo(w http.ResponseWriter, r *http.Request) {
	var req MemoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	v, err := h.svc.SetMemo(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), req.Memo)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// Approve serves the admin route POST /admin/users/{uid}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Approve(r.Context(), r.PathValue("uid"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}
