package report

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
)

// Handler exposes report and streak endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Submit serves POST /reports: 201 for the day's first report, 200 for an edit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	res, err := h.svc.SubmitOrUpdate(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	httpx.WriteJSON(w, status, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.svc.List(r.Context(), auth.UserID(r.Context()), q.Get("from"), q.Get("to"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Latest(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Get(r.Context(), auth.UserID(r.Context()), r.PathValue("date"))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) Streak(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Streak(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httpx.WriteError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, st)
}
