// Package httpx holds the JSON request/response helpers shared by handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/apperr"
)

const maxBody = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error *apperr.Error `json:"error"`
}

// WriteError renders err as {"error": {...}}. Errors outside the taxonomy are
// logged and reported as a generic internal error.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, r *http.Request, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: &apperr.Error{Code: "INTERNAL", Message: "internal error"}})
		return
	}
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Warnw("request failed", "method", r.Method, "path", r.URL.Path, "code", e.Code)
	} else {
		logger.Debugw("request rejected", "method", r.Method, "path", r.URL.Path, "code", e.Code, "field", e.Field)
	}
	WriteJSON(w, status, errorBody{Error: e})
}

// DecodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("body", "invalid JSON payload: "+err.Error())
	}
	return nil
}

// QueryInt parses an optional integer query parameter bounded to [min, max].
func QueryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, apperr.Validation(name, "must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return n, nil
}
