package router

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/audit"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/energy"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/guardian"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/mission"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/report"
)

// Prefix is the mount point of the API.
const Prefix = "/guardian-api/v1"

const requestIDHeader = "X-Request-ID"

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the handlers and collaborators the routes are wired to.
type Deps struct {
	Tokens    *auth.Tokens
	DB        Pinger
	Reports   *report.Handler
	Guardians *guardian.Handler
	Missions  *mission.Handler
	Energy    *energy.Handler
	Audit     *audit.Handler
}

// statusRecorder wraps http.ResponseWriter to capture status and size.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.size += n
	return n, err
}

// RequestIDMiddleware echoes the caller's X-Request-ID or assigns a fresh uuid.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
				r.Header.Set(requestIDHeader, id)
			}
			w.Header().Set(requestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs every request at debug level, and server errors at warn.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Header.Get(requestIDHeader),
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"size", rec.size,
			}
			if status >= http.StatusInternalServerError {
				logger.Warnw("http request failed", kv...)
				return
			}
			logger.Debugw("http request", kv...)
		})
	}
}

// SecurityHeadersMiddleware sets conservative headers for a JSON API.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts the API on a stdlib ServeMux. Everything except the
// health check requires a bearer token; /admin routes require the admin role.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST "+Prefix+"/reports", d.Reports.Submit)
	api.HandleFunc("GET "+Prefix+"/reports", d.Reports.List)
	api.HandleFunc("GET "+Prefix+"/reports/latest", d.Reports.Latest)
	api.HandleFunc("GET "+Prefix+"/reports/{date}", d.Reports.Get)
	api.HandleFunc("GET "+Prefix+"/streak", d.Reports.Streak)

	api.HandleFunc("GET "+Prefix+"/profile", d.Guardians.Profile)
	api.HandleFunc("POST "+Prefix+"/guardians/{id}/invest", d.Guardians.Invest)
	api.HandleFunc("POST "+Prefix+"/guardians/{id}/unlock", d.Guardians.Unlock)
	api.HandleFunc("PUT "+Prefix+"/guardians/{id}/active", d.Guardians.SetActive)
	api.HandleFunc("PUT "+Prefix+"/guardians/{id}/memo", d.Guardians.SetMemo)

	api.HandleFunc("GET "+Prefix+"/missions/today", d.Missions.Today)
	api.HandleFunc("POST "+Prefix+"/missions/bonus/claim", d.Missions.ClaimBonus)
	api.HandleFunc("POST "+Prefix+"/missions/{id}/claim", d.Missions.Claim)

	api.HandleFunc("GET "+Prefix+"/energy/history", d.Energy.History)

	admin := http.NewServeMux()
	admin.HandleFunc("POST "+Prefix+"/admin/users/{uid}/approve", d.Guardians.Approve)
	admin.HandleFunc("GET "+Prefix+"/admin/audit/{uid}", d.Audit.User)
	api.Handle(Prefix+"/admin/", auth.RequireAdmin(logger)(admin))

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				logger.Warnw("health check: db ping failed", "err", err)
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle(Prefix+"/", auth.Middleware(d.Tokens, logger)(api))

	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
