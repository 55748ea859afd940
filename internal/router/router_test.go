package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/app"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/config"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/router"
	"github.com/ovaphlow/pitchfork/service-guardian/internal/testutil"
)

type server struct {
	h      http.Handler
	tokens *auth.Tokens
}

func newServer(t *testing.T) *server {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testutil.Epoch)
	logger := zap.NewNop().Sugar()
	a := app.New(testutil.NewDB(t), app.Options{
		Tables:   config.DefaultTables(),
		Clock:    clock,
		Location: time.UTC,
	}, logger)
	tokens, err := auth.NewTokens("router-test-secret-0123", "guardian", clock)
	require.NoError(t, err)
	return &server{h: a.Handler(tokens, logger), tokens: tokens}
}

func (s *server) do(t *testing.T, method, path, user, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, router.Prefix+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, router.Prefix+path, nil)
	}
	if user != "" {
		raw, err := s.tokens.Issue(user, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+raw)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHealthIsPublicAndCarriesHeaders(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, router.Prefix+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAuthGuards(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/profile", "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = s.do(t, http.MethodPost, "/admin/users/u1/approve", "u1", auth.RoleMember, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/audit/u1", "u1", auth.RoleMember, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberJourney(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/profile", "u1", auth.RoleMember, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/users/u1/approve", "root", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := `{"date":"2024-01-05","team_id":"team-a","metrics":{"ig":{"followers":10,"posts":1,"views":100}}}`
	rec = s.do(t, http.MethodPost, "/reports", "u1", auth.RoleMember, report)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/reports", "u1", auth.RoleMember, report)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/reports", "u1", auth.RoleMember, `{"date":"2024-01-05","metrics":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/reports/2024-01-05", "u1", auth.RoleMember, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/guardians/ember/invest", "u1", auth.RoleMember, `{"amount":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/guardians/ember/invest", "u1", auth.RoleMember, `{"amount":100000}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_ENERGY", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/missions/today", "u1", auth.RoleMember, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/missions/daily_report/claim", "u1", auth.RoleMember, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/missions/bonus/claim", "u1", auth.RoleMember, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NOT_COMPLETED", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/energy/history?limit=10", "u1", auth.RoleMember, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Entries []json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history.Entries, 3)

	rec = s.do(t, http.MethodGet, "/streak", "u1", auth.RoleMember, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/admin/audit/u1", "root", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var audit struct {
		UserID string `json:"user_id"`
		Score  int    `json:"consistency_score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &audit))
	assert.Equal(t, "u1", audit.UserID)
}
