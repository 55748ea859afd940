package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-guardian/internal/auth"
)

const testSecret = "guardianctl-test-secret"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "guardian.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func TestTokenIsVerifiable(t *testing.T) {
	t.Setenv("GUARDIAN_JWT_SECRET", testSecret)
	out, err := execute(t, "token", "--user", "u1", "--role", "admin", "--ttl", "1h")
	require.NoError(t, err)

	tokens, err := auth.NewTokens(testSecret, "guardian", clockwork.NewRealClock())
	require.NoError(t, err)
	p, err := tokens.Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u1", p.UserID)
	assert.True(t, p.IsAdmin())
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	t.Setenv("GUARDIAN_JWT_SECRET", testSecret)
	_, err := execute(t, "token", "--user", "u1", "--role", "root")
	assert.ErrorContains(t, err, "role must be")
}

func TestMigrateThenAuditEmptyDatabase(t *testing.T) {
	useSQLite(t)

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema is up to date")

	out, err = execute(t, "audit", "--all")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(t, "audit", "ghost")
	assert.ErrorContains(t, err, "profile not found")
}

func TestAuditNeedsExactlyOneSelector(t *testing.T) {
	_, err := execute(t, "audit")
	assert.Error(t, err)
	_, err = execute(t, "audit", "--all", "u1")
	assert.Error(t, err)
}
