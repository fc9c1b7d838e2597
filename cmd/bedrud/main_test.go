package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bedrud/bedrud-go/gateway"
	"github.com/bedrud/bedrud-go/internal/fakebackend"
	"github.com/bedrud/bedrud-go/jwt"
	"github.com/bedrud/bedrud-go/session"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-password-123"
)

type cliEnv struct {
	srv   *fakebackend.Server
	alice fakebackend.User
}

// setupCLI points the CLI at a fresh backend and fresh storage directories.
func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	srv := fakebackend.Start(fakebackend.Options{RotateRefresh: true})
	t.Cleanup(srv.Close)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("CONFIG_PATH", "")
	t.Setenv("BEDRUD_BACKEND_API", srv.URL())
	t.Setenv("BEDRUD_STORAGE_DIR", t.TempDir())
	t.Setenv("BEDRUD_RUNTIME_DIR", t.TempDir())
	t.Setenv("BEDRUD_STORAGE_DURABLE", "file")
	t.Setenv("BEDRUD_LOG_LEVEL", "error")

	return &cliEnv{srv: srv, alice: srv.AddUser(testEmail, testPassword, "Alice")}
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, "", args...)
	require.NoError(t, err, "bedrud %s", strings.Join(args, " "))
	return out
}

func decodeJSON(t *testing.T, out string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &m), out)
	return m
}

func TestLoginWhoamiLogout(t *testing.T) {
	env := setupCLI(t)

	out := mustRun(t, "login", "-e", testEmail, "-p", testPassword)
	require.Contains(t, out, "id: "+env.alice.ID)
	require.Contains(t, out, "email: "+testEmail)

	who := decodeJSON(t, mustRun(t, "-o", "json", "whoami"))
	require.Equal(t, env.alice.ID, who["id"])
	require.Equal(t, "Alice", who["name"])

	status := decodeJSON(t, mustRun(t, "-o", "json", "status"))
	require.Equal(t, "authenticated", status["state"])
	require.Equal(t, false, status["admin"])

	require.Equal(t, "logged out\n", mustRun(t, "logout"))

	_, err := runCLI(t, "", "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)
	status = decodeJSON(t, mustRun(t, "-o", "json", "status"))
	require.Equal(t, "unauthenticated", status["state"])
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	env := setupCLI(t)

	out, err := runCLI(t, testPassword+"\n", "-o", "json", "login", "-e", testEmail)
	require.NoError(t, err)
	require.Equal(t, env.alice.ID, decodeJSON(t, out)["id"])

	_, err = runCLI(t, "", "login", "-e", testEmail)
	require.ErrorContains(t, err, "password is required")
}

func TestLoginFailureIsGeneric(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "login", "-e", testEmail, "-p", "wrong")
	require.EqualError(t, err, "Login failed")
}

func TestRememberSurvivesRuntimeDirLoss(t *testing.T) {
	env := setupCLI(t)

	mustRun(t, "login", "-e", testEmail, "-p", testPassword, "--remember")
	t.Setenv("BEDRUD_RUNTIME_DIR", t.TempDir())
	who := decodeJSON(t, mustRun(t, "-o", "json", "whoami"))
	require.Equal(t, env.alice.ID, who["id"])

	mustRun(t, "logout")
	mustRun(t, "login", "-e", testEmail, "-p", testPassword)
	t.Setenv("BEDRUD_RUNTIME_DIR", t.TempDir())
	_, err := runCLI(t, "", "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)
}

func TestTokenRefreshesExpiredSession(t *testing.T) {
	env := setupCLI(t)

	env.srv.SetAccessTTL(-time.Minute)
	mustRun(t, "login", "-e", testEmail, "-p", testPassword)
	env.srv.SetAccessTTL(time.Hour)

	status := decodeJSON(t, mustRun(t, "-o", "json", "status"))
	require.Equal(t, "expired", status["state"])

	raw := strings.TrimSpace(mustRun(t, "token", "--raw"))
	claims, err := env.srv.Verify(raw)
	require.NoError(t, err)
	require.Equal(t, env.alice.ID, claims.UserID)
	require.EqualValues(t, 1, env.srv.RefreshCalls())

	tok := decodeJSON(t, mustRun(t, "-o", "json", "token"))
	require.Equal(t, raw, tok["token"])
	require.Equal(t, env.alice.ID, tok["userId"])
	require.EqualValues(t, 1, env.srv.RefreshCalls())
}

func TestTokenWithoutSession(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "token")
	require.ErrorIs(t, err, errNotLoggedIn)
}

func TestRegisterDerivesProfile(t *testing.T) {
	setupCLI(t)

	out := decodeJSON(t, mustRun(t, "-o", "json", "register", "-e", "bob@example.com", "-n", "Bob", "-p", "bob-password-123"))
	require.Equal(t, "bob@example.com", out["email"])
	require.Equal(t, "Bob", out["name"])
	require.NotEmpty(t, out["id"])
}

func TestOAuthStart(t *testing.T) {
	setupCLI(t)

	out := mustRun(t, "-o", "json", "oauth", "github")
	require.NotEmpty(t, strings.TrimSpace(out))

	_, err := runCLI(t, "", "oauth", "myspace")
	require.Error(t, err)
}

func TestRoomsCreateAndJoin(t *testing.T) {
	setupCLI(t)
	mustRun(t, "login", "-e", testEmail, "-p", testPassword)

	room := decodeJSON(t, mustRun(t, "-o", "json", "rooms", "create", "--name", "standup", "--max-participants", "5"))
	require.Equal(t, "standup", room["name"])
	require.EqualValues(t, 5, room["maxParticipants"])

	join := decodeJSON(t, mustRun(t, "-o", "json", "rooms", "join", "standup"))
	require.False(t, join["connected"].(bool))
	credential := join["room"].(map[string]any)["token"].(string)
	require.True(t, strings.HasPrefix(credential, "lk_"))

	_, err := runCLI(t, "", "rooms", "join", "missing")
	require.Equal(t, 404, gateway.StatusCode(err))
}

func TestRoomsRequireSession(t *testing.T) {
	setupCLI(t)

	_, err := runCLI(t, "", "rooms", "create")
	require.Equal(t, 401, gateway.StatusCode(err))
}

func TestAdminCommands(t *testing.T) {
	env := setupCLI(t)
	env.srv.AddUser("root@example.com", "root-password-123", "Root", jwt.AdminAccess)

	mustRun(t, "login", "-e", testEmail, "-p", testPassword)
	_, err := runCLI(t, "", "admin", "users", "list")
	require.Equal(t, 403, gateway.StatusCode(err))

	mustRun(t, "login", "-e", "root@example.com", "-p", "root-password-123")
	status := decodeJSON(t, mustRun(t, "-o", "json", "status"))
	require.Equal(t, true, status["admin"])

	room := decodeJSON(t, mustRun(t, "-o", "json", "rooms", "create", "--name", "board"))
	roomID := room["id"].(string)

	list := decodeJSON(t, mustRun(t, "-o", "json", "admin", "rooms", "list", "--limit", "10"))
	require.EqualValues(t, 1, list["total"])

	updated := decodeJSON(t, mustRun(t, "-o", "json", "admin", "rooms", "update", roomID, "--active=false"))
	require.Equal(t, false, updated["isActive"])
	require.Equal(t, "board", updated["name"])

	_, err = runCLI(t, "", "admin", "rooms", "update", roomID)
	require.ErrorContains(t, err, "nothing to update")

	tok := decodeJSON(t, mustRun(t, "-o", "json", "admin", "rooms", "token", roomID, "--user", env.alice.ID))
	require.True(t, strings.HasPrefix(tok["token"].(string), "lk_"))

	out := mustRun(t, "admin", "users", "status", env.alice.ID, "--active=false")
	require.Equal(t, "User status updated successfully\n", out)

	users := mustRun(t, "admin", "users", "list")
	require.Contains(t, users, "email: "+testEmail)
}

func TestRedisInMemoryDurableTier(t *testing.T) {
	env := setupCLI(t)
	t.Setenv("BEDRUD_STORAGE_DURABLE", "redis")
	t.Setenv("BEDRUD_REDIS_ADDR", "memory")

	out := decodeJSON(t, mustRun(t, "-o", "json", "login", "-e", testEmail, "-p", testPassword, "--remember"))
	require.Equal(t, env.alice.ID, out["id"])
}

func TestMissingConfig(t *testing.T) {
	setupCLI(t)
	unsetEnv(t, "BEDRUD_BACKEND_API")

	_, err := runCLI(t, "", "whoami")
	require.ErrorContains(t, err, "config not found")
}

func TestConfigFileFlag(t *testing.T) {
	env := setupCLI(t)
	unsetEnv(t, "BEDRUD_BACKEND_API")

	path := t.TempDir() + "/bedrud.yaml"
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  api: \""+env.srv.URL()+"\"\n"), 0o600))

	out := decodeJSON(t, mustRun(t, "--config", path, "-o", "json", "login", "-e", testEmail, "-p", testPassword))
	require.Equal(t, env.alice.ID, out["id"])

	_, err := runCLI(t, "", "--config", path, "--log-level", "loud", "whoami")
	require.ErrorContains(t, err, "invalid log level")
}

func TestLoadtest(t *testing.T) {
	out := mustRun(t, "loadtest", "--clients", "4", "--concurrency", "8", "--ops", "200")
	require.Contains(t, out, "---- results ----")
	require.Contains(t, out, "token: ops=200 failures=0")
	require.Contains(t, out, "refresh: ops=200 failures=0")
	require.Contains(t, out, "bedrud_client_refresh_success_total")

	_, err := runCLI(t, "", "loadtest", "--clients", "0")
	require.ErrorContains(t, err, "must be > 0")
}

func TestPrintValue(t *testing.T) {
	profile := session.UserProfile{ID: "u1", Email: "a@example.com", Name: "A", PictureURL: "https://img"}

	var buf bytes.Buffer
	require.NoError(t, printValue(&buf, "yaml", profile))
	require.Equal(t, "email: a@example.com\nid: u1\nname: A\npictureUrl: https://img\n", buf.String())

	buf.Reset()
	require.NoError(t, printValue(&buf, "json", profile))
	require.Contains(t, buf.String(), `"pictureUrl": "https://img"`)

	require.ErrorContains(t, printValue(&buf, "xml", profile), "unknown output format")
}

func TestVersion(t *testing.T) {
	require.Equal(t, "bedrud version "+Version+"\n", mustRun(t, "version"))
}
