package cmd

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/tablehand/api"
	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
)

func startAPI(t *testing.T) string {
	t.Helper()
	data := api.NewData(clock.Real(), util.Argon2idParams{Time: 1, MemoryKiB: 1024, Parallelism: 1})
	require.NoError(t, api.Seed(data))
	require.NoError(t, data.AddUser("ana", "secret", "Ana", "manager"))

	a, err := api.New(data, bytes.Repeat([]byte{7}, 32), api.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(a.Close)

	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL + "/api/v1"
}

// run executes the CLI against base with a fresh data dir per test.
func run(t *testing.T, base, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--api-url", base, "--data-dir", dir, "--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestClientCommands(t *testing.T) {
	base := startAPI(t)
	dir := t.TempDir()
	t.Setenv(envStoragePassphrase, "storage-pass")
	t.Setenv(envPassword, "secret")

	_, err := run(t, base, dir, "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)

	out, err := run(t, base, dir, "login", "-u", "ana")
	require.NoError(t, err)
	assert.Equal(t, "Logged in as ana (manager)\n", out)

	out, err = run(t, base, dir, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ana (manager)")
	assert.Contains(t, out, "none open")

	out, err = run(t, base, dir, "tables", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "Table 12")

	out, err = run(t, base, dir, "tables", "open", "T3", "--guests", "2")
	require.NoError(t, err)
	assert.Equal(t, "Table 3 is occupied with 2 guests", strings.SplitN(out, " (", 2)[0])

	_, err = run(t, base, dir, "tables", "open", "T3", "--guests", "2")
	require.EqualError(t, err, "table Table 3 is already occupied")

	_, err = run(t, base, dir, "tables", "close", "T99")
	require.Error(t, err)

	out, err = run(t, base, dir, "sales", "list", "--status", "open")
	require.NoError(t, err)
	assert.Contains(t, out, "T3")

	out, err = run(t, base, dir, "cashbox", "status")
	require.NoError(t, err)
	assert.Equal(t, "No cashbox open\n", out)

	out, err = run(t, base, dir, "cashbox", "open", "--amount", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "open with 50.00")

	out, err = run(t, base, dir, "cashbox", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Opening amount: 50.00")

	out, err = run(t, base, dir, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)

	_, err = run(t, base, dir, "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)

	out, err = run(t, base, dir, "login", "-u", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "Last command before logout: tablehand logout")
}

func TestLoginRejected(t *testing.T) {
	base := startAPI(t)
	dir := t.TempDir()
	t.Setenv(envStoragePassphrase, "storage-pass")
	t.Setenv(envPassword, "wrong")

	_, err := run(t, base, dir, "login", "-u", "ana")
	require.EqualError(t, err, "invalid username or password")
}

func TestLoginNeedsStoragePassphrase(t *testing.T) {
	t.Setenv(envStoragePassphrase, "")
	t.Setenv(envPassword, "secret")
	_, err := run(t, "http://127.0.0.1:1/api/v1", t.TempDir(), "login", "-u", "ana")
	require.ErrorContains(t, err, envStoragePassphrase)
}
