package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/validade/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against an isolated VALIDADE_HOME.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("VALIDADE_HOME", t.TempDir())
	cfgFile, logLevel = "", ""

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDateCmd(t *testing.T) {
	out, err := execute(t, "date", "2031-07-04")
	require.NoError(t, err)
	assert.Equal(t, "2031-07-04\n", out)

	out, err = execute(t, "date", "10", "de", "janeiro", "de", "2031")
	require.NoError(t, err)
	assert.Equal(t, "2031-01-10\n", out)

	_, err = execute(t, "date", "leite")
	assert.Error(t, err)

	out, err = execute(t, "date", "--all", "FAB: 01/2026 LOTE 123 VAL: 10/01/2027")
	require.NoError(t, err)
	assert.Equal(t, "2027-01-10\t10/01/2027\n2026-01-31\t31/01/2026\n", out)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "validade")
}

func TestConfigValidateCmd(t *testing.T) {
	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	home := t.TempDir()
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway:\n  port: 99999\n"), 0o600))
	out, err = execute(t, "--config", path, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "gateway.port")
}

func TestConfigSetCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := execute(t, "--config", path, "config", "set", "reminders.fireAt", "08:30")
	require.NoError(t, err)
	out, err := execute(t, "--config", path, "config", "get", "reminders.fireAt")
	require.NoError(t, err)
	assert.Contains(t, out, "08:30")

	_, err = execute(t, "--config", path, "config", "set", "reminders.fireAt", "8h")
	assert.ErrorContains(t, err, "reminders.fireAt")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "08:30", cfg.Reminders.FireAt, "invalid value not saved")
}

func TestRemindersListEmpty(t *testing.T) {
	out, err := execute(t, "reminders", "list")
	require.NoError(t, err)
	assert.Equal(t, "no reminders\n", out)

	_, err = execute(t, "reminders", "delete", "nope")
	assert.ErrorContains(t, err, "not found")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("VALIDADE_TEST_DOTENV=1\n"), 0o600))
	t.Setenv("VALIDADE_TEST_DOTENV", "")
	os.Unsetenv("VALIDADE_TEST_DOTENV")

	require.NoError(t, loadEnv(filepath.Join(dir, "missing.env"), env))
	assert.Equal(t, "1", os.Getenv("VALIDADE_TEST_DOTENV"))
}

func TestHookSpecs(t *testing.T) {
	specs := hookSpecs(config.HooksConfig{Commands: []config.HookEntry{
		{Event: "reminder_fired", Command: "notify-send x", Timeout: 1500},
	}})
	require.Len(t, specs, 1)
	assert.Equal(t, "reminder_fired", specs[0].Event)
	assert.Equal(t, 1500*time.Millisecond, specs[0].Timeout)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "09:00", parseValue("09:00"))
}
