package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	RegisterFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"CONFIG", "BASE_URL", "LOGIN_URL", "USERNAME", "PASSWORD", "STATE_PATH", "DB_PATH", "HEADLESS", "LOG_LEVEL", "PROXY", "CHROME_PATH", "USER_AGENT"} {
		t.Setenv(EnvPrefix+k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(newCmd(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultBaseURL+"/Login", cfg.LoginURL)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30, cfg.WindowSpanDays)
	assert.Equal(t, 15, cfg.WindowOverlapDays)
	assert.Equal(t, 4*time.Second, cfg.PageDelayMax)
	assert.Equal(t, 3*time.Second, cfg.OrderDelayMax)
	assert.Equal(t, DefaultStateFile, filepath.Base(cfg.StorageStatePath))
	assert.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_Layering(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cmhistory.json5")
	file := `{
		// comments are allowed
		baseUrl: "https://market.test/en/Magic/",
		username: "from-file",
		headless: false,
		pageDelayMax: "6s",
		windowSpanDays: 20,
		windowOverlapDays: 10,
	}`
	require.NoError(t, os.WriteFile(path, []byte(file), 0o600))
	t.Setenv(EnvPrefix+"USERNAME", "from-env")
	t.Setenv(EnvPrefix+"PASSWORD", "pw")

	cfg, err := Load(newCmd(t, "--config", path, "--db", "/tmp/x.db", "--timeout", "45s", "-v"))
	require.NoError(t, err)

	assert.Equal(t, "https://market.test/en/Magic", cfg.BaseURL)
	assert.Equal(t, "https://market.test/en/Magic/Login", cfg.LoginURL)
	assert.Equal(t, "from-env", cfg.Username)
	assert.Equal(t, "pw", cfg.Password)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 6*time.Second, cfg.PageDelayMax)
	assert.Equal(t, 3*time.Second, cfg.OrderDelayMax)
	assert.Equal(t, 20, cfg.WindowSpanDays)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 45*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FileExplicitZeros(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cmhistory.json5")
	file := `{
		windowOverlapDays: 0,
		settleDelay: "0s",
		pageDelayMax: "0s",
		orderDelayMax: "0s",
	}`
	require.NoError(t, os.WriteFile(path, []byte(file), 0o600))

	cfg, err := Load(newCmd(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.WindowOverlapDays)
	assert.Equal(t, time.Duration(0), cfg.SettleDelay)
	assert.Equal(t, time.Duration(0), cfg.PageDelayMax)
	assert.Equal(t, time.Duration(0), cfg.OrderDelayMax)
	assert.Equal(t, 30, cfg.WindowSpanDays)
	assert.Equal(t, DefaultNavigationTimeout, cfg.NavigationTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "relative base url", env: map[string]string{"BASE_URL": "cardmarket.com"}},
		{name: "bad headless", env: map[string]string{"HEADLESS": "sometimes"}},
		{name: "overlap not below span", file: `{windowSpanDays: 10, windowOverlapDays: 10}`},
		{name: "bad duration", file: `{settleDelay: "soon"}`},
		{name: "unknown log level", file: `{logLevel: "chatty"}`},
		{name: "malformed file", file: `{baseUrl: `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(EnvPrefix+k, v)
			}
			var args []string
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "c.json5")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o600))
				args = []string{"--config", path}
			}
			_, err := Load(newCmd(t, args...))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(newCmd(t, "--config", filepath.Join(t.TempDir(), "nope.json5")))
	assert.Error(t, err)
}

func TestLoad_ShowBrowser(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(newCmd(t, "--show-browser"))
	require.NoError(t, err)
	assert.False(t, cfg.Headless)
}
