package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Player: PlayerConfig{BaseURL: "http://127.0.0.1:8080/", TimeoutMs: 5000},
		Poll: PollConfig{
			IntervalMs:    1000,
			RetryDelayMs:  500,
			LockTimeoutMs: 5000,
			InitialQueue:  "main",
			MaxErrors:     20,
		},
		Server: ServerConfig{Addr: ":8090", Token: "test-token"},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "missing token",
			modify:  func(c *Config) { c.Server.Token = "" },
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name:    "missing base url",
			modify:  func(c *Config) { c.Player.BaseURL = "" },
			wantErr: true,
			errMsg:  "BaseURL",
		},
		{
			name:    "unsupported scheme",
			modify:  func(c *Config) { c.Player.BaseURL = "ftp://vlc/" },
			wantErr: true,
			errMsg:  "scheme",
		},
		{
			name:    "unknown initial queue",
			modify:  func(c *Config) { c.Poll.InitialQueue = "video" },
			wantErr: true,
			errMsg:  "InitialQueue",
		},
		{
			name:    "interval too short",
			modify:  func(c *Config) { c.Poll.IntervalMs = 10 },
			wantErr: true,
			errMsg:  "IntervalMs",
		},
		{
			name:    "retry slower than interval",
			modify:  func(c *Config) { c.Poll.RetryDelayMs = 2000 },
			wantErr: true,
			errMsg:  "retry_delay_ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if tt.wantErr {
				require.Error(t, err, "expected validation to fail")
				assert.Contains(t, err.Error(), tt.errMsg,
					"error message should mention the problematic field")
			} else {
				assert.NoError(t, err, "expected validation to pass")
			}
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PANEL_TOKEN", "")
	t.Setenv("VLC_PASSWORD", "")
	t.Setenv("VLC_URL", "")

	cfg, err := Load(writeConfig(t, `
server:
  token: file-token
render:
  sinks:
    log:
      enabled: true
      settings:
        level: info
    other:
      enabled: false
`))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080/", cfg.Player.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Player.Timeout())
	assert.Equal(t, time.Second, cfg.Poll.Interval())
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.RetryDelay())
	assert.Equal(t, 5*time.Second, cfg.Poll.LockTimeout())
	assert.Equal(t, "main", cfg.Poll.InitialQueue)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	assert.Contains(t, cfg.Browse.Extensions, "mp3")
	assert.Equal(t, map[string]map[string]any{"log": {"level": "info"}}, cfg.Render.EnabledSinks())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PANEL_TOKEN", "env-token")
	t.Setenv("VLC_PASSWORD", "env-password")
	t.Setenv("VLC_URL", "http://10.0.0.2:8080/")

	cfg, err := Load(writeConfig(t, `
player:
  base_url: http://127.0.0.1:9090/
  password: file-password
server:
  token: file-token
`))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.2:8080/", cfg.Player.BaseURL)
	assert.Equal(t, "env-password", cfg.Player.Password)
	assert.Equal(t, "env-token", cfg.Server.Token)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("PANEL_TOKEN", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "player: ["))
	assert.ErrorContains(t, err, "failed to parse config file")

	_, err = Load(writeConfig(t, "poll:\n  interval_ms: 1000\n"))
	assert.ErrorContains(t, err, "config validation failed")
}
