package progression

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func withSecretsDir(t *testing.T, dir string) {
	t.Helper()
	prev := secretsDir
	secretsDir = dir
	t.Cleanup(func() { secretsDir = prev })
}

func TestLoadConfig_Defaults(t *testing.T) {
	withSecretsDir(t, t.TempDir()+"/")
	t.Setenv(EnvBotToken, "")
	path := writeConfig(t, `
[bot]
token = "file-token"

[db]
database = "progression"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Bot.Token)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, int64(4845), cfg.Economy.DoubleThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Economy.VoiceEvery())
	assert.Equal(t, 20*time.Second, cfg.Economy.ConfigMaxAge())
	assert.Equal(t, time.UTC, cfg.Economy.Location())
	assert.Equal(t, int64(10), cfg.Economy.Defaults().DrawCost)
}

func TestLoadConfig_Overrides(t *testing.T) {
	secrets := t.TempDir()
	withSecretsDir(t, secrets+"/")
	require.NoError(t, os.WriteFile(filepath.Join(secrets, "db_password"), []byte("from-secret\n"), 0o600))

	t.Setenv(EnvBotToken, "env-token")
	t.Setenv(EnvDBPassword, "from-env")
	path := writeConfig(t, `
[bot]
token = "file-token"

[db]
database = "progression"
password = "from-file"

[economy]
voice_interval = "1m"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Bot.Token)
	assert.Equal(t, "from-secret", cfg.DB.Password)
	assert.Equal(t, time.Minute, cfg.Economy.VoiceEvery())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing token and database",
			mutate:  func(c *Config) { c.Bot.Token = ""; c.DB.Database = "" },
			wantErr: []string{"bot token is required", "db.database is required"},
		},
		{
			name:    "bad economy values",
			mutate:  func(c *Config) { c.Economy.ResetAt = "25:99"; c.Economy.VoiceInterval = "soon"; c.Economy.Timezone = "Nowhere/City" },
			wantErr: []string{"economy.reset_at", "economy.voice_interval", "economy.timezone"},
		},
		{
			name:    "archive without bucket",
			mutate:  func(c *Config) { c.Archive.Enabled = true },
			wantErr: []string{"archive.bucket is required", "archive credentials are required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Bot.Token = "token"
			cfg.DB.Database = "progression"
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorContains(t, err, "failed to open config")
}
