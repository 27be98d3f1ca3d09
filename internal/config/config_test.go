package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "auto", cfg.Domain)
	assert.Equal(t, "sqlite", cfg.Source.Kind)
	assert.Equal(t, 30*time.Second, cfg.Execute.Timeout)
	assert.True(t, cfg.Gazetteer.Enabled)
	assert.Equal(t, 3, cfg.Gazetteer.Budget)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Gazetteer.Options.BaseURL)
	assert.Equal(t, 1.0, cfg.Gazetteer.Options.RequestsPerSecond)
	assert.Equal(t, "plain", cfg.Narrator.Kind)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
data_dir: datasets
domain: era5
execute:
  timeout: 5s
gazetteer:
  enabled: false
  user_agent: climq-test
narrator:
  kind: chat
  chat:
    base_url: http://localhost:8080/v1
    model: climategpt
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "datasets"), cfg.DataDir)
	assert.Equal(t, "era5", cfg.Domain)
	assert.Equal(t, 5*time.Second, cfg.Execute.Timeout)
	assert.False(t, cfg.Gazetteer.Enabled)
	assert.Equal(t, "climq-test", cfg.Gazetteer.Options.UserAgent)
	assert.Equal(t, "chat", cfg.Narrator.Kind)
	assert.Equal(t, "http://localhost:8080/v1", cfg.Narrator.Chat.BaseURL)
	assert.Equal(t, "climategpt", cfg.Narrator.Chat.Model)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "domain: fema\nnarrator:\n  kind: chat\n")
	t.Setenv("CLIMQ_DOMAIN", "edgar")
	t.Setenv("CLIMQ_NARRATOR_CHAT_API_KEY", "secret")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "edgar", cfg.Domain)
	assert.Equal(t, "secret", cfg.Narrator.Chat.APIKey)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown source", "source:\n  kind: postgres\n", "source.kind"},
		{"rpc without command", "source:\n  kind: rpc\n", "source.command"},
		{"unknown narrator", "narrator:\n  kind: poem\n", "narrator.kind"},
		{"negative timeout", "execute:\n  timeout: -1s\n", "execute.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.yaml)

			_, err := Load(dir, "")
			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName+".yaml"), []byte(content), 0o644))
}
