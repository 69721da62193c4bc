package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/openapi-agent/internal/apicall"
)

var configEnvKeys = []string{
	"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "AGENT_MODEL", "AGENT_MAX_TOKENS", "AGENT_MAX_ITERATIONS",
	"AGENT_TOOLS_FILE", "TARGET_API_KEY", "TARGET_AUTH_HEADER", "TARGET_EXTRA_HEADERS",
	"REDIS_ADDR", "LOG_DIR", "LOG_FILE", "DISABLE_LOGGING", "PORT",
}

// cleanEnv isolates a test from the developer's environment.
func cleanEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GIN_MODE", "release")
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
	t.Setenv("TARGET_AUTH_SCHEME", "")
	os.Unsetenv("TARGET_AUTH_SCHEME")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cleanEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, defaultModel, cfg.Model)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "Authorization", cfg.AuthHeader)
	assert.Equal(t, "Bearer", cfg.AuthScheme)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.DisableLogging)
}

func TestLoadConfigFileAndEnvPrecedence(t *testing.T) {
	cleanEnv(t)
	path := writeFile(t, "agent.yaml", `
model: gemini-1.5-flash
max_tokens: 2048
max_iterations: 4
tools_file: tools.yaml
default_headers:
  X-Client: agent
`)
	t.Setenv("AGENT_MAX_TOKENS", "512")
	t.Setenv("TARGET_API_KEY", "tk-123")
	t.Setenv("TARGET_EXTRA_HEADERS", `{"X-Tenant": "acme", "X-Version": 2}`)
	t.Setenv("DISABLE_LOGGING", "true")

	cfg, err := LoadConfig(path, true)
	require.NoError(t, err)

	assert.Equal(t, "gemini-1.5-flash", cfg.Model)
	assert.True(t, UsesGemini(cfg.Model))
	assert.Equal(t, 512, cfg.MaxTokens, "environment wins over the file")
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, "tools.yaml", cfg.ToolsFile)
	assert.Equal(t, map[string]string{"X-Client": "agent"}, cfg.DefaultHeaders)
	assert.Equal(t, map[string]string{"X-Tenant": "acme", "X-Version": "2"}, cfg.ExtraHeaders)
	assert.True(t, cfg.DisableLogging)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "explicit file missing"},
		{name: "bad yaml", file: "model: [unclosed"},
		{name: "bad max tokens", env: map[string]string{"AGENT_MAX_TOKENS": "lots"}, file: "{}"},
		{name: "zero iterations", env: map[string]string{"AGENT_MAX_ITERATIONS": "0"}, file: "{}"},
		{name: "bad extra headers", env: map[string]string{"TARGET_EXTRA_HEADERS": "X-A: b"}, file: "{}"},
		{name: "bad disable logging", env: map[string]string{"DISABLE_LOGGING": "maybe"}, file: "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "missing.yaml")
			if tt.file != "" {
				path = writeFile(t, "agent.yaml", tt.file)
			}
			_, err := LoadConfig(path, true)
			assert.Error(t, err)
		})
	}
}

func TestInstallHeaders(t *testing.T) {
	tests := []struct {
		name string
		cfg  AppConfig
		want map[string]string
	}{
		{
			name: "bearer key",
			cfg:  AppConfig{TargetAPIKey: "tk-123", AuthHeader: "Authorization", AuthScheme: "Bearer"},
			want: map[string]string{"Authorization": "Bearer tk-123"},
		},
		{
			name: "bare key in custom header",
			cfg:  AppConfig{TargetAPIKey: "tk-123", AuthHeader: "X-API-Key"},
			want: map[string]string{"X-API-Key": "tk-123"},
		},
		{
			name: "extra headers win over defaults",
			cfg: AppConfig{
				DefaultHeaders: map[string]string{"X-Client": "file", "Accept": "text/plain"},
				ExtraHeaders:   map[string]string{"X-Client": "env"},
			},
			want: map[string]string{"X-Client": "env", "Accept": "text/plain"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := apicall.NewHeaderStore()
			tt.cfg.InstallHeaders(store)
			got := store.GetAll()
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
		})
	}
}
