package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.OpenRouterBaseURL)
	assert.Equal(t, "projects", cfg.ProjectsDir)
	assert.Equal(t, "vs-dark", cfg.EditorTheme)
	assert.Equal(t, 14, cfg.EditorFontSize)
	assert.Equal(t, 2*time.Minute, cfg.GenerationTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PROJECTS_DIR", "/tmp/deepsite-projects")
	t.Setenv("OPENROUTER_API_KEY", "sk-test")
	t.Setenv("EDITOR_FONT_SIZE", "18")
	t.Setenv("GENERATION_TIMEOUT", "45s")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/deepsite-projects", cfg.ProjectsDir)
	assert.Equal(t, "sk-test", cfg.OpenRouterAPIKey)
	assert.Equal(t, 18, cfg.EditorFontSize)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	yaml := "SERVER_ADDRESS: \":9090\"\nAPP_ENV: production\nLOG_FORMAT: json\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.IsProduction())
}

func TestLoadConfig_InvalidFontSize(t *testing.T) {
	t.Setenv("EDITOR_FONT_SIZE", "42")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EditorFontSize")
}

func TestAllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
}
