package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	assert.Equal(t, 1, cfg.Checks.MaxConcurrency)
	assert.Equal(t, 10*time.Second, cfg.CheckTimeout())
	assert.Equal(t, "main", cfg.Roadmap.DefaultBranch)
	assert.NotEmpty(t, cfg.Roadmap.Paths)
}

func TestLoadOptionalMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := FromYAML([]byte("checks:\n  verifier_url: https://verify.example.com/run\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://verify.example.com/run", cfg.Checks.VerifierURL)
	assert.Equal(t, 10, cfg.Checks.TimeoutSeconds)
	assert.Equal(t, "/v0", cfg.Server.BasePath)
}

func TestValidateAcceptsLevelAliases(t *testing.T) {
	for _, raw := range []string{"warning", "WARN", " debug "} {
		cfg := Default()
		cfg.Logging.Level = raw
		assert.NoError(t, cfg.Validate(), raw)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"bad url":      "checks:\n  verifier_url: ftp://x\n",
		"negative":     "checks:\n  max_concurrency: -1\n",
		"base path":    "server:\n  base_path: v0\n",
		"level":        "logging:\n  level: loud\n",
		"hook url":     "webhooks:\n  - events: [roadmap.resolved]\n",
		"empty path":   "roadmap:\n  paths: ['']\n",
		"invalid yaml": "checks: [",
	}
	for name, raw := range cases {
		_, err := FromYAML([]byte(raw))
		assert.Error(t, err, name)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roadline.yml"), []byte("roadmap:\n  paths: [plan.yml]\n"), 0o644))
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"plan.yml"}, cfg.Roadmap.Paths)

	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "not found")
}

func TestApplyEnvOverlaysEnvironment(t *testing.T) {
	t.Setenv("ROADLINE_CHECKS_VERIFIER_URL", "https://verify.example.com")
	t.Setenv("ROADLINE_CHECKS_MAX_CONCURRENCY", "4")
	t.Setenv("ROADLINE_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_TOKEN", "ghp_fallback")

	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, NewViper()))
	assert.Equal(t, "https://verify.example.com", cfg.Checks.VerifierURL)
	assert.Equal(t, 4, cfg.Checks.MaxConcurrency)
	assert.Equal(t, "ghp_fallback", cfg.GitHub.Token)
}

func TestWebhookDefaults(t *testing.T) {
	off := false
	assert.True(t, Webhook{}.Active())
	assert.False(t, Webhook{Enabled: &off}.Active())
	assert.Equal(t, 5*time.Second, Webhook{}.Timeout())
}
