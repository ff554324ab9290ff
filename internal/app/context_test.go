package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadline/internal/config"
	"roadline/internal/domain"
	"roadline/internal/migrate"
)

func TestParseRepoKey(t *testing.T) {
	key, err := ParseRepoKey(" acme/site ", "web")
	require.NoError(t, err)
	assert.Equal(t, domain.RepoKey{Owner: "acme", Repo: "site", Project: "web"}, key)

	for _, bad := range []string{"", "acme", "acme/", "/site", "a/b/c"} {
		_, err := ParseRepoKey(bad, "")
		assert.Error(t, err, bad)
	}
}

func TestOpenBootstrapsWorkspace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("roadmap:\n  default_branch: trunk\n"), 0o644))
	t.Setenv("ROADLINE_CHECKS_MAX_CONCURRENCY", "3")

	ws, err := Open(context.Background(), dir, config.NewViper())
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, "trunk", ws.Config.Roadmap.DefaultBranch)
	assert.Equal(t, 3, ws.Config.Checks.MaxConcurrency)

	current, err := migrate.Current(context.Background(), ws.DB)
	require.NoError(t, err)
	latest, err := migrate.Latest()
	require.NoError(t, err)
	assert.Equal(t, latest, current)
}

func TestOpenRejectsBrokenConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(config.Path(dir), []byte("checks:\n  timeout_seconds: -1\n"), 0o644))
	_, err := Open(context.Background(), dir, nil)
	assert.Error(t, err)
}
