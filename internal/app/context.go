package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"roadline/internal/config"
	"roadline/internal/db"
	"roadline/internal/domain"
	"roadline/internal/engine"
	"roadline/internal/logging"
	"roadline/internal/migrate"
)

// Workspace bundles everything a command needs once the workspace is open.
type Workspace struct {
	Dir    string
	Config *config.Config
	Logger *zap.Logger
	DB     *sql.DB
	Engine engine.Engine
}

// Open loads roadline.yml (defaults when absent), applies environment and
// flag overrides from v, opens the database and brings the schema up to
// date.
func Open(ctx context.Context, dir string, v *viper.Viper) (*Workspace, error) {
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if err := config.ApplyEnv(cfg, v); err != nil {
			return nil, err
		}
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Workspace{
		Dir:    dir,
		Config: cfg,
		Logger: log,
		DB:     conn,
		Engine: engine.New(conn, cfg, log),
	}, nil
}

func (w *Workspace) Close() error {
	if w == nil {
		return nil
	}
	if w.Logger != nil {
		_ = w.Logger.Sync()
	}
	if w.DB != nil {
		return w.DB.Close()
	}
	return nil
}

// ParseRepoKey reads "owner/repo" and attaches the optional project.
func ParseRepoKey(arg, project string) (domain.RepoKey, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(arg), "/")
	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return domain.RepoKey{}, fmt.Errorf("expected owner/repo, got %q", arg)
	}
	return domain.RepoKey{Owner: owner, Repo: name, Project: strings.TrimSpace(project)}, nil
}
