package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"roadline/internal/checks"
	"roadline/internal/config"
	"roadline/internal/domain"
	"roadline/internal/enrich"
	"roadline/internal/events"
	"roadline/internal/ingest"
	"roadline/internal/normalize"
	"roadline/internal/repo"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrSourceNotFound = errors.New("roadmap source not found")
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Tracker ingest.Tracker
	Config  *config.Config
	Checks  checks.Runner
	Source  checks.ContentSource
	Logger  *zap.Logger
	Now     func() time.Time
}

// New wires an engine against db using cfg for outbound endpoints. A nil
// logger discards output.
func New(db *sql.DB, cfg *config.Config, log *zap.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	exec := checks.NewExecutor(checks.Options{
		GitHubAPIURL: cfg.GitHub.APIBaseURL,
		RawBaseURL:   cfg.GitHub.RawBaseURL,
		VerifierURL:  cfg.Checks.VerifierURL,
		Timeout:      cfg.CheckTimeout(),
		Logger:       log.Named("checks"),
	})
	r := repo.Repo{DB: db}
	return Engine{
		DB:      db,
		Repo:    r,
		Events:  events.Writer{DB: db},
		Tracker: ingest.Tracker{Repo: r},
		Config:  cfg,
		Checks:  exec,
		Source:  exec.Source,
		Logger:  log,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) log() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func (e Engine) tracker() ingest.Tracker {
	t := e.Tracker
	if t.Now == nil {
		t.Now = e.now
	}
	return t
}

func validateKey(key domain.RepoKey) error {
	if strings.TrimSpace(key.Owner) == "" || strings.TrimSpace(key.Repo) == "" {
		return fmt.Errorf("%w: owner and repo are required", ErrInvalidRequest)
	}
	return nil
}

func keyFields(key domain.RepoKey) []zap.Field {
	return []zap.Field{zap.String("owner", key.Owner), zap.String("repo", key.Repo), zap.String("project", key.Project)}
}

// ResolveOptions are parameters for one resolution pass.
type ResolveOptions struct {
	Key    domain.RepoKey
	Branch string
	Mode   enrich.Mode
	// Source is a raw JSON or YAML roadmap. When both Source and Document
	// are empty the roadmap is fetched from the repository.
	Source   []byte
	Document any
	// Token and VerifierURL override the configured values for this pass.
	Token       string
	VerifierURL string
	Force       bool
	ActorID     string
}

// Resolution is a computed roadmap with the overlay applied.
type Resolution struct {
	Snapshot domain.Snapshot       `json:"snapshot"`
	View     domain.Document       `json:"view"`
	Progress domain.Progress       `json:"progress"`
	State    domain.IngestionState `json:"state"`
	// Reused is set when the stored snapshot was already current and no
	// checks ran.
	Reused bool `json:"reused"`
}

// Resolve runs normalize, enrich and store for one roadmap, then layers the
// manual overlay on the result. A repository-sourced pass is skipped when the
// ledger shows nothing changed since the last run.
func (e Engine) Resolve(ctx context.Context, opts ResolveOptions) (Resolution, error) {
	if err := validateKey(opts.Key); err != nil {
		return Resolution{}, err
	}
	if opts.Mode == "" {
		opts.Mode = enrich.ModeLive
	}
	branch := e.branch(opts.Branch)
	log := e.log().With(keyFields(opts.Key)...).With(zap.String("branch", branch), zap.String("mode", string(opts.Mode)))

	seen, err := e.tracker().Get(ctx, opts.Key)
	if err != nil {
		return Resolution{}, err
	}
	inline := len(opts.Source) > 0 || opts.Document != nil
	if !opts.Force && !inline && ingest.UpToDate(seen) {
		// The ledger is shared by all branches; a snapshot is only current
		// when it was built from the commit the ledger last saw.
		snap, err := e.Repo.GetSnapshot(ctx, opts.Key, branch)
		switch {
		case err == nil && snap.CommitSHA == deref(seen.LastCommitSHA):
			log.Debug("snapshot current, skipping pass", zap.String("run_id", snap.RunID))
			return e.render(ctx, snap, seen, true)
		case err == nil:
			log.Debug("snapshot built from another commit", zap.String("run_id", snap.RunID), zap.String("commit_sha", snap.CommitSHA))
		case !errors.Is(err, repo.ErrNotFound):
			return Resolution{}, fmt.Errorf("load snapshot: %w", err)
		}
	}

	doc, err := e.normalizeInput(ctx, opts, branch)
	if err != nil {
		return Resolution{}, err
	}
	pipe := enrich.Pipeline{Runner: e.Checks, MaxConcurrency: e.Config.Checks.MaxConcurrency, Logger: log}
	enriched, err := pipe.Enrich(ctx, doc, opts.Mode, checks.Context{
		Owner:       opts.Key.Owner,
		Repo:        opts.Key.Repo,
		Ref:         branch,
		Token:       e.token(opts.Token),
		VerifierURL: opts.VerifierURL,
	})
	if err != nil {
		return Resolution{}, err
	}

	snap := domain.Snapshot{
		Key:        opts.Key,
		Branch:     branch,
		RunID:      uuid.NewString(),
		CommitSHA:  deref(seen.LastCommitSHA),
		Mode:       string(opts.Mode),
		Document:   enriched,
		ResolvedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.SaveSnapshot(ctx, snap); err != nil {
		return Resolution{}, fmt.Errorf("save snapshot: %w", err)
	}
	if err := e.tracker().RecordRunComplete(ctx, opts.Key, seen); err != nil {
		return Resolution{}, err
	}
	progress := domain.DocumentProgress(enriched)
	if _, err := e.events().AppendNow(ctx, events.TypeRoadmapResolved, opts.Key, opts.ActorID, events.EventPayload{
		"run_id":     snap.RunID,
		"branch":     branch,
		"mode":       snap.Mode,
		"commit_sha": snap.CommitSHA,
		"progress":   string(progress),
	}); err != nil {
		return Resolution{}, fmt.Errorf("append event: %w", err)
	}
	log.Info("roadmap resolved", zap.String("run_id", snap.RunID), zap.String("progress", string(progress)))

	state, err := e.tracker().Get(ctx, opts.Key)
	if err != nil {
		return Resolution{}, err
	}
	return e.render(ctx, snap, state, false)
}

func (e Engine) normalizeInput(ctx context.Context, opts ResolveOptions, branch string) (domain.Document, error) {
	if opts.Document != nil {
		return normalize.Normalize(opts.Document)
	}
	src := opts.Source
	if len(src) == 0 {
		fetched, err := e.fetchSource(ctx, opts.Key, branch, e.token(opts.Token))
		if err != nil {
			return domain.Document{}, err
		}
		src = fetched
	}
	return normalize.NormalizeBytes(src)
}

// fetchSource returns the first configured roadmap path present at branch.
func (e Engine) fetchSource(ctx context.Context, key domain.RepoKey, branch, token string) ([]byte, error) {
	if e.Source == nil {
		return nil, fmt.Errorf("%w: no content source configured", ErrSourceNotFound)
	}
	for _, p := range e.Config.Roadmap.Paths {
		content, err := e.Source.GetFile(ctx, key.Owner, key.Repo, p, branch, token)
		if err == nil {
			e.log().Debug("roadmap source fetched", append(keyFields(key), zap.String("path", p))...)
			return []byte(content), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: tried %s at %s", ErrSourceNotFound, strings.Join(e.Config.Roadmap.Paths, ", "), branch)
}

// View returns the stored snapshot for branch with the current overlay, without
// running checks.
func (e Engine) View(ctx context.Context, key domain.RepoKey, branch string) (Resolution, error) {
	if err := validateKey(key); err != nil {
		return Resolution{}, err
	}
	snap, err := e.Repo.GetSnapshot(ctx, key, e.branch(branch))
	if err != nil {
		return Resolution{}, err
	}
	state, err := e.tracker().Get(ctx, key)
	if err != nil {
		return Resolution{}, err
	}
	return e.render(ctx, snap, state, true)
}

// Snapshot returns the stored computed document without the overlay.
func (e Engine) Snapshot(ctx context.Context, key domain.RepoKey, branch string) (domain.Snapshot, error) {
	if err := validateKey(key); err != nil {
		return domain.Snapshot{}, err
	}
	return e.Repo.GetSnapshot(ctx, key, e.branch(branch))
}

func (e Engine) render(ctx context.Context, snap domain.Snapshot, state domain.IngestionState, reused bool) (Resolution, error) {
	rec, err := e.Overlay(ctx, snap.Key)
	if err != nil {
		return Resolution{}, err
	}
	view := applyOverlay(snap.Document, rec)
	return Resolution{
		Snapshot: snap,
		View:     view,
		Progress: domain.DocumentProgress(view),
		State:    state,
		Reused:   reused,
	}, nil
}

func (e Engine) branch(b string) string {
	if b = strings.TrimSpace(b); b != "" {
		return b
	}
	if e.Config != nil && e.Config.Roadmap.DefaultBranch != "" {
		return e.Config.Roadmap.DefaultBranch
	}
	return "main"
}

func (e Engine) token(override string) string {
	if override != "" {
		return override
	}
	if e.Config != nil {
		return e.Config.GitHub.Token
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
