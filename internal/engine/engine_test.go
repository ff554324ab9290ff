package engine_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"roadline/internal/config"
	"roadline/internal/db"
	"roadline/internal/domain"
	"roadline/internal/engine"
	"roadline/internal/enrich"
	"roadline/internal/events"
	"roadline/internal/migrate"
	"roadline/internal/normalize"
	"roadline/internal/overlay"
	"roadline/internal/repo"
)

const roadmapYAML = `weeks:
  - title: Foundations
    items:
      - name: Repo scaffold
        checks:
          - type: files_exist
            files: [go.mod]
      - name: Health endpoint
        checks:
          - type: http_ok
            url: %s/health
            must_match: [ok]
      - name: Write docs
`

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Key     domain.RepoKey
	Fetches *atomic.Int32
	Health  *atomic.Int32
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	var fetches, health atomic.Int32
	health.Store(http.StatusOK)
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/acme/site/main/docs/roadmap.yml", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		fmt.Fprintf(w, roadmapYAML, srv.URL)
	})
	mux.HandleFunc("/acme/site/main/go.mod", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "module example.com/site\n")
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(health.Load()))
		fmt.Fprint(w, "ok")
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.GitHub.APIBaseURL = srv.URL
	cfg.GitHub.RawBaseURL = srv.URL
	cfg.Roadmap.Paths = []string{"docs/roadmap.json", "docs/roadmap.yml"}
	eng := engine.New(conn, cfg, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return testEnv{
		Engine:  eng,
		Ctx:     ctx,
		Key:     domain.RepoKey{Owner: "acme", Repo: "site"},
		Fetches: &fetches,
		Health:  &health,
	}
}

func findItem(t *testing.T, doc domain.Document, id string) domain.Item {
	t.Helper()
	for _, w := range doc.Weeks {
		for _, it := range w.Items {
			if it.ID == id {
				return it
			}
		}
	}
	t.Fatalf("item %s not in view", id)
	return domain.Item{}
}

func TestResolveFetchesAndEnriches(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key, ActorID: "tester"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Reused {
		t.Fatalf("first pass must run checks")
	}
	if res.Snapshot.RunID == "" || res.Snapshot.Branch != "main" {
		t.Fatalf("unexpected snapshot %+v", res.Snapshot)
	}
	scaffold := findItem(t, res.View, "repo-scaffold")
	if scaffold.Done == nil || !*scaffold.Done {
		t.Fatalf("repo-scaffold should be done: %+v", scaffold)
	}
	health := findItem(t, res.View, "health-endpoint")
	if health.Checks[0].Status != "pass" {
		t.Fatalf("health check: %+v", health.Checks[0])
	}
	if res.Progress != domain.ProgressPending {
		t.Fatalf("manual item without done keeps the roadmap pending, got %s", res.Progress)
	}
	if res.State.LastRunAt == nil {
		t.Fatalf("run completion not recorded")
	}

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{Type: events.TypeRoadmapResolved}, 10, 0)
	if err != nil || len(evts) != 1 {
		t.Fatalf("expected one resolved event, got %d (%v)", len(evts), err)
	}
}

func TestResolveSkipsWhenUpToDate(t *testing.T) {
	env := newTestEnv(t)
	first, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !second.Reused || second.Snapshot.RunID != first.Snapshot.RunID {
		t.Fatalf("expected the stored snapshot to be reused")
	}
	if got := env.Fetches.Load(); got != 1 {
		t.Fatalf("roadmap fetched %d times, want 1", got)
	}

	if _, err := env.Engine.RecordCommit(env.Ctx, env.Key, domain.CommitMeta{SHA: "abc123"}, "hook"); err != nil {
		t.Fatalf("record commit: %v", err)
	}
	env.Health.Store(http.StatusServiceUnavailable)
	third, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if third.Reused || third.Snapshot.CommitSHA != "abc123" {
		t.Fatalf("new commit must trigger a pass: %+v", third.Snapshot)
	}
	health := findItem(t, third.View, "health-endpoint")
	if health.Done == nil || *health.Done || health.Checks[0].Note != "status 503" {
		t.Fatalf("health should fail after outage: %+v", health)
	}

	forced, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key, Force: true})
	if err != nil || forced.Reused {
		t.Fatalf("force must rerun: %v", err)
	}
}

func TestResolveRerunsBranchBuiltFromOlderCommit(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.RecordCommit(env.Ctx, env.Key, domain.CommitMeta{SHA: "c1"}, "hook"); err != nil {
		t.Fatalf("record commit: %v", err)
	}
	first, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key})
	if err != nil {
		t.Fatalf("resolve main: %v", err)
	}
	if first.Snapshot.CommitSHA != "c1" {
		t.Fatalf("main snapshot commit = %q, want c1", first.Snapshot.CommitSHA)
	}

	if _, err := env.Engine.RecordCommit(env.Ctx, env.Key, domain.CommitMeta{SHA: "c2"}, "hook"); err != nil {
		t.Fatalf("record commit: %v", err)
	}
	dev, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{
		Key:    env.Key,
		Branch: "dev",
		Source: []byte("weeks:\n  - title: Dev\n    items:\n      - name: Draft\n"),
	})
	if err != nil {
		t.Fatalf("resolve dev: %v", err)
	}
	if dev.Snapshot.Branch != "dev" || dev.Snapshot.CommitSHA != "c2" {
		t.Fatalf("unexpected dev snapshot %+v", dev.Snapshot)
	}

	again, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key})
	if err != nil {
		t.Fatalf("resolve main: %v", err)
	}
	if again.Reused {
		t.Fatalf("main snapshot from c1 reused after the ledger moved to c2")
	}
	if again.Snapshot.CommitSHA != "c2" || again.Snapshot.RunID == first.Snapshot.RunID {
		t.Fatalf("expected a fresh main pass at c2, got %+v", again.Snapshot)
	}
	if got := env.Fetches.Load(); got != 2 {
		t.Fatalf("main roadmap fetched %d times, want 2", got)
	}

	settled, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key})
	if err != nil {
		t.Fatalf("resolve main: %v", err)
	}
	if !settled.Reused || settled.Snapshot.RunID != again.Snapshot.RunID {
		t.Fatalf("main snapshot at c2 should now be reused")
	}
}

func TestOverlayEditsShowInViewAndRequireRerun(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	done := true
	if _, err := env.Engine.SetOverride(env.Ctx, env.Key, "foundations", overlay.Override{Key: "write-docs", Done: &done}, "tester"); err != nil {
		t.Fatalf("override: %v", err)
	}
	added, err := env.Engine.AddManualItem(env.Ctx, env.Key, "foundations", overlay.ManualItem{Name: "Pick a logo"}, "tester")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if added.Key == "" {
		t.Fatalf("expected a generated key")
	}
	if _, err := env.Engine.RemoveItem(env.Ctx, env.Key, "foundations", "repo-scaffold", "tester"); err != nil {
		t.Fatalf("remove item: %v", err)
	}

	view, err := env.Engine.View(env.Ctx, env.Key, "")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	items := view.View.Weeks[0].Items
	if len(items) != 3 {
		t.Fatalf("expected 3 items after edits, got %d", len(items))
	}
	docs := findItem(t, view.View, "write-docs")
	if docs.ManualOverride == nil || docs.Done == nil || !*docs.Done {
		t.Fatalf("override not applied: %+v", docs)
	}
	if items[2].ManualKey != added.Key || !items[2].Manual {
		t.Fatalf("manual item not appended: %+v", items[2])
	}

	state, err := env.Engine.State(env.Ctx, env.Key)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.UpToDate {
		t.Fatalf("an overlay edit after the run must mark the roadmap stale")
	}

	if err := env.Engine.ResetOverlay(env.Ctx, env.Key, "tester"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := env.Engine.Repo.GetOverlay(env.Ctx, env.Key); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("empty overlay must be deleted, got %v", err)
	}
}

func TestResolveInlineArtifact(t *testing.T) {
	env := newTestEnv(t)
	src := []byte(`{"weeks":[{"id":"w1","title":"CI","items":[{"id":"build","name":"Build","checks":[{"type":"files_exist","files":["x"],"result":"pass"}]}]}]}`)
	res, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key, Source: src, Mode: enrich.ModeArtifact})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	c := res.View.Weeks[0].Items[0].Checks[0]
	if c.Status != "pass" || c.OK == nil || !*c.OK {
		t.Fatalf("artifact result not reconciled: %+v", c)
	}
	if env.Fetches.Load() != 0 {
		t.Fatalf("inline source must not fetch from the repository")
	}
}

func TestResolveRejectsInvalidDocument(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: env.Key, Source: []byte(`{"weeks":[]}`)})
	if !errors.Is(err, normalize.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	_, err = env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: domain.RepoKey{Owner: "acme"}})
	if !errors.Is(err, engine.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestResolveMissingSource(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.Resolve(env.Ctx, engine.ResolveOptions{Key: domain.RepoKey{Owner: "acme", Repo: "other"}})
	if !errors.Is(err, engine.ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestViewWithoutSnapshot(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.View(env.Ctx, env.Key, "main"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteState(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.RecordCommit(env.Ctx, env.Key, domain.CommitMeta{SHA: "abc"}, "hook"); err != nil {
		t.Fatalf("record commit: %v", err)
	}
	if err := env.Engine.DeleteState(env.Ctx, env.Key, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	st, err := env.Engine.State(env.Ctx, env.Key)
	if err != nil || st.State.LastCommitSHA != nil {
		t.Fatalf("state not cleared: %+v (%v)", st, err)
	}
	if err := env.Engine.DeleteState(env.Ctx, env.Key, "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
