package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"roadline/internal/config"
	"roadline/internal/db"
	"roadline/internal/domain"
	"roadline/internal/engine"
	"roadline/internal/events"
	"roadline/internal/migrate"
	"roadline/internal/overlay"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default(), nil)
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

var manualRoadmap = map[string]any{
	"weeks": []any{map[string]any{
		"id":    "w1",
		"title": "Launch",
		"items": []any{
			map[string]any{"id": "site", "name": "Site", "done": true},
			map[string]any{"id": "docs", "name": "Docs"},
		},
	}},
}

func resolve(t *testing.T, srv *testServer) ResolutionResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/repos/acme/site/resolve", map[string]any{
		"document": manualRoadmap,
	}, map[string]string{"X-Actor-Id": "ci"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("resolve status %d: %s", res.StatusCode, string(data))
	}
	var out ResolutionResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal resolution: %v", err)
	}
	return out
}

func TestResolveThenView(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	out := resolve(t, srv)
	if out.RunID == "" || out.Branch != "main" || out.Mode != "live" {
		t.Fatalf("unexpected resolution %+v", out)
	}
	if out.Progress != "pending" || len(out.Weeks) != 1 || out.Weeks[0].Done != 1 || out.Weeks[0].Total != 2 {
		t.Fatalf("unexpected summary %+v", out.Weeks)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/repos/acme/site/view", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("view status %d: %s", res.StatusCode, string(data))
	}
	if strings.Contains(string(data), "$schema") {
		t.Fatalf("view body must carry only roadmap fields: %s", string(data))
	}
	var view ResolutionResponse
	_ = json.Unmarshal(data, &view)
	if !view.Reused || view.RunID != out.RunID {
		t.Fatalf("view should serve the stored snapshot: %+v", view)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/repos/acme/other/view", nil, nil)
	if res.StatusCode != http.StatusNotFound || !strings.Contains(string(data), `"not_found"`) {
		t.Fatalf("expected 404 not_found, got %d %s", res.StatusCode, string(data))
	}
}

func TestInvalidDocumentIsBadRequest(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/repos/acme/site/resolve", map[string]any{
		"source": "just some prose",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", res.StatusCode, string(data))
	}
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if env.Error.Code != "invalid_document" {
		t.Fatalf("expected invalid_document, got %q", env.Error.Code)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/repos/acme/site/resolve", map[string]any{
		"mode": "batch",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad mode, got %d %s", res.StatusCode, string(data))
	}
}

func TestOverlayLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	resolve(t, srv)
	base := srv.URL + "/v0/repos/acme/site/overlay"

	res, data := doJSON(t, client, http.MethodPost, base+"/weeks/w1/items", map[string]any{"name": "Press kit"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add item: %d %s", res.StatusCode, string(data))
	}
	var added overlay.ManualItem
	_ = json.Unmarshal(data, &added)
	if added.Key == "" || added.Name != "Press kit" {
		t.Fatalf("unexpected item %+v", added)
	}

	if res, data := doJSON(t, client, http.MethodPut, base+"/weeks/w1/removed/site", nil, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("hide: %d %s", res.StatusCode, string(data))
	}
	if res, data := doJSON(t, client, http.MethodPut, base+"/weeks/w1/overrides/docs", map[string]any{"done": true, "note": "shipped"}, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("override: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/repos/acme/site/view", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("view: %d %s", res.StatusCode, string(data))
	}
	var view ResolutionResponse
	_ = json.Unmarshal(data, &view)
	items := view.Document.Weeks[0].Items
	if len(items) != 2 || items[0].ID != "docs" || items[1].ManualKey != added.Key {
		t.Fatalf("overlay not applied: %+v", items)
	}
	if view.UpToDate {
		t.Fatalf("overlay edit must mark the roadmap stale")
	}

	if res, data := doJSON(t, client, http.MethodDelete, base+"/weeks/w1/removed/site", nil, nil); res.StatusCode != http.StatusOK {
		t.Fatalf("restore: %d %s", res.StatusCode, string(data))
	}
	if res, data := doJSON(t, client, http.MethodDelete, base, nil, nil); res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, base, nil, nil)
	if res.StatusCode != http.StatusOK || strings.TrimSpace(string(data)) != "{}" {
		t.Fatalf("expected empty overlay, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPut, base, map[string]any{
		"weeks": map[string]any{"w1": map[string]any{"removed": []any{"docs", 7}, "added": []any{map[string]any{"name": "no key"}}}},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("replace: %d %s", res.StatusCode, string(data))
	}
	var rec overlay.Record
	_ = json.Unmarshal(data, &rec)
	if got := rec.Weeks["w1"]; len(got.Removed) != 1 || len(got.Added) != 0 {
		t.Fatalf("replace should sanitize: %+v", got)
	}
}

func TestCommitStateAndEvents(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	resolve(t, srv)

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/repos/acme/site/commits", map[string]any{
		"sha":   "abc123",
		"paths": []string{"docs/roadmap.yml"},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("commit: %d %s", res.StatusCode, string(data))
	}
	var st StateResponse
	_ = json.Unmarshal(data, &st)
	if st.UpToDate || st.LastCommitSHA == nil || *st.LastCommitSHA != "abc123" {
		t.Fatalf("unexpected state %+v", st)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?owner=acme&repo=site&limit=1", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var page paginatedEvents
	_ = json.Unmarshal(data, &page)
	if len(page.Items) != 1 || page.Items[0].Type != events.TypeCommitRecorded || page.NextCursor == "" {
		t.Fatalf("unexpected page %+v", page)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/events?owner=acme&repo=site&cursor="+page.NextCursor, nil, nil)
	_ = json.Unmarshal(data, &page)
	if res.StatusCode != http.StatusOK || len(page.Items) != 1 || page.Items[0].Type != events.TypeRoadmapResolved {
		t.Fatalf("unexpected second page %d %s", res.StatusCode, string(data))
	}

	if res, data := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/repos/acme/site/state", nil, nil); res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete state: %d %s", res.StatusCode, string(data))
	}
	if res, _ := doJSON(t, client, http.MethodDelete, srv.URL+"/v0/repos/acme/site/state", nil, nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete should be 404, got %d", res.StatusCode)
	}
}

func TestWebhookDispatcherDeliversNewEvents(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	var (
		mu       sync.Mutex
		received []webhookEvent
		sigs     []string
		bodies   [][]byte
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var evt webhookEvent
		_ = json.Unmarshal(raw, &evt)
		mu.Lock()
		received = append(received, evt)
		sigs = append(sigs, r.Header.Get("X-Roadline-Signature"))
		bodies = append(bodies, raw)
		mu.Unlock()
	}))
	defer hook.Close()

	resolve(t, srv)
	d := NewWebhookDispatcher(srv.Engine.Repo, []config.Webhook{
		{URL: hook.URL, Events: []string{events.TypeOverlayUpdated}, Secret: "s3cret"},
	}, nil)
	ctx := context.Background()
	d.DispatchOnce(ctx)

	key := domain.RepoKey{Owner: "acme", Repo: "site"}
	if _, err := srv.Engine.RemoveItem(ctx, key, "w1", "docs", "tester"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := srv.Engine.RecordCommit(ctx, key, domain.CommitMeta{SHA: "abc"}, ""); err != nil {
		t.Fatalf("commit: %v", err)
	}
	d.DispatchOnce(ctx)
	d.DispatchOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected exactly one delivery, got %+v", received)
	}
	evt := received[0]
	if evt.Type != events.TypeOverlayUpdated || evt.Owner != "acme" || evt.ActorID != "tester" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if want := "sha256=" + sign("s3cret", bodies[0]); sigs[0] != want {
		t.Fatalf("signature mismatch: got %q want %q", sigs[0], want)
	}
}

func TestHealthAndOpenAPI(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
	var wg sync.WaitGroup
	bodies := make([]string, 8)
	for i := range bodies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := srv.Client().Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				return
			}
			defer res.Body.Close()
			b, _ := io.ReadAll(res.Body)
			bodies[i] = string(b)
		}(i)
	}
	wg.Wait()
	for i, b := range bodies {
		if !strings.Contains(b, "/repos/{owner}/{repo}/resolve") || b != bodies[0] {
			t.Fatalf("openapi response %d differs or is incomplete", i)
		}
	}
}
