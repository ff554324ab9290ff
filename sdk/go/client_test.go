package roadlinesdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method, path, query string
	actor, token        string
	body                map[string]any
}

func newRecorder(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method: r.Method,
			path:   r.URL.Path,
			query:  r.URL.RawQuery,
			actor:  r.Header.Get("X-Actor-Id"),
			token:  r.Header.Get("X-GitHub-Token"),
		}
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestResolveSendsTokenAndProject(t *testing.T) {
	srv, calls := newRecorder(t, http.StatusOK, `{"owner":"acme","repo":"site","run_id":"r1","progress":"pass","weeks":[{"id":"w1","done":1,"total":1}]}`)
	c := New(srv.URL + "/")
	c.Project = "web"
	c.ActorID = "ci"
	c.GitHubToken = "ghp_x"

	res, err := c.Resolve(context.Background(), "acme", "site", ResolveRequest{Mode: "artifact", Force: true})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RunID)
	assert.Equal(t, 1, res.Weeks[0].Done)

	got := (*calls)[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/v0/repos/acme/site/resolve", got.path)
	assert.Equal(t, "project=web", got.query)
	assert.Equal(t, "ci", got.actor)
	assert.Equal(t, "ghp_x", got.token)
	assert.Equal(t, map[string]any{"mode": "artifact", "force": true}, got.body)

	_, err = c.View(context.Background(), "acme", "site", "dev")
	require.NoError(t, err)
	got = (*calls)[1]
	assert.Equal(t, "branch=dev&project=web", got.query)
	assert.Empty(t, got.token, "token only travels with resolve")
}

func TestOverlayPaths(t *testing.T) {
	srv, calls := newRecorder(t, http.StatusOK, `{"weeks":{"w 1":{"removed":["a/b"]}}}`)
	c := New(srv.URL)
	ctx := context.Background()

	ov, err := c.HideItem(ctx, "acme", "site", "w 1", "a/b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b"}, ov.Weeks["w 1"].Removed)

	done := true
	_, err = c.SetOverride(ctx, "acme", "site", "w1", "docs", &done, "by hand")
	require.NoError(t, err)
	_, err = c.ClearOverride(ctx, "acme", "site", "w1", "docs")
	require.NoError(t, err)

	assert.Equal(t, "/v0/repos/acme/site/overlay/weeks/w 1/removed/a/b", (*calls)[0].path)
	assert.Equal(t, http.MethodPut, (*calls)[1].method)
	assert.Equal(t, map[string]any{"done": true, "note": "by hand"}, (*calls)[1].body)
	assert.Equal(t, http.MethodDelete, (*calls)[2].method)
	assert.Equal(t, "/v0/repos/acme/site/overlay/weeks/w1/overrides/docs", (*calls)[2].path)
}

func TestNoContentResponses(t *testing.T) {
	srv, calls := newRecorder(t, http.StatusNoContent, ``)
	c := New(srv.URL)
	require.NoError(t, c.ResetOverlay(context.Background(), "acme", "site"))
	require.NoError(t, c.DeleteState(context.Background(), "acme", "site"))
	assert.Equal(t, "/v0/repos/acme/site/state", (*calls)[1].path)
}

func TestEventsPageQuery(t *testing.T) {
	srv, calls := newRecorder(t, http.StatusOK, `{"items":[{"id":3,"type":"overlay.updated"}],"next_cursor":"3"}`)
	c := New(srv.URL)
	page, err := c.EventsPage(context.Background(), EventQuery{Owner: "acme", Repo: "site", Limit: 1, Cursor: "9"})
	require.NoError(t, err)
	assert.Equal(t, "3", page.NextCursor)
	assert.Equal(t, int64(3), page.Items[0].ID)
	assert.Equal(t, "/v0/events", (*calls)[0].path)
	assert.Equal(t, "cursor=9&limit=1&owner=acme&repo=site", (*calls)[0].query)
}

func TestAPIErrorCarriesCode(t *testing.T) {
	srv, _ := newRecorder(t, http.StatusBadRequest, `{"error":{"code":"invalid_document","message":"no weeks"}}`)
	_, err := New(srv.URL).Resolve(context.Background(), "acme", "site", ResolveRequest{Source: "prose"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_document", apiErr.Code)
}
