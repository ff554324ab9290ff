package enrich

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadline/internal/checks"
	"roadline/internal/domain"
)

// scriptedRunner answers by check URL and records call order.
type scriptedRunner struct {
	mu      sync.Mutex
	results map[string]domain.CheckResult
	calls   []string
	onRun   func()
}

func (r *scriptedRunner) Run(_ context.Context, c domain.Check, _ checks.Context) domain.CheckResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c.URL)
	if r.onRun != nil {
		r.onRun()
	}
	if res, ok := r.results[c.URL]; ok {
		return res
	}
	return domain.CheckResult{Status: domain.StatusPass}
}

func httpCheck(url string) domain.Check {
	return domain.Check{Type: domain.CheckHTTPOK, URL: url}
}

func sampleDoc() domain.Document {
	tr := true
	return domain.Document{Version: "1", Weeks: []domain.Week{
		{ID: "w1", Title: "W1", Items: []domain.Item{
			{ID: "a", Name: "A", Checks: []domain.Check{httpCheck("a1"), httpCheck("a2")}},
			{ID: "b", Name: "B", Checks: []domain.Check{}, Manual: true, Done: &tr},
			{ID: "c", Name: "C", Checks: []domain.Check{}, Manual: true},
		}},
		{ID: "w2", Title: "W2", Items: []domain.Item{
			{ID: "d", Name: "D", Checks: []domain.Check{{Type: domain.CheckHTTPOK, URL: "d1", Detail: "landing page"}}},
		}},
	}}
}

func TestDeriveOKVocabulary(t *testing.T) {
	cases := map[string]*bool{
		"pass": boolPtr(true), "PASSED": boolPtr(true), "ok": boolPtr(true), "Success": boolPtr(true),
		"succeeded": boolPtr(true), "complete": boolPtr(true), "completed": boolPtr(true), "done": boolPtr(true),
		"fail": boolPtr(false), "failed": boolPtr(false), "ERROR": boolPtr(false), "missing": boolPtr(false),
		"skip": nil, "skipped": nil, "pending": nil, "weird": nil, "": nil,
	}
	for status, want := range cases {
		assert.Equal(t, want, DeriveOK(status, nil), "status %q", status)
	}
	assert.Equal(t, boolPtr(false), DeriveOK("pass", boolPtr(false)), "explicit ok wins")
	assert.Equal(t, boolPtr(true), DeriveOK("error", boolPtr(true)), "explicit ok wins")
}

func TestEnrichLive(t *testing.T) {
	runner := &scriptedRunner{results: map[string]domain.CheckResult{
		"d1": {Status: domain.StatusFail, Note: "status 500"},
	}}
	p := Pipeline{Runner: runner}
	in := sampleDoc()
	out, err := p.Enrich(context.Background(), in, ModeLive, checks.Context{})
	require.NoError(t, err)

	a := out.Weeks[0].Items[0]
	require.NotNil(t, a.Done)
	assert.True(t, *a.Done)
	for _, c := range a.Checks {
		assert.Equal(t, "pass", c.Status)
		assert.Equal(t, c.Status, c.Result)
		assert.Equal(t, boolPtr(true), c.OK)
	}

	b := out.Weeks[0].Items[1]
	assert.Equal(t, boolPtr(true), b.Done, "authored done kept for items without checks")
	assert.Nil(t, out.Weeks[0].Items[2].Done, "no checks and no authored done leaves done unset")

	d := out.Weeks[1].Items[0]
	assert.Equal(t, boolPtr(false), d.Done)
	assert.Equal(t, "landing page – status 500", d.Checks[0].Detail)
	assert.Equal(t, boolPtr(false), d.Checks[0].OK)

	assert.Equal(t, []string{"a1", "a2", "d1"}, runner.calls)
	assert.Nil(t, in.Weeks[0].Items[0].Checks[0].OK, "input document must not be mutated")
}

func TestEnrichDoneFlipsOnSingleFailure(t *testing.T) {
	doc := domain.Document{Weeks: []domain.Week{{ID: "w", Items: []domain.Item{
		{ID: "x", Name: "x", Checks: []domain.Check{httpCheck("1"), httpCheck("2"), httpCheck("3")}},
	}}}}
	for _, failing := range []string{"1", "2", "3"} {
		runner := &scriptedRunner{results: map[string]domain.CheckResult{failing: {Status: domain.StatusFail}}}
		out, err := Pipeline{Runner: runner}.Enrich(context.Background(), doc, ModeLive, checks.Context{})
		require.NoError(t, err)
		assert.Equal(t, boolPtr(false), out.Weeks[0].Items[0].Done, "failing %s", failing)
	}
	runner := &scriptedRunner{results: map[string]domain.CheckResult{"2": {Status: domain.StatusSkip}}}
	out, err := Pipeline{Runner: runner}.Enrich(context.Background(), doc, ModeLive, checks.Context{})
	require.NoError(t, err)
	assert.Equal(t, boolPtr(false), out.Weeks[0].Items[0].Done, "a skipped check is not ok")
	assert.Equal(t, domain.ProgressPending, domain.ItemProgress(out.Weeks[0].Items[0]))
}

func TestEnrichArtifact(t *testing.T) {
	doc := domain.Document{Weeks: []domain.Week{{ID: "w", Items: []domain.Item{
		{ID: "a", Name: "a", Checks: []domain.Check{{Type: domain.CheckFilesExist, Result: "pass"}}},
		{ID: "b", Name: "b", Checks: []domain.Check{{Type: domain.CheckFilesExist, OK: boolPtr(false)}}},
		{ID: "c", Name: "c", Checks: []domain.Check{{Type: domain.CheckFilesExist, Status: "Completed"}}},
		{ID: "d", Name: "d", Checks: []domain.Check{{Type: domain.CheckFilesExist}}},
		{ID: "e", Name: "e", Checks: []domain.Check{{Type: domain.CheckFilesExist, Status: "pass", OK: boolPtr(false)}}},
	}}}}
	out, err := Pipeline{}.Enrich(context.Background(), doc, ModeArtifact, checks.Context{})
	require.NoError(t, err)
	items := out.Weeks[0].Items

	assert.Equal(t, "pass", items[0].Checks[0].Status)
	assert.Equal(t, "pass", items[0].Checks[0].Result)
	assert.Equal(t, boolPtr(true), items[0].Checks[0].OK)
	assert.Equal(t, boolPtr(true), items[0].Done)

	assert.Equal(t, "fail", items[1].Checks[0].Status)
	assert.Equal(t, boolPtr(false), items[1].Checks[0].OK)

	assert.Equal(t, boolPtr(true), items[2].Checks[0].OK)

	assert.Empty(t, items[3].Checks[0].Status)
	assert.Nil(t, items[3].Checks[0].OK)
	assert.Equal(t, boolPtr(false), items[3].Done)

	assert.Equal(t, boolPtr(false), items[4].Checks[0].OK, "explicit ok wins over status")
}

func TestEnrichArtifactIsStable(t *testing.T) {
	once, err := Pipeline{}.Enrich(context.Background(), sampleDoc(), ModeArtifact, checks.Context{})
	require.NoError(t, err)
	twice, err := Pipeline{}.Enrich(context.Background(), once, ModeArtifact, checks.Context{})
	require.NoError(t, err)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("artifact reconciliation not stable (-once +twice):\n%s", diff)
	}
}

func TestEnrichHonorsCancellationBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &scriptedRunner{onRun: cancel}
	_, err := Pipeline{Runner: runner}.Enrich(ctx, sampleDoc(), ModeLive, checks.Context{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []string{"a1", "a2"}, runner.calls, "the in-flight item finishes, later items never start")
}

func TestEnrichConcurrentKeepsOrder(t *testing.T) {
	runner := &scriptedRunner{results: map[string]domain.CheckResult{"a2": {Status: domain.StatusFail, Note: "boom"}}}
	out, err := Pipeline{Runner: runner, MaxConcurrency: 4}.Enrich(context.Background(), sampleDoc(), ModeLive, checks.Context{})
	require.NoError(t, err)
	assert.Equal(t, "boom", out.Weeks[0].Items[0].Checks[1].Note)
	assert.Equal(t, "w2", out.Weeks[1].ID)
}

func TestEnrichLiveRequiresRunner(t *testing.T) {
	_, err := Pipeline{}.Enrich(context.Background(), sampleDoc(), ModeLive, checks.Context{})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeLive, m)
	m, err = ParseMode("Artifact")
	require.NoError(t, err)
	assert.Equal(t, ModeArtifact, m)
	_, err = ParseMode("batch")
	assert.Error(t, err)
}

func TestMergeDetail(t *testing.T) {
	assert.Equal(t, "a – b", mergeDetail("a", "b"))
	assert.Equal(t, "a", mergeDetail("a", "a"))
	assert.Equal(t, "b", mergeDetail("", "b"))
	assert.Equal(t, "a", mergeDetail("a", ""))
}
