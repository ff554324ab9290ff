package roadlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Roadline HTTP API client.
type Client struct {
	BaseURL string
	// Project selects a sub-roadmap inside each repository.
	Project string
	ActorID string
	// GitHubToken is forwarded on resolve calls only.
	GitHubToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// Check is one piece of evidence attached to an item.
type Check struct {
	Type      string   `json:"type"`
	Files     []string `json:"files,omitempty"`
	Globs     []string `json:"globs,omitempty"`
	URL       string   `json:"url,omitempty"`
	MustMatch []string `json:"must_match,omitempty"`
	Query     string   `json:"query,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	Status    string   `json:"status,omitempty"`
	Result    string   `json:"result,omitempty"`
	OK        *bool    `json:"ok,omitempty"`
	Note      string   `json:"note,omitempty"`
}

type Item struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Checks         []Check `json:"checks"`
	Manual         bool    `json:"manual,omitempty"`
	Done           *bool   `json:"done,omitempty"`
	Note           string  `json:"note,omitempty"`
	ManualKey      string  `json:"manualKey,omitempty"`
	ManualOverride *struct {
		Done *bool  `json:"done,omitempty"`
		Note string `json:"note,omitempty"`
	} `json:"manualOverride,omitempty"`
}

type Week struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

type Document struct {
	Version string `json:"version"`
	Weeks   []Week `json:"weeks"`
}

// State is the ingestion ledger for one repository.
type State struct {
	LastCommitSHA        *string  `json:"last_commit_sha"`
	LastCommitMessage    *string  `json:"last_commit_message"`
	LastCommitAuthor     *string  `json:"last_commit_author"`
	LastCommitURL        *string  `json:"last_commit_url"`
	LastCommitAt         *string  `json:"last_commit_at"`
	LastCommitPaths      []string `json:"last_commit_paths"`
	LastManualStateAt    *string  `json:"last_manual_state_at"`
	LastRunSHA           *string  `json:"last_run_sha"`
	LastRunAt            *string  `json:"last_run_at"`
	LastRunManualStateAt *string  `json:"last_run_manual_state_at"`
	UpToDate             bool     `json:"up_to_date"`
}

type WeekSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Progress string `json:"progress"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
}

// Resolution is a stored roadmap with the overlay applied.
type Resolution struct {
	Owner      string        `json:"owner"`
	Repo       string        `json:"repo"`
	Project    string        `json:"project,omitempty"`
	Branch     string        `json:"branch"`
	RunID      string        `json:"run_id"`
	CommitSHA  string        `json:"commit_sha,omitempty"`
	Mode       string        `json:"mode"`
	ResolvedAt string        `json:"resolved_at"`
	Progress   string        `json:"progress"`
	Reused     bool          `json:"reused"`
	UpToDate   bool          `json:"up_to_date"`
	Weeks      []WeekSummary `json:"weeks"`
	Document   Document      `json:"document"`
	State      State         `json:"state"`
}

// ResolveRequest selects the input and mode of a resolve call. With neither
// Source nor Document set the server fetches the roadmap itself.
type ResolveRequest struct {
	Branch      string `json:"branch,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Force       bool   `json:"force,omitempty"`
	Source      string `json:"source,omitempty"`
	Document    any    `json:"document,omitempty"`
	VerifierURL string `json:"verifier_url,omitempty"`
}

type ManualItem struct {
	Key  string `json:"key,omitempty"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
	Done *bool  `json:"done,omitempty"`
}

type Override struct {
	Key  string `json:"key,omitempty"`
	Done *bool  `json:"done,omitempty"`
	Note string `json:"note,omitempty"`
}

type WeekEdits struct {
	Added     []ManualItem `json:"added,omitempty"`
	Removed   []string     `json:"removed,omitempty"`
	Overrides []Override   `json:"overrides,omitempty"`
}

// Overlay holds the manual edits for one repository, keyed by week.
type Overlay struct {
	Weeks map[string]WeekEdits `json:"weeks,omitempty"`
}

type Commit struct {
	SHA     string   `json:"sha"`
	Message string   `json:"message,omitempty"`
	Author  string   `json:"author,omitempty"`
	URL     string   `json:"url,omitempty"`
	At      string   `json:"at,omitempty"`
	Paths   []string `json:"paths,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID      int64          `json:"id"`
	TS      string         `json:"ts"`
	Type    string         `json:"type"`
	Owner   string         `json:"owner"`
	Repo    string         `json:"repo"`
	Project string         `json:"project,omitempty"`
	ActorID string         `json:"actor_id,omitempty"`
	Payload map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s body=%s", e.StatusCode, e.Code, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// EventQuery filters an event listing. Owner and Repo go together.
type EventQuery struct {
	Owner  string
	Repo   string
	Type   string
	Limit  int
	Cursor string
}

// Resolve runs a resolution pass.
func (c *Client) Resolve(ctx context.Context, owner, repo string, req ResolveRequest) (Resolution, error) {
	var resp Resolution
	err := c.do(ctx, http.MethodPost, c.repoPath(owner, repo, "resolve", nil), req, &resp)
	return resp, err
}

// SubmitArtifact stores a roadmap whose check results were computed elsewhere.
func (c *Client) SubmitArtifact(ctx context.Context, owner, repo, branch string, document any) (Resolution, error) {
	body := map[string]any{"document": document}
	if branch != "" {
		body["branch"] = branch
	}
	var resp Resolution
	err := c.do(ctx, http.MethodPost, c.repoPath(owner, repo, "artifacts", nil), body, &resp)
	return resp, err
}

// View returns the stored roadmap with the overlay applied.
func (c *Client) View(ctx context.Context, owner, repo, branch string) (Resolution, error) {
	var resp Resolution
	err := c.do(ctx, http.MethodGet, c.repoPath(owner, repo, "view", branchQuery(branch)), nil, &resp)
	return resp, err
}

func (c *Client) Overlay(ctx context.Context, owner, repo string) (Overlay, error) {
	var resp Overlay
	err := c.do(ctx, http.MethodGet, c.repoPath(owner, repo, "overlay", nil), nil, &resp)
	return resp, err
}

// ReplaceOverlay swaps the whole overlay; malformed entries are dropped by
// the server.
func (c *Client) ReplaceOverlay(ctx context.Context, owner, repo string, ov Overlay) (Overlay, error) {
	var resp Overlay
	err := c.do(ctx, http.MethodPut, c.repoPath(owner, repo, "overlay", nil), ov, &resp)
	return resp, err
}

func (c *Client) ResetOverlay(ctx context.Context, owner, repo string) error {
	return c.do(ctx, http.MethodDelete, c.repoPath(owner, repo, "overlay", nil), nil, nil)
}

// AddManualItem adds an item to a week; the server generates a key when
// none is given.
func (c *Client) AddManualItem(ctx context.Context, owner, repo, week string, it ManualItem) (ManualItem, error) {
	var resp ManualItem
	err := c.do(ctx, http.MethodPost, c.weekPath(owner, repo, week, "items"), it, &resp)
	return resp, err
}

func (c *Client) DeleteManualItem(ctx context.Context, owner, repo, week, key string) (Overlay, error) {
	return c.overlayCall(ctx, http.MethodDelete, c.weekPath(owner, repo, week, "items/"+url.PathEscape(key)), nil)
}

func (c *Client) HideItem(ctx context.Context, owner, repo, week, item string) (Overlay, error) {
	return c.overlayCall(ctx, http.MethodPut, c.weekPath(owner, repo, week, "removed/"+url.PathEscape(item)), nil)
}

func (c *Client) RestoreItem(ctx context.Context, owner, repo, week, item string) (Overlay, error) {
	return c.overlayCall(ctx, http.MethodDelete, c.weekPath(owner, repo, week, "removed/"+url.PathEscape(item)), nil)
}

func (c *Client) SetOverride(ctx context.Context, owner, repo, week, item string, done *bool, note string) (Overlay, error) {
	body := Override{Done: done, Note: note}
	return c.overlayCall(ctx, http.MethodPut, c.weekPath(owner, repo, week, "overrides/"+url.PathEscape(item)), body)
}

func (c *Client) ClearOverride(ctx context.Context, owner, repo, week, item string) (Overlay, error) {
	return c.overlayCall(ctx, http.MethodDelete, c.weekPath(owner, repo, week, "overrides/"+url.PathEscape(item)), nil)
}

func (c *Client) State(ctx context.Context, owner, repo string) (State, error) {
	var resp State
	err := c.do(ctx, http.MethodGet, c.repoPath(owner, repo, "state", nil), nil, &resp)
	return resp, err
}

// RecordCommit reports the newest commit of a repository.
func (c *Client) RecordCommit(ctx context.Context, owner, repo string, commit Commit) (State, error) {
	var resp State
	err := c.do(ctx, http.MethodPost, c.repoPath(owner, repo, "commits", nil), commit, &resp)
	return resp, err
}

func (c *Client) DeleteState(ctx context.Context, owner, repo string) error {
	return c.do(ctx, http.MethodDelete, c.repoPath(owner, repo, "state", nil), nil, nil)
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, EventQuery{Limit: limit})
	return page.Items, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, q EventQuery) (PaginatedEvents, error) {
	values := url.Values{}
	if q.Owner != "" {
		values.Set("owner", q.Owner)
		values.Set("repo", q.Repo)
		if c.Project != "" {
			values.Set("project", c.Project)
		}
	}
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	if q.Limit > 0 {
		values.Set("limit", fmt.Sprintf("%d", q.Limit))
	}
	if q.Cursor != "" {
		values.Set("cursor", q.Cursor)
	}
	endpoint := "v0/events"
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) overlayCall(ctx context.Context, method, endpoint string, body any) (Overlay, error) {
	var resp Overlay
	err := c.do(ctx, method, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	if c.GitHubToken != "" && strings.HasSuffix(req.URL.Path, "/resolve") {
		req.Header.Set("X-GitHub-Token", c.GitHubToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) repoPath(owner, repo, p string, query url.Values) string {
	endpoint := fmt.Sprintf("v0/repos/%s/%s/%s", url.PathEscape(owner), url.PathEscape(repo), strings.TrimLeft(p, "/"))
	if c.Project != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("project", c.Project)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

func (c *Client) weekPath(owner, repo, week, rest string) string {
	return c.repoPath(owner, repo, "overlay/weeks/"+url.PathEscape(week)+"/"+rest, nil)
}

func branchQuery(branch string) url.Values {
	if branch == "" {
		return nil
	}
	return url.Values{"branch": {branch}}
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
