package domain

// RepoKey identifies one tracked roadmap: a project inside a repository.
type RepoKey struct {
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Project string `json:"project"`
}

func (k RepoKey) String() string {
	if k.Project == "" {
		return k.Owner + "/" + k.Repo
	}
	return k.Owner + "/" + k.Repo + "#" + k.Project
}

type Document struct {
	Version string `json:"version"`
	Weeks   []Week `json:"weeks"`
}

type Week struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Items []Item `json:"items"`
}

type Item struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Checks         []Check         `json:"checks"`
	Manual         bool            `json:"manual,omitempty"`
	Done           *bool           `json:"done,omitempty"`
	Note           string          `json:"note,omitempty"`
	ManualKey      string          `json:"manualKey,omitempty"`
	ManualOverride *ManualOverride `json:"manualOverride,omitempty"`
}

// ManualOverride is the view annotation left on a canonical item whose
// computed completion was replaced by a user edit.
type ManualOverride struct {
	Done *bool  `json:"done,omitempty"`
	Note string `json:"note,omitempty"`
}

type CheckKind string

const (
	CheckFilesExist CheckKind = "files_exist"
	CheckHTTPOK     CheckKind = "http_ok"
	CheckSQLExists  CheckKind = "sql_exists"
)

// Known reports whether k is one of the supported check kinds.
func (k CheckKind) Known() bool {
	switch k {
	case CheckFilesExist, CheckHTTPOK, CheckSQLExists:
		return true
	}
	return false
}

// Check is a tagged union keyed by Type. Only the fields of the matching kind
// are populated by the normalizer. Status, Result, OK and Note are stamped by
// enrichment (or carried in from a precomputed artifact).
type Check struct {
	Type      CheckKind `json:"type"`
	Files     []string  `json:"files,omitempty"`
	Globs     []string  `json:"globs,omitempty"`
	URL       string    `json:"url,omitempty"`
	MustMatch []string  `json:"must_match,omitempty"`
	Query     string    `json:"query,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Status    string    `json:"status,omitempty"`
	Result    string    `json:"result,omitempty"`
	OK        *bool     `json:"ok,omitempty"`
	Note      string    `json:"note,omitempty"`
}

type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusFail CheckStatus = "fail"
	StatusSkip CheckStatus = "skip"
)

type CheckResult struct {
	Status CheckStatus `json:"status"`
	Note   string      `json:"note,omitempty"`
}

// IngestionState is the idempotency ledger for one RepoKey. Every field is
// nullable; producers patch disjoint subsets.
type IngestionState struct {
	LastCommitSHA        *string  `json:"last_commit_sha"`
	LastCommitMessage    *string  `json:"last_commit_message"`
	LastCommitAuthor     *string  `json:"last_commit_author"`
	LastCommitURL        *string  `json:"last_commit_url"`
	LastCommitAt         *string  `json:"last_commit_at" format:"date-time"`
	LastCommitPaths      []string `json:"last_commit_paths"`
	LastManualStateAt    *string  `json:"last_manual_state_at" format:"date-time"`
	LastRunSHA           *string  `json:"last_run_sha"`
	LastRunAt            *string  `json:"last_run_at" format:"date-time"`
	LastRunManualStateAt *string  `json:"last_run_manual_state_at" format:"date-time"`
	UpdatedAt            *string  `json:"updated_at" format:"date-time"`
}

// CommitMeta is what the commit observer knows about the newest commit.
type CommitMeta struct {
	SHA     string   `json:"sha"`
	Message string   `json:"message,omitempty"`
	Author  string   `json:"author,omitempty"`
	URL     string   `json:"url,omitempty"`
	At      string   `json:"at,omitempty" format:"date-time"`
	Paths   []string `json:"paths,omitempty"`
}

// Snapshot is a stored resolution result for one branch.
type Snapshot struct {
	Key        RepoKey  `json:"key"`
	Branch     string   `json:"branch"`
	RunID      string   `json:"run_id"`
	CommitSHA  string   `json:"commit_sha,omitempty"`
	Mode       string   `json:"mode"`
	Document   Document `json:"document"`
	ResolvedAt string   `json:"resolved_at" format:"date-time"`
}

type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	Owner   string `json:"owner"`
	Repo    string `json:"repo"`
	Project string `json:"project"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
}
