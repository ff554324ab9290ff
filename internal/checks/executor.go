// Package checks verifies individual roadmap checks against live external
// state: repository files, HTTP endpoints and an invariant verifier.
package checks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"roadline/internal/domain"
)

const (
	DefaultTimeout    = 10 * time.Second
	maxCheckBodyBytes = 2 << 20
	verifierEnvHint   = "set checks.verifier_url or ROADLINE_CHECKS_VERIFIER_URL"
)

// Context carries what a check needs to know about its target.
type Context struct {
	Owner       string
	Repo        string
	Ref         string
	Token       string
	VerifierURL string
}

// Runner executes one check. Implementations never return transport
// failures as errors; they are folded into a fail result.
type Runner interface {
	Run(ctx context.Context, c domain.Check, cc Context) domain.CheckResult
}

type Executor struct {
	Source ContentSource
	HTTP   *http.Client
	// Timeout bounds every outbound request made for one check.
	Timeout time.Duration
	// VerifierURL is the environment-level fallback used when the check
	// context does not name a verifier.
	VerifierURL string
	Logger      *zap.Logger
}

// Options configures NewExecutor.
type Options struct {
	GitHubAPIURL string
	RawBaseURL   string
	VerifierURL  string
	Timeout      time.Duration
	Client       *http.Client
	Logger       *zap.Logger
}

func NewExecutor(opts Options) *Executor {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Executor{
		Source: FallbackSource{
			Authenticated: GitHubContents{BaseURL: opts.GitHubAPIURL, Client: client},
			Anonymous:     RawContents{BaseURL: opts.RawBaseURL, Client: client},
		},
		HTTP:        client,
		Timeout:     opts.Timeout,
		VerifierURL: opts.VerifierURL,
		Logger:      opts.Logger,
	}
}

func (e *Executor) Run(ctx context.Context, c domain.Check, cc Context) domain.CheckResult {
	start := time.Now()
	var res domain.CheckResult
	switch c.Type {
	case domain.CheckFilesExist:
		res = e.filesExist(ctx, c, cc)
	case domain.CheckHTTPOK:
		res = e.httpOK(ctx, c)
	case domain.CheckSQLExists:
		res = e.sqlExists(ctx, c, cc)
	default:
		res = skip(fmt.Sprintf("unknown check type: %s", c.Type))
	}
	e.logger().Debug("check executed",
		zap.String("type", string(c.Type)),
		zap.String("status", string(res.Status)),
		zap.String("note", res.Note),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

func (e *Executor) filesExist(ctx context.Context, c domain.Check, cc Context) domain.CheckResult {
	paths := filePaths(c)
	if len(paths) == 0 {
		return skip("no paths to check")
	}
	if cc.Owner == "" || cc.Repo == "" {
		return fail("configuration: no repository to check files against")
	}
	if e.Source == nil {
		return fail("configuration: no content source configured")
	}
	for _, p := range paths {
		reqCtx, cancel := context.WithTimeout(ctx, e.timeout())
		_, err := e.Source.GetFile(reqCtx, cc.Owner, cc.Repo, p, cc.Ref, cc.Token)
		cancel()
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return fail(e.transportNote(ctx.Err()))
		}
		return fail("missing: " + p)
	}
	return domain.CheckResult{Status: domain.StatusPass}
}

// filePaths merges files, globs and the legacy comma-separated detail list.
func filePaths(c domain.Check) []string {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		out = append(out, p)
	}
	for _, p := range c.Files {
		add(p)
	}
	for _, p := range c.Globs {
		add(p)
	}
	for _, p := range strings.Split(c.Detail, ",") {
		add(p)
	}
	return out
}

func (e *Executor) httpOK(ctx context.Context, c domain.Check) domain.CheckResult {
	target := strings.TrimSpace(c.URL)
	if target == "" {
		return skip("no url to check")
	}
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return fail(err.Error())
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	res, err := e.client().Do(req)
	if err != nil {
		return fail(e.transportNote(err))
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fail(fmt.Sprintf("status %d", res.StatusCode))
	}
	if len(c.MustMatch) == 0 {
		return domain.CheckResult{Status: domain.StatusPass}
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxCheckBodyBytes))
	if err != nil {
		return fail(e.transportNote(err))
	}
	text := string(body)
	var missing []string
	for _, want := range c.MustMatch {
		if !strings.Contains(text, want) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fail("missing substrings: " + strings.Join(missing, ", "))
	}
	return domain.CheckResult{Status: domain.StatusPass}
}

func (e *Executor) sqlExists(ctx context.Context, c domain.Check, cc Context) domain.CheckResult {
	endpoint := strings.TrimSpace(cc.VerifierURL)
	if endpoint == "" {
		endpoint = strings.TrimSpace(e.VerifierURL)
	}
	if endpoint == "" {
		return skip("sql verifier not configured; " + verifierEnvHint)
	}
	if strings.TrimSpace(c.Query) == "" {
		return skip("no query to verify")
	}
	payload, err := json.Marshal(map[string]string{"query": c.Query})
	if err != nil {
		return fail(err.Error())
	}
	reqCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fail(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := e.client().Do(req)
	if err != nil {
		return fail(e.transportNote(err))
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, maxCheckBodyBytes))
	if err != nil {
		return fail(e.transportNote(err))
	}
	if !gjson.ValidBytes(body) {
		return fail(fmt.Sprintf("verifier returned status %d with a non-JSON body", res.StatusCode))
	}
	if gjson.GetBytes(body, "ok").Type == gjson.True || gjson.GetBytes(body, "exists").Type == gjson.True {
		return domain.CheckResult{Status: domain.StatusPass}
	}
	if msg := gjson.GetBytes(body, "error").String(); msg != "" {
		return fail(msg)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fail(fmt.Sprintf("verifier returned status %d", res.StatusCode))
	}
	return fail("not found: " + c.Query)
}

func (e *Executor) transportNote(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("timeout after %s", e.timeout())
	}
	return err.Error()
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func (e *Executor) client() *http.Client {
	if e.HTTP != nil {
		return e.HTTP
	}
	return http.DefaultClient
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func skip(note string) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusSkip, Note: note}
}

func fail(note string) domain.CheckResult {
	return domain.CheckResult{Status: domain.StatusFail, Note: note}
}
