package checks

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrFileNotFound is returned by a ContentSource when the path is absent.
var ErrFileNotFound = errors.New("file not found")

const (
	DefaultGitHubAPI = "https://api.github.com"
	DefaultRawBase   = "https://raw.githubusercontent.com"
	maxContentBytes  = 4 << 20
)

// ContentSource reads one file of a repository at a ref.
type ContentSource interface {
	GetFile(ctx context.Context, owner, repo, path, ref, token string) (string, error)
}

// GitHubContents reads files through the authenticated contents API.
type GitHubContents struct {
	BaseURL string
	Client  *http.Client
}

func (g GitHubContents) GetFile(ctx context.Context, owner, repo, path, ref, token string) (string, error) {
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = DefaultGitHubAPI
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", base, url.PathEscape(owner), url.PathEscape(repo), escapePath(path))
	if ref != "" {
		endpoint += "?ref=" + url.QueryEscape(ref)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	body, err := fetch(clientOrDefault(g.Client), req)
	if err != nil {
		return "", err
	}
	// Directory listings come back as arrays; the path exists either way.
	if gjson.ValidBytes(body) && gjson.ParseBytes(body).IsArray() {
		return "", nil
	}
	if gjson.GetBytes(body, "type").String() == "dir" {
		return "", nil
	}
	content := gjson.GetBytes(body, "content").String()
	if gjson.GetBytes(body, "encoding").String() != "base64" {
		return content, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return string(decoded), nil
}

// RawContents reads files anonymously from the raw content host.
type RawContents struct {
	BaseURL string
	Client  *http.Client
}

func (r RawContents) GetFile(ctx context.Context, owner, repo, path, ref, _ string) (string, error) {
	base := strings.TrimRight(r.BaseURL, "/")
	if base == "" {
		base = DefaultRawBase
	}
	if ref == "" {
		ref = "HEAD"
	}
	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s", base, url.PathEscape(owner), url.PathEscape(repo), escapePath(ref), escapePath(path))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	body, err := fetch(clientOrDefault(r.Client), req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FallbackSource tries the authenticated source when a token is present and
// falls back to the anonymous one. Both failing is reported as
// ErrFileNotFound, never as a transport error.
type FallbackSource struct {
	Authenticated ContentSource
	Anonymous     ContentSource
}

func (f FallbackSource) GetFile(ctx context.Context, owner, repo, path, ref, token string) (string, error) {
	var errs []error
	if token != "" && f.Authenticated != nil {
		content, err := f.Authenticated.GetFile(ctx, owner, repo, path, ref, token)
		if err == nil {
			return content, nil
		}
		errs = append(errs, err)
	}
	if f.Anonymous != nil {
		content, err := f.Anonymous.GetFile(ctx, owner, repo, path, ref, "")
		if err == nil {
			return content, nil
		}
		errs = append(errs, err)
	}
	return "", fmt.Errorf("%w: %s: %w", ErrFileNotFound, path, errors.Join(errs...))
}

func fetch(client *http.Client, req *http.Request) ([]byte, error) {
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrFileNotFound
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, maxContentBytes))
}

func escapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
