package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"roadline/internal/domain"
)

var (
	nameFields  = []string{"name", "title", "task", "summary", "goal", "description"}
	checkFields = []string{"checks", "verifications", "validation"}

	fileAliases  = []string{"file", "files", "paths", "path"}
	globAliases  = []string{"globs", "glob"}
	urlAliases   = []string{"url", "endpoint", "href", "link"}
	matchAliases = []string{"must_match", "mustMatch", "contains"}
	queryAliases = []string{"query", "sql", "statement"}
)

// kindAliases maps every accepted spelling of a check type to its kind.
// Anything missing from this table is not a check.
var kindAliases = map[string]domain.CheckKind{
	"files_exist":  domain.CheckFilesExist,
	"file_exists":  domain.CheckFilesExist,
	"files_exists": domain.CheckFilesExist,
	"http_ok":      domain.CheckHTTPOK,
	"http":         domain.CheckHTTPOK,
	"sql_exists":   domain.CheckSQLExists,
	"sql":          domain.CheckSQLExists,
}

func coerceItems(list []any) []domain.Item {
	items := make([]domain.Item, 0, len(list))
	ids := newIDAllocator()
	for i, raw := range list {
		it, ok := coerceItem(raw)
		if !ok {
			continue
		}
		base := Slug(it.ID)
		if base == "" {
			base = Slug(it.Name)
		}
		if base == "" {
			base = fmt.Sprintf("item-%d", i+1)
		}
		it.ID = ids.claim(base)
		items = append(items, it)
	}
	return items
}

func coerceItem(raw any) (domain.Item, bool) {
	switch v := raw.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" {
			return domain.Item{}, false
		}
		return domain.Item{Name: name, Checks: []domain.Check{}, Manual: true}, true
	case map[string]any:
		return coerceItemObject(v)
	default:
		return domain.Item{}, false
	}
}

func coerceItemObject(m map[string]any) (domain.Item, bool) {
	it := domain.Item{
		ID:   firstScalar(m, "id", "key"),
		Name: firstScalar(m, nameFields...),
		Note: firstScalar(m, "note", "notes"),
	}
	if it.Name == "" {
		it.Name = it.ID
	}
	if it.Name == "" {
		return domain.Item{}, false
	}
	if done, ok := m["done"].(bool); ok {
		it.Done = &done
	}
	it.Checks = itemChecks(m)
	manual, _ := m["manual"].(bool)
	it.Manual = manual || len(it.Checks) == 0
	return it, true
}

// itemChecks prefers an explicit check list; only when none is present are
// checks inferred from check-shaped siblings on the item itself.
func itemChecks(m map[string]any) []domain.Check {
	out := []domain.Check{}
	for _, key := range checkFields {
		raw, present := m[key]
		if !present {
			continue
		}
		var list []any
		switch v := raw.(type) {
		case []any:
			list = v
		case map[string]any:
			list = []any{v}
		}
		for _, c := range list {
			if chk, ok := coerceCheck(c); ok {
				out = append(out, chk)
			}
		}
		return out
	}
	if hasAny(m, fileAliases...) || hasAny(m, globAliases...) {
		out = append(out, buildCheck(domain.CheckFilesExist, m, true))
	}
	if hasAny(m, urlAliases...) {
		out = append(out, buildCheck(domain.CheckHTTPOK, m, true))
	}
	if hasAny(m, queryAliases...) || hasAny(m, "queries") {
		out = append(out, buildCheck(domain.CheckSQLExists, m, true))
	}
	return out
}

// coerceCheck accepts {"type": kind, ...} (or "kind") and the single-key
// wrapper {kind: {...}}. Shapes that name no known kind are dropped.
func coerceCheck(raw any) (domain.Check, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return domain.Check{}, false
	}
	if name := firstScalar(m, "type", "kind"); name != "" {
		kind, ok := kindAliases[strings.ToLower(name)]
		if !ok {
			return domain.Check{}, false
		}
		return buildCheck(kind, m, false), true
	}
	if len(m) != 1 {
		return domain.Check{}, false
	}
	for key, body := range m {
		kind, ok := kindAliases[strings.ToLower(key)]
		if !ok {
			return domain.Check{}, false
		}
		switch b := body.(type) {
		case map[string]any:
			return buildCheck(kind, b, false), true
		case string, []any:
			return buildCheck(kind, map[string]any{primaryField(kind): b}, false), true
		}
	}
	return domain.Check{}, false
}

func primaryField(kind domain.CheckKind) string {
	switch kind {
	case domain.CheckHTTPOK:
		return "url"
	case domain.CheckSQLExists:
		return "query"
	default:
		return "files"
	}
}

// buildCheck reads the fields of one kind from body. Inferred checks come
// from an item's own fields, so item-level detail and outcome fields are not
// borrowed.
func buildCheck(kind domain.CheckKind, body map[string]any, inferred bool) domain.Check {
	c := domain.Check{Type: kind}
	switch kind {
	case domain.CheckFilesExist:
		c.Files = collect(body, fileAliases...)
		c.Globs = collect(body, globAliases...)
	case domain.CheckHTTPOK:
		c.URL = firstScalar(body, urlAliases...)
		c.MustMatch = collect(body, matchAliases...)
	case domain.CheckSQLExists:
		c.Query = firstScalar(body, queryAliases...)
		if c.Query == "" {
			if qs := collect(body, "queries"); len(qs) > 0 {
				c.Query = qs[0]
			}
		}
	}
	if inferred {
		return c
	}
	c.Detail = scalar(body["detail"])
	c.Status = scalar(body["status"])
	c.Result = scalar(body["result"])
	c.Note = scalar(body["note"])
	if ok, isBool := body["ok"].(bool); isBool {
		c.OK = &ok
	}
	return c
}

// collect gathers string values from every alias in order, de-duplicated by
// first appearance.
func collect(m map[string]any, keys ...string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			add(v)
		case []any:
			for _, e := range v {
				add(scalar(e))
			}
		}
	}
	return out
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func firstScalar(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalar(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	default:
		return ""
	}
}
