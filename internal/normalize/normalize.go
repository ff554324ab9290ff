// Package normalize turns roadmap sources of assorted historical shapes into
// the canonical domain.Document.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"roadline/internal/domain"
)

// ErrInvalidDocument means no week/item structure could be extracted. It is a
// user-input error and never carries a partial result.
var ErrInvalidDocument = errors.New("invalid roadmap document")

const defaultVersion = "1"

// weekDraft is the shape-independent intermediate every variant parser emits.
type weekDraft struct {
	id    string
	title string
	items []any
}

// variantParser recognizes one top-level source shape.
type variantParser struct {
	name  string
	parse func(raw any) ([]weekDraft, bool)
}

// variants are tried in priority order; the first match wins.
var variants = []variantParser{
	{name: "weeks", parse: parseCanonical},
	{name: "phases", parse: parsePhases},
	{name: "array", parse: parseBareArray},
}

// NormalizeBytes decodes a JSON or YAML roadmap source and normalizes it.
func NormalizeBytes(data []byte) (domain.Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return domain.Document{}, fmt.Errorf("%w: empty source", ErrInvalidDocument)
	}
	var raw any
	if jsonErr := json.Unmarshal(trimmed, &raw); jsonErr != nil {
		if yamlErr := yaml.Unmarshal(trimmed, &raw); yamlErr != nil {
			return domain.Document{}, fmt.Errorf("%w: not json (%v) nor yaml (%v)", ErrInvalidDocument, jsonErr, yamlErr)
		}
	}
	return Normalize(raw)
}

// Normalize converts an already-decoded source into a Document. It is
// idempotent on its own output once that output is re-decoded.
func Normalize(raw any) (domain.Document, error) {
	raw = plain(raw)
	var drafts []weekDraft
	matched := false
	for _, v := range variants {
		if ds, ok := v.parse(raw); ok {
			drafts, matched = ds, true
			break
		}
	}
	if !matched {
		return domain.Document{}, fmt.Errorf("%w: no weeks, roadmap, phases or week list found", ErrInvalidDocument)
	}

	doc := domain.Document{Version: versionOf(raw), Weeks: []domain.Week{}}
	weekIDs := newIDAllocator()
	for i, d := range drafts {
		items := coerceItems(d.items)
		if len(items) == 0 {
			continue
		}
		base := Slug(d.id)
		if base == "" {
			base = Slug(d.title)
		}
		if base == "" {
			base = fmt.Sprintf("week-%d", i+1)
		}
		doc.Weeks = append(doc.Weeks, domain.Week{
			ID:    weekIDs.claim(base),
			Title: d.title,
			Items: items,
		})
	}
	if len(doc.Weeks) == 0 {
		return domain.Document{}, fmt.Errorf("%w: no week contains a usable item", ErrInvalidDocument)
	}
	return doc, nil
}

func parseCanonical(raw any) ([]weekDraft, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	list, ok := m["weeks"].([]any)
	if !ok {
		return nil, false
	}
	return weekList(list), true
}

func parsePhases(raw any) ([]weekDraft, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, false
	}
	var list []any
	for _, key := range []string{"roadmap", "phases"} {
		if l, ok := m[key].([]any); ok {
			list = l
			break
		}
	}
	if list == nil {
		return nil, false
	}
	var out []weekDraft
	for _, p := range list {
		phase, ok := p.(map[string]any)
		if !ok {
			continue
		}
		phaseLabel := firstScalar(phase, "phase", "title", "name", "label")
		milestones, _ := phase["milestones"].([]any)
		if len(milestones) == 0 {
			out = append(out, weekDraft{
				id:    scalar(phase["id"]),
				title: phaseLabel,
				items: itemList(phase),
			})
			continue
		}
		for _, ms := range milestones {
			mm, ok := ms.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, weekDraft{
				id:    scalar(mm["id"]),
				title: joinLabels(phaseLabel, firstScalar(mm, "milestone", "title", "name", "label")),
				items: itemList(mm),
			})
		}
	}
	return out, true
}

func parseBareArray(raw any) ([]weekDraft, bool) {
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	return weekList(list), true
}

func weekList(list []any) []weekDraft {
	out := make([]weekDraft, 0, len(list))
	for _, w := range list {
		m, ok := w.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, weekDraft{
			id:    scalar(m["id"]),
			title: firstScalar(m, "title", "name", "label", "week"),
			items: itemList(m),
		})
	}
	return out
}

func itemList(m map[string]any) []any {
	for _, key := range []string{"items", "tasks", "deliverables"} {
		if l, ok := m[key].([]any); ok {
			return l
		}
	}
	return nil
}

func joinLabels(phase, milestone string) string {
	switch {
	case phase == "":
		return milestone
	case milestone == "":
		return phase
	default:
		return phase + ": " + milestone
	}
}

func versionOf(raw any) string {
	if m, ok := raw.(map[string]any); ok {
		if v := scalar(m["version"]); v != "" {
			return v
		}
	}
	return defaultVersion
}

// plain rewrites YAML-specific containers into the JSON-shaped values the
// parsers expect.
func plain(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = plain(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[strings.TrimSpace(fmt.Sprint(k))] = plain(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = plain(val)
		}
		return t
	default:
		return v
	}
}
