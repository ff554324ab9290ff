// Package overlay layers user-authored edits (added, hidden and overridden
// items) on top of a computed roadmap.
package overlay

import (
	"encoding/json"
	"fmt"
	"strings"

	"roadline/internal/domain"
)

type ManualItem struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
	Done *bool  `json:"done,omitempty"`
}

type Override struct {
	Key  string `json:"key"`
	Done *bool  `json:"done,omitempty"`
	Note string `json:"note,omitempty"`
}

func (o Override) empty() bool {
	return o.Done == nil && o.Note == ""
}

type WeekEdits struct {
	Added     []ManualItem `json:"added,omitempty"`
	Removed   []string     `json:"removed,omitempty"`
	Overrides []Override   `json:"overrides,omitempty"`
}

func (w WeekEdits) Empty() bool {
	return len(w.Added) == 0 && len(w.Removed) == 0 && len(w.Overrides) == 0
}

// Record is the persisted overlay for one roadmap, keyed by week key.
type Record struct {
	Weeks map[string]WeekEdits `json:"weeks,omitempty"`
}

func (r Record) Empty() bool {
	for _, w := range r.Weeks {
		if !w.Empty() {
			return false
		}
	}
	return true
}

// WeekKey is the week id, else its title, else a positional fallback.
func WeekKey(w domain.Week, index int) string {
	if k := strings.TrimSpace(w.ID); k != "" {
		return k
	}
	if k := strings.TrimSpace(w.Title); k != "" {
		return k
	}
	return fmt.Sprintf("week-%d", index+1)
}

// ItemKey is the item id, else its name, else a positional fallback.
func ItemKey(it domain.Item, index int) string {
	if k := strings.TrimSpace(it.ID); k != "" {
		return k
	}
	if k := strings.TrimSpace(it.Name); k != "" {
		return k
	}
	return fmt.Sprintf("item-%d", index+1)
}

// Apply returns the view of doc with rec layered on. doc is not modified
// and applying the same record again yields the same view.
func Apply(doc domain.Document, rec Record) domain.Document {
	out := domain.CloneDocument(doc)
	if len(rec.Weeks) == 0 {
		return out
	}
	for wi := range out.Weeks {
		w := &out.Weeks[wi]
		edits, ok := rec.Weeks[WeekKey(*w, wi)]
		if !ok || edits.Empty() {
			continue
		}
		removed := make(map[string]bool, len(edits.Removed))
		for _, k := range edits.Removed {
			removed[k] = true
		}
		overrides := make(map[string]Override, len(edits.Overrides))
		for _, o := range edits.Overrides {
			overrides[o.Key] = o
		}

		items := make([]domain.Item, 0, len(w.Items)+len(edits.Added))
		present := map[string]bool{}
		for ii, it := range w.Items {
			if it.ManualKey != "" {
				present[it.ManualKey] = true
				items = append(items, it)
				continue
			}
			key := ItemKey(it, ii)
			if removed[key] {
				continue
			}
			if o, ok := overrides[key]; ok {
				applyOverride(&it, o)
			}
			items = append(items, it)
		}
		for _, add := range edits.Added {
			if present[add.Key] {
				continue
			}
			present[add.Key] = true
			items = append(items, domain.Item{
				ID:        add.Key,
				Name:      add.Name,
				Checks:    []domain.Check{},
				Manual:    true,
				Done:      copyBool(add.Done),
				Note:      add.Note,
				ManualKey: add.Key,
			})
		}
		w.Items = items
	}
	return out
}

// applyOverride replaces the computed done flag and records the override as
// an annotation; check results are left as computed.
func applyOverride(it *domain.Item, o Override) {
	if o.Done != nil {
		it.Done = copyBool(o.Done)
	}
	it.ManualOverride = &domain.ManualOverride{Done: copyBool(o.Done), Note: o.Note}
}

// Parse decodes a stored overlay. Malformed input yields an empty record.
func Parse(data []byte) Record {
	if len(data) == 0 {
		return Record{}
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}
	}
	return Sanitize(raw)
}

// Sanitize rebuilds a record from loosely-typed input, silently dropping
// entries with unknown shapes, non-string keys or missing key/name, and
// pruning weeks left without edits.
func Sanitize(raw any) Record {
	root, ok := raw.(map[string]any)
	if !ok {
		return Record{}
	}
	weeks, ok := root["weeks"].(map[string]any)
	if !ok {
		return Record{}
	}
	rec := Record{}
	for weekKey, v := range weeks {
		weekKey = strings.TrimSpace(weekKey)
		entry, ok := v.(map[string]any)
		if weekKey == "" || !ok {
			continue
		}
		edits := WeekEdits{
			Added:     sanitizeAdded(entry["added"]),
			Removed:   sanitizeRemoved(entry["removed"]),
			Overrides: sanitizeOverrides(entry["overrides"]),
		}
		if edits.Empty() {
			continue
		}
		if rec.Weeks == nil {
			rec.Weeks = map[string]WeekEdits{}
		}
		rec.Weeks[weekKey] = edits
	}
	return rec
}

func sanitizeAdded(v any) []ManualItem {
	list, _ := v.([]any)
	var out []ManualItem
	seen := map[string]bool{}
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		key := stringField(m, "key")
		name := stringField(m, "name")
		if key == "" || name == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ManualItem{Key: key, Name: name, Note: stringField(m, "note"), Done: boolField(m, "done")})
	}
	return out
}

func sanitizeRemoved(v any) []string {
	list, _ := v.([]any)
	var out []string
	seen := map[string]bool{}
	for _, e := range list {
		s, ok := e.(string)
		s = strings.TrimSpace(s)
		if !ok || s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func sanitizeOverrides(v any) []Override {
	list, _ := v.([]any)
	var out []Override
	seen := map[string]bool{}
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		o := Override{Key: stringField(m, "key"), Done: boolField(m, "done"), Note: stringField(m, "note")}
		if o.Key == "" || o.empty() || seen[o.Key] {
			continue
		}
		seen[o.Key] = true
		out = append(out, o)
	}
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

func boolField(m map[string]any, key string) *bool {
	b, ok := m[key].(bool)
	if !ok {
		return nil
	}
	return &b
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
