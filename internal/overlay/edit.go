package overlay

import (
	"errors"
	"slices"
	"strings"
)

var ErrInvalidEdit = errors.New("invalid overlay edit")

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Weeks == nil {
		return Record{}
	}
	out := Record{Weeks: make(map[string]WeekEdits, len(r.Weeks))}
	for k, w := range r.Weeks {
		c := WeekEdits{
			Removed:   slices.Clone(w.Removed),
			Added:     slices.Clone(w.Added),
			Overrides: slices.Clone(w.Overrides),
		}
		for i := range c.Added {
			c.Added[i].Done = copyBool(c.Added[i].Done)
		}
		for i := range c.Overrides {
			c.Overrides[i].Done = copyBool(c.Overrides[i].Done)
		}
		out.Weeks[k] = c
	}
	return out
}

// edit applies fn to a copy of the week entry and prunes it if it ends up
// empty.
func (r Record) edit(weekKey string, fn func(*WeekEdits)) (Record, error) {
	weekKey = strings.TrimSpace(weekKey)
	if weekKey == "" {
		return r, errors.Join(ErrInvalidEdit, errors.New("week key is required"))
	}
	out := r.Clone()
	w := out.Weeks[weekKey]
	fn(&w)
	if w.Empty() {
		delete(out.Weeks, weekKey)
	} else {
		if out.Weeks == nil {
			out.Weeks = map[string]WeekEdits{}
		}
		out.Weeks[weekKey] = w
	}
	if len(out.Weeks) == 0 {
		out.Weeks = nil
	}
	return out, nil
}

// AddItem appends a manual item to a week, replacing an earlier one with the
// same key.
func (r Record) AddItem(weekKey string, it ManualItem) (Record, error) {
	it.Key = strings.TrimSpace(it.Key)
	it.Name = strings.TrimSpace(it.Name)
	it.Note = strings.TrimSpace(it.Note)
	if it.Key == "" || it.Name == "" {
		return r, errors.Join(ErrInvalidEdit, errors.New("manual items need a key and a name"))
	}
	return r.edit(weekKey, func(w *WeekEdits) {
		for i := range w.Added {
			if w.Added[i].Key == it.Key {
				w.Added[i] = it
				return
			}
		}
		w.Added = append(w.Added, it)
	})
}

// DeleteItem drops a manual item previously added to a week.
func (r Record) DeleteItem(weekKey, key string) (Record, error) {
	return r.edit(weekKey, func(w *WeekEdits) {
		w.Added = slices.DeleteFunc(w.Added, func(a ManualItem) bool { return a.Key == key })
	})
}

// RemoveItem hides a computed item from the view.
func (r Record) RemoveItem(weekKey, itemKey string) (Record, error) {
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return r, errors.Join(ErrInvalidEdit, errors.New("item key is required"))
	}
	return r.edit(weekKey, func(w *WeekEdits) {
		if !slices.Contains(w.Removed, itemKey) {
			w.Removed = append(w.Removed, itemKey)
		}
	})
}

// RestoreItem undoes RemoveItem.
func (r Record) RestoreItem(weekKey, itemKey string) (Record, error) {
	return r.edit(weekKey, func(w *WeekEdits) {
		w.Removed = slices.DeleteFunc(w.Removed, func(k string) bool { return k == itemKey })
	})
}

// SetOverride pins the done flag or note of a computed item. An override
// carrying neither clears it.
func (r Record) SetOverride(weekKey string, o Override) (Record, error) {
	o.Key = strings.TrimSpace(o.Key)
	o.Note = strings.TrimSpace(o.Note)
	if o.Key == "" {
		return r, errors.Join(ErrInvalidEdit, errors.New("item key is required"))
	}
	if o.empty() {
		return r.ClearOverride(weekKey, o.Key)
	}
	o.Done = copyBool(o.Done)
	return r.edit(weekKey, func(w *WeekEdits) {
		for i := range w.Overrides {
			if w.Overrides[i].Key == o.Key {
				w.Overrides[i] = o
				return
			}
		}
		w.Overrides = append(w.Overrides, o)
	})
}

func (r Record) ClearOverride(weekKey, itemKey string) (Record, error) {
	return r.edit(weekKey, func(w *WeekEdits) {
		w.Overrides = slices.DeleteFunc(w.Overrides, func(o Override) bool { return o.Key == itemKey })
	})
}
