package domain

// CloneDocument deep-copies a document so stamping or overlaying never
// aliases the source.
func CloneDocument(doc Document) Document {
	out := Document{Version: doc.Version, Weeks: make([]Week, len(doc.Weeks))}
	for wi, w := range doc.Weeks {
		nw := Week{ID: w.ID, Title: w.Title, Items: make([]Item, len(w.Items))}
		for ii, it := range w.Items {
			nw.Items[ii] = CloneItem(it)
		}
		out.Weeks[wi] = nw
	}
	return out
}

func CloneItem(it Item) Item {
	out := it
	out.Done = copyBool(it.Done)
	if it.ManualOverride != nil {
		mo := *it.ManualOverride
		mo.Done = copyBool(mo.Done)
		out.ManualOverride = &mo
	}
	out.Checks = make([]Check, len(it.Checks))
	for i, c := range it.Checks {
		c.Files = append([]string(nil), c.Files...)
		c.Globs = append([]string(nil), c.Globs...)
		c.MustMatch = append([]string(nil), c.MustMatch...)
		c.OK = copyBool(c.OK)
		out.Checks[i] = c
	}
	return out
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
