package domain

// Progress is the read-time verdict of an item, week or document. It is never
// stored; it is always folded from item state.
type Progress string

const (
	ProgressPass    Progress = "pass"
	ProgressFail    Progress = "fail"
	ProgressPending Progress = "pending"
)

// ItemProgress derives an item verdict from its checks, or from the done
// flag when the item has none or a manual override decided it.
func ItemProgress(it Item) Progress {
	overridden := it.ManualOverride != nil && it.ManualOverride.Done != nil
	if len(it.Checks) == 0 || overridden {
		switch {
		case it.Done == nil:
			return ProgressPending
		case *it.Done:
			return ProgressPass
		default:
			return ProgressFail
		}
	}
	pending := false
	for _, c := range it.Checks {
		if c.OK == nil {
			pending = true
			continue
		}
		if !*c.OK {
			return ProgressFail
		}
	}
	if pending {
		return ProgressPending
	}
	return ProgressPass
}

// WeekProgress is pending if any item is pending, fail if any item fails,
// else pass.
func WeekProgress(w Week) Progress {
	out := make([]Progress, 0, len(w.Items))
	for _, it := range w.Items {
		out = append(out, ItemProgress(it))
	}
	return fold(out)
}

func DocumentProgress(d Document) Progress {
	out := make([]Progress, 0, len(d.Weeks))
	for _, w := range d.Weeks {
		out = append(out, WeekProgress(w))
	}
	return fold(out)
}

func fold(ps []Progress) Progress {
	failed := false
	for _, p := range ps {
		switch p {
		case ProgressPending:
			return ProgressPending
		case ProgressFail:
			failed = true
		}
	}
	if failed {
		return ProgressFail
	}
	return ProgressPass
}
