package enrich

import "strings"

// Verdict is the three-valued reading of a status word.
type Verdict int8

const (
	VerdictPending Verdict = iota
	VerdictTrue
	VerdictFalse
)

// vocabulary maps lowercase status words to verdicts. Words not listed read
// as pending.
var vocabulary = map[string]Verdict{
	"pass":      VerdictTrue,
	"passed":    VerdictTrue,
	"ok":        VerdictTrue,
	"success":   VerdictTrue,
	"succeeded": VerdictTrue,
	"complete":  VerdictTrue,
	"completed": VerdictTrue,
	"done":      VerdictTrue,

	"fail":    VerdictFalse,
	"failed":  VerdictFalse,
	"error":   VerdictFalse,
	"missing": VerdictFalse,

	"skip":    VerdictPending,
	"skipped": VerdictPending,
	"pending": VerdictPending,
}

// Lookup reads a status word case-insensitively.
func Lookup(status string) Verdict {
	return vocabulary[strings.ToLower(strings.TrimSpace(status))]
}

// DeriveOK returns the tri-state ok for a status. An explicit boolean always
// wins; otherwise nil means pending.
func DeriveOK(status string, explicit *bool) *bool {
	if explicit != nil {
		v := *explicit
		return &v
	}
	switch Lookup(status) {
	case VerdictTrue:
		return boolPtr(true)
	case VerdictFalse:
		return boolPtr(false)
	default:
		return nil
	}
}

func boolPtr(b bool) *bool {
	return &b
}
